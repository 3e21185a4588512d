package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist, either
// remotely or in the local catalog snapshot.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item as exposed by the remote catalog API.
//
// ID is zero until the remote service assigns one.
type Product struct {
	ID          int64
	Title       string
	Price       decimal.Decimal
	Description string
	Category    string
	Stock       int

	Brand              string
	Thumbnail          string
	Images             []string
	Rating             float64
	DiscountPercentage float64
}

// Page is one window of the remote catalog along with its pagination metadata.
type Page struct {
	Products []Product
	Total    int
	Skip     int
	Limit    int
}

// DeleteResult reports the outcome of a local-only delete.
type DeleteResult struct {
	Deleted bool
	ID      int64
}

// Catalog mediates every read and write of the product catalog.
//
// List refreshes the in-memory snapshot; Delete only edits that snapshot and
// never reaches the remote service, so the deleted product reappears on the
// next List.
type Catalog interface {
	List(ctx context.Context) (*Page, error)
	Get(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p Product) (*Product, error)
	Update(ctx context.Context, id int64, p Product) (*Product, error)
	Delete(id int64) (*DeleteResult, error)
	Snapshot() []Product
}
