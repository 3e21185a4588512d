// Package export dumps the whole remote catalog to a JSON document.
package export

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-console/internal/currency"
	"github.com/xenking/catalog-console/internal/domain/product"
)

// Pager fetches one window of the catalog.
type Pager interface {
	Page(ctx context.Context, skip, limit int) (*product.Page, error)
}

// Options control how the catalog is fetched.
type Options struct {
	// Window is the number of products requested per call.
	Window int
	// Concurrency bounds the windows fetched at once.
	Concurrency int
}

// DefaultOptions fetch 100 products per call, four calls at a time.
var DefaultOptions = Options{Window: 100, Concurrency: 4}

// Fetch reads the whole catalog. The first window tells the total; the
// remaining windows are fetched concurrently and joined in catalog order.
func Fetch(ctx context.Context, p Pager, opt Options) ([]product.Product, error) {
	if opt.Window <= 0 {
		opt.Window = DefaultOptions.Window
	}
	if opt.Concurrency <= 0 {
		opt.Concurrency = DefaultOptions.Concurrency
	}

	first, err := p.Page(ctx, 0, opt.Window)
	if err != nil {
		return nil, errors.Wrap(err, "fetch first window")
	}
	if first.Total <= len(first.Products) {
		return first.Products, nil
	}

	// The server may cap the window below the requested size.
	stride := opt.Window
	if first.Limit > 0 && first.Limit < stride {
		stride = first.Limit
	}
	windows := (first.Total + stride - 1) / stride
	results := make([][]product.Product, windows)
	results[0] = first.Products

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.Concurrency)
	for i := 1; i < windows; i++ {
		g.Go(func() error {
			page, err := p.Page(ctx, i*stride, stride)
			if err != nil {
				return errors.Wrapf(err, "fetch window %d", i)
			}
			results[i] = page.Products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]product.Product, 0, first.Total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Write encodes products as
// {"exportedAt": ..., "total": n, "products": [...]}.
// Every product carries its id and its price converted to INR.
func Write(w io.Writer, products []product.Product, at time.Time) error {
	var e jx.Encoder
	e.SetIdent(2)
	e.Obj(func(e *jx.Encoder) {
		e.Field("exportedAt", func(e *jx.Encoder) { e.Str(at.UTC().Format(time.RFC3339)) })
		e.Field("total", func(e *jx.Encoder) { e.Int(len(products)) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range products {
					encodeProduct(e, p)
				}
			})
		})
	})
	if _, err := w.Write(e.Bytes()); err != nil {
		return errors.Wrap(err, "write export")
	}
	return nil
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
		e.Field("priceInr", func(e *jx.Encoder) { e.Str(currency.FormatINR(p.Price)) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		if p.Brand != "" {
			e.Field("brand", func(e *jx.Encoder) { e.Str(p.Brand) })
		}
		if p.Thumbnail != "" {
			e.Field("thumbnail", func(e *jx.Encoder) { e.Str(p.Thumbnail) })
		}
		if len(p.Images) > 0 {
			e.Field("images", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, img := range p.Images {
						e.Str(img)
					}
				})
			})
		}
		if p.Rating != 0 {
			e.Field("rating", func(e *jx.Encoder) { e.Float64(p.Rating) })
		}
		if p.DiscountPercentage != 0 {
			e.Field("discountPercentage", func(e *jx.Encoder) { e.Float64(p.DiscountPercentage) })
		}
	})
}
