package listing

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/xenking/catalog-console/internal/currency"
	"github.com/xenking/catalog-console/internal/domain/product"
)

// View is one rendered page of the list view.
type View struct {
	State State

	// Rows holds the products of the current page.
	Rows []product.Product
	// Matched counts the products that pass the filter.
	Matched int
	// Total counts the products in the snapshot.
	Total int

	PageCount int
	// First and Last are the one-based positions of the first and last row
	// shown, both zero when nothing matched.
	First int
	Last  int
}

// HasPrev reports whether a previous page exists.
func (v View) HasPrev() bool { return v.State.Page > 0 }

// HasNext reports whether a next page exists.
func (v View) HasNext() bool { return v.State.Page+1 < v.PageCount }

// Apply filters, sorts and paginates products according to s. The input
// slice is never modified; the page index is clamped to the available pages.
func Apply(products []product.Product, s State) View {
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}

	rows := Filter(products, s.Filter)
	Sort(rows, s.Sort, s.Dir)

	pageCount := max(1, (len(rows)+s.PageSize-1)/s.PageSize)
	s.Page = min(max(s.Page, 0), pageCount-1)

	start := s.Page * s.PageSize
	end := min(start+s.PageSize, len(rows))

	v := View{
		State:     s,
		Rows:      rows[start:end],
		Matched:   len(rows),
		Total:     len(products),
		PageCount: pageCount,
	}
	if end > start {
		v.First = start + 1
		v.Last = end
	}
	return v
}

// Filter returns a new slice with the products whose displayed fields
// contain filter, ignoring case. An empty filter keeps every product.
func Filter(products []product.Product, filter string) []product.Product {
	needle := strings.ToLower(strings.TrimSpace(filter))
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if needle == "" || strings.Contains(searchText(p), needle) {
			out = append(out, p)
		}
	}
	return out
}

// searchText joins every displayed field of p, lowercased.
func searchText(p product.Product) string {
	return strings.ToLower(strings.Join([]string{
		p.Title,
		p.Price.String(),
		currency.FormatINR(p.Price),
		p.Category,
		p.Description,
		strconv.Itoa(p.Stock),
	}, "\x00"))
}

// Sort orders products in place by column c. Price and stock compare
// numerically, the rest compare as case-insensitive strings. Ties keep their
// snapshot order. An empty column leaves the order untouched.
func Sort(products []product.Product, c Column, dir Direction) {
	compare := comparator(c)
	if compare == nil {
		return
	}
	slices.SortStableFunc(products, func(a, b product.Product) int {
		if dir == Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func comparator(c Column) func(a, b product.Product) int {
	switch c {
	case ColumnTitle:
		return byString(func(p product.Product) string { return p.Title })
	case ColumnCategory:
		return byString(func(p product.Product) string { return p.Category })
	case ColumnDescription:
		return byString(func(p product.Product) string { return p.Description })
	case ColumnPrice:
		return func(a, b product.Product) int { return a.Price.Cmp(b.Price) }
	case ColumnStock:
		return func(a, b product.Product) int { return cmp.Compare(a.Stock, b.Stock) }
	default:
		return nil
	}
}

func byString(field func(product.Product) string) func(a, b product.Product) int {
	return func(a, b product.Product) int {
		return cmp.Compare(strings.ToLower(field(a)), strings.ToLower(field(b)))
	}
}
