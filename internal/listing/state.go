// Package listing holds the list view model: filtering, sorting and
// pagination over the catalog snapshot. Nothing here reaches the network.
package listing

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Column names a sortable table column.
type Column string

const (
	ColumnTitle       Column = "title"
	ColumnPrice       Column = "price"
	ColumnCategory    Column = "category"
	ColumnDescription Column = "description"
	ColumnStock       Column = "stock"
)

// Columns lists the displayed columns in table order.
var Columns = []Column{ColumnTitle, ColumnPrice, ColumnCategory, ColumnDescription, ColumnStock}

// Label returns the column header text.
func (c Column) Label() string {
	switch c {
	case ColumnTitle:
		return "Name"
	case ColumnPrice:
		return "Price"
	case ColumnCategory:
		return "Category"
	case ColumnDescription:
		return "Description"
	case ColumnStock:
		return "Stock"
	default:
		return string(c)
	}
}

func (c Column) valid() bool {
	return slices.Contains(Columns, c)
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{5, 10, 25, 50}

// DefaultPageSize is used when no valid page size was selected.
const DefaultPageSize = 10

// State is everything the list view remembers between interactions.
// Page is zero-based.
type State struct {
	Filter   string
	Sort     Column
	Dir      Direction
	Page     int
	PageSize int
	Expanded int64
}

// DefaultState is the state of a freshly opened list view.
func DefaultState() State {
	return State{PageSize: DefaultPageSize}
}

// WithFilter sets the filter text. A changed filter moves back to the first
// page.
func (s State) WithFilter(filter string) State {
	filter = strings.TrimSpace(filter)
	if filter != s.Filter {
		s.Page = 0
	}
	s.Filter = filter
	return s
}

// WithSort sorts by c. Selecting the active column flips the direction;
// selecting another column starts ascending. Unknown columns are ignored.
func (s State) WithSort(c Column) State {
	if !c.valid() {
		return s
	}
	if s.Sort == c {
		if s.Dir == Desc {
			s.Dir = Asc
		} else {
			s.Dir = Desc
		}
		return s
	}
	s.Sort = c
	s.Dir = Asc
	return s
}

// WithPage moves to the zero-based page n.
func (s State) WithPage(n int) State {
	s.Page = max(n, 0)
	return s
}

// WithPageSize selects a page size and moves back to the first page.
// Sizes outside PageSizes fall back to DefaultPageSize.
func (s State) WithPageSize(n int) State {
	if !slices.Contains(PageSizes, n) {
		n = DefaultPageSize
	}
	if n != s.PageSize {
		s.Page = 0
	}
	s.PageSize = n
	return s
}

// ToggleExpanded opens the detail row of product id, or closes it when it is
// already open.
func (s State) ToggleExpanded(id int64) State {
	if s.Expanded == id {
		s.Expanded = 0
	} else {
		s.Expanded = id
	}
	return s
}

// Query parameter names shared by ParseState and Values.
const (
	paramFilter     = "q"
	paramPrevFilter = "prev_q"
	paramSort       = "sort"
	paramDir        = "dir"
	paramPage       = "page"
	paramSize       = "size"
	paramExpand     = "expand"
)

// ParseState rebuilds a State from query parameters. Pages are one-based in
// URLs. When the filter form submits `prev_q`, the filter is applied as a
// change from that previous value so that a new filter lands on page one.
func ParseState(v url.Values) State {
	s := DefaultState()

	if size, err := strconv.Atoi(v.Get(paramSize)); err == nil {
		s = s.WithPageSize(size)
	}

	if c := Column(v.Get(paramSort)); c.valid() {
		s.Sort = c
		s.Dir = Asc
		if Direction(v.Get(paramDir)) == Desc {
			s.Dir = Desc
		}
	}

	if page, err := strconv.Atoi(v.Get(paramPage)); err == nil {
		s = s.WithPage(page - 1)
	}

	if id, err := strconv.ParseInt(v.Get(paramExpand), 10, 64); err == nil && id > 0 {
		s.Expanded = id
	}

	if v.Has(paramPrevFilter) {
		s.Filter = strings.TrimSpace(v.Get(paramPrevFilter))
	} else {
		s.Filter = strings.TrimSpace(v.Get(paramFilter))
	}
	return s.WithFilter(v.Get(paramFilter))
}

// Values encodes s as query parameters, omitting defaults.
func (s State) Values() url.Values {
	v := url.Values{}
	if s.Filter != "" {
		v.Set(paramFilter, s.Filter)
	}
	if s.Sort != "" {
		v.Set(paramSort, string(s.Sort))
		v.Set(paramDir, string(s.Dir))
	}
	if s.Page > 0 {
		v.Set(paramPage, strconv.Itoa(s.Page+1))
	}
	if s.PageSize != 0 && s.PageSize != DefaultPageSize {
		v.Set(paramSize, strconv.Itoa(s.PageSize))
	}
	if s.Expanded != 0 {
		v.Set(paramExpand, strconv.FormatInt(s.Expanded, 10))
	}
	return v
}
