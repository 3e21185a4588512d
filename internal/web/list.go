package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-console/internal/listing"
)

// Links inside the list view carry src=snapshot: sorting, filtering, paging
// and deleting work on the snapshot and must not refetch. A plain /products
// request reloads the catalog.
const (
	paramSource    = "src"
	sourceSnapshot = "snapshot"
)

type listPage struct {
	page
	View listing.View
	// Loading is set when the page streams a loading indicator ahead of the
	// fetch.
	Loading bool
}

func (p listPage) link(s listing.State) string {
	v := s.Values()
	v.Set(paramSource, sourceSnapshot)
	return "/products?" + v.Encode()
}

func (p listPage) Columns() []listing.Column { return listing.Columns }

func (p listPage) PageSizes() []int { return listing.PageSizes }

func (p listPage) PageNumber() int { return p.View.State.Page + 1 }

func (p listPage) SortURL(c listing.Column) string {
	return p.link(p.View.State.WithSort(c))
}

func (p listPage) SortMark(c listing.Column) string {
	switch {
	case p.View.State.Sort != c:
		return ""
	case p.View.State.Dir == listing.Desc:
		return " ▼"
	default:
		return " ▲"
	}
}

func (p listPage) PageURL(delta int) string {
	return p.link(p.View.State.WithPage(p.View.State.Page + delta))
}

func (p listPage) ExpandURL(id int64) string {
	return p.link(p.View.State.ToggleExpanded(id))
}

func (p listPage) ClearFilterURL() string {
	return p.link(p.View.State.WithFilter(""))
}

func (p listPage) EditURL(id int64) string {
	return "/product?" + url.Values{"id": {strconv.FormatInt(id, 10)}}.Encode()
}

func (p listPage) DeleteURL(id int64) string {
	u := "/products/" + strconv.FormatInt(id, 10) + "/delete"
	if q := p.View.State.Values().Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// list renders the product table. With src=snapshot the current snapshot is
// shown as is; otherwise the catalog is fetched first, with a loading
// indicator flushed to the browser while the fetch is in flight.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	data := listPage{page: page{Title: "Products", Flashes: h.flash.Pop(w, r)}}
	state := listing.ParseState(q)

	if q.Get(paramSource) == sourceSnapshot && h.catalog.Loaded() {
		data.View = listing.Apply(h.catalog.Snapshot(), state)
		h.render(w, r, http.StatusOK, "list", data)
		return
	}

	lg := zctx.From(ctx)
	data.Loading = true
	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(http.StatusOK)
	if err := h.execute(w, "list_start", data); err != nil {
		lg.Error("Render page", zap.String("template", "list_start"), zap.Error(err))
		return
	}
	if err := http.NewResponseController(w).Flush(); err != nil {
		lg.Debug("Flush not supported", zap.Error(err))
	}

	if _, err := h.catalog.List(ctx); err != nil {
		lg.Error("Load products", zap.Error(err))
		data.Notices = append(data.Notices, Flash{Kind: FlashError, Message: msgLoadProductsError})
	}
	data.View = listing.Apply(h.catalog.Snapshot(), state)

	if err := h.execute(w, "list_end", data); err != nil {
		lg.Error("Render page", zap.String("template", "list_end"), zap.Error(err))
	}
}

// delete removes a product from the snapshot only and returns to the list
// without refetching, so the removal stays visible until the next reload.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	back := listing.ParseState(r.URL.Query()).Values()
	back.Set(paramSource, sourceSnapshot)

	lg := zctx.From(r.Context())
	id, ok := parseID(r.PathValue("id"))
	if !ok {
		h.flash.Add(w, r, FlashError, msgDeleteError+msgNotFoundSuffix)
		http.Redirect(w, r, "/products?"+back.Encode(), http.StatusSeeOther)
		return
	}

	if _, err := h.catalog.Delete(id); err != nil {
		lg.Warn("Delete product", zap.Int64("product_id", id), zap.Error(err))
		h.flash.Add(w, r, FlashError, failure(msgDeleteError, err))
	} else {
		h.flash.Add(w, r, FlashSuccess, msgDeleted)
	}
	http.Redirect(w, r, "/products?"+back.Encode(), http.StatusSeeOther)
}
