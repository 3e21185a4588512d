// Package web serves the catalog console: the product list and the
// create/edit form, rendered server-side.
package web

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-console/internal/domain/product"
)

// Catalog is the product catalog as seen by the console.
type Catalog interface {
	product.Catalog
	// Loaded reports whether the snapshot was ever filled by List.
	Loaded() bool
}

// Notification texts.
const (
	msgLoadProductsError = "Error loading products"
	msgLoadProductError  = "Error loading product"
	msgDeleteError       = "Error deleting product"
	msgSaveError         = "Error saving product"
	msgNotFoundSuffix    = ": product not found"
	msgDeleted           = "Product deleted successfully"
	msgCreated           = "Product created successfully"
	msgUpdated           = "Product updated successfully"
	msgThrottled         = "Too many requests, try again shortly"
)

// failure picks the notification for err, telling a missing product apart
// from an unreachable catalog.
func failure(prefix string, err error) string {
	if errors.Is(err, product.ErrNotFound) {
		return prefix + msgNotFoundSuffix
	}
	return prefix
}

// Handler serves the console pages.
type Handler struct {
	catalog Catalog
	flash   *FlashStore
	tmpl    *template.Template
}

// NewHandler creates a Handler over catalog.
func NewHandler(catalog Catalog, flash *FlashStore) (*Handler, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if flash == nil {
		return nil, errors.New("flash store is required")
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{catalog: catalog, flash: flash, tmpl: tmpl}, nil
}

// Register adds the console routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/products", http.StatusFound)
	})
	mux.HandleFunc("GET /products", h.list)
	mux.HandleFunc("POST /products/{id}/delete", h.delete)
	mux.HandleFunc("GET /product/create", h.createForm)
	mux.HandleFunc("GET /product", h.editForm)
	mux.HandleFunc("POST /product", h.save)
	mux.Handle("GET /static/", staticHandler())
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Throttled answers a submission rejected by the rate limiter: it queues a
// notification and returns to the console page the submission came from.
func (h *Handler) Throttled(w http.ResponseWriter, r *http.Request) {
	h.flash.Add(w, r, FlashError, msgThrottled)
	http.Redirect(w, r, referringPage(r), http.StatusSeeOther)
}

// referringPage returns the path and query of a same-host Referer, or the
// product list.
func referringPage(r *http.Request) string {
	const fallback = "/products"
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return fallback
	}
	if ref.Host != "" && ref.Host != r.Host {
		return fallback
	}
	u := url.URL{Path: ref.Path, RawQuery: ref.RawQuery}
	return u.String()
}
