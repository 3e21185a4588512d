package web

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-console/internal/domain/product"
	"github.com/xenking/catalog-console/internal/form"
)

type formPage struct {
	page
	Form   form.Product
	Errors form.Errors
}

func newFormPage(f form.Product) formPage {
	title := "New Product"
	if f.Editing() {
		title = "Edit Product"
	}
	return formPage{page: page{Title: title}, Form: f}
}

func (h *Handler) createForm(w http.ResponseWriter, r *http.Request) {
	data := newFormPage(form.Product{})
	data.Flashes = h.flash.Pop(w, r)
	h.render(w, r, http.StatusOK, "form", data)
}

// editForm fills the form from the remote catalog. Without an id it is the
// create form.
func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get(form.FieldID)
	if raw == "" {
		h.createForm(w, r)
		return
	}

	back := "/products?" + paramSource + "=" + sourceSnapshot
	id, ok := parseID(raw)
	if !ok {
		h.flash.Add(w, r, FlashError, msgLoadProductError+msgNotFoundSuffix)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		zctx.From(r.Context()).Warn("Load product", zap.Int64("product_id", id), zap.Error(err))
		h.flash.Add(w, r, FlashError, failure(msgLoadProductError, err))
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	data := newFormPage(form.FromProduct(*p))
	data.Flashes = h.flash.Pop(w, r)
	h.render(w, r, http.StatusOK, "form", data)
}

// save creates or updates a product. An invalid form never reaches the
// catalog and is shown again with the entered values.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form", http.StatusBadRequest)
		return
	}
	f, err := form.FromValues(r.PostForm)
	if err != nil {
		zctx.From(r.Context()).Warn("Save product", zap.Error(err))
		h.flash.Add(w, r, FlashError, failure(msgSaveError, err))
		http.Redirect(w, r, "/products?"+paramSource+"="+sourceSnapshot, http.StatusSeeOther)
		return
	}

	data := newFormPage(f)
	if errs := f.Validate(); errs != nil {
		data.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, "form", data)
		return
	}
	p, err := f.ToProduct()
	if err != nil {
		data.Notices = []Flash{{Kind: FlashError, Message: msgSaveError}}
		h.render(w, r, http.StatusUnprocessableEntity, "form", data)
		return
	}

	ctx := r.Context()
	lg := zctx.From(ctx)
	msg := msgCreated
	if f.Editing() {
		msg = msgUpdated
		_, err = h.catalog.Update(ctx, f.ID, p)
	} else {
		_, err = h.catalog.Create(ctx, p)
	}
	if err != nil {
		lg.Error("Save product", zap.Int64("product_id", f.ID), zap.Error(err))
		data.Notices = []Flash{{Kind: FlashError, Message: failure(msgSaveError, err)}}
		status := http.StatusBadGateway
		if errors.Is(err, product.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.render(w, r, status, "form", data)
		return
	}

	lg.Info("Product saved", zap.Int64("product_id", f.ID), zap.Bool("update", f.Editing()))
	h.flash.Add(w, r, FlashSuccess, msg)
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}
