package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/catalog-console/internal/currency"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const htmlContentType = "text/html; charset=utf-8"

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"inr": currency.FormatINR,
		"usd": func(d decimal.Decimal) string { return d.StringFixed(2) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return t, nil
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The directory is embedded at build time.
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

// page is the data shared by every full page.
type page struct {
	Title string
	// Flashes were queued by the previous request.
	Flashes []Flash
	// Notices belong to this response only.
	Notices []Flash
}

// execute renders template name into w. Output is buffered so a failing
// template never leaves a half-written page.
func (h *Handler) execute(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return errors.Wrapf(err, "execute %s", name)
	}
	_, err := buf.WriteTo(w)
	return err
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.execute(&buf, name, data); err != nil {
		zctx.From(r.Context()).Error("Render page", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
