// Package form binds and validates the product create/edit form.
package form

import (
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-console/internal/domain/product"
)

// Field names as submitted by the form.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldStock       = "stock"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nonneg_decimal", validateNonNegDecimal)
	_ = v.RegisterValidation("nonneg_int", validateNonNegInt)
	return v
}

// pricePattern accepts plain amounts in cents precision. Exponent forms are
// rejected: decimal expands them in full when formatting.
var pricePattern = regexp.MustCompile(`^\d{1,12}(\.\d{1,2})?$`)

func validateNonNegDecimal(fl validator.FieldLevel) bool {
	return pricePattern.MatchString(fl.Field().String())
}

func validateNonNegInt(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	return err == nil && n >= 0
}

// Product holds the form fields exactly as entered, so an invalid submission
// can be rendered back unchanged. A zero ID means create mode.
type Product struct {
	ID          int64  `form:"id"`
	Title       string `form:"title" validate:"required"`
	Price       string `form:"price" validate:"required,nonneg_decimal"`
	Description string `form:"description" validate:"required"`
	Category    string `form:"category" validate:"required"`
	Stock       string `form:"stock" validate:"required,nonneg_int"`
}

// Editing reports whether the form edits an existing product.
func (f Product) Editing() bool {
	return f.ID != 0
}

// FromValues reads a submitted form. Surrounding whitespace is dropped.
// A present id that is not a positive integer names no product and yields
// product.ErrNotFound.
func FromValues(v url.Values) (Product, error) {
	f := Product{
		Title:       strings.TrimSpace(v.Get(FieldTitle)),
		Price:       strings.TrimSpace(v.Get(FieldPrice)),
		Description: strings.TrimSpace(v.Get(FieldDescription)),
		Category:    strings.TrimSpace(v.Get(FieldCategory)),
		Stock:       strings.TrimSpace(v.Get(FieldStock)),
	}
	raw := strings.TrimSpace(v.Get(FieldID))
	if raw == "" {
		return f, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return f, errors.Wrapf(product.ErrNotFound, "id %q", raw)
	}
	f.ID = id
	return f, nil
}

// FromProduct fills the form for editing p.
func FromProduct(p product.Product) Product {
	return Product{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price.String(),
		Description: p.Description,
		Category:    p.Category,
		Stock:       strconv.Itoa(p.Stock),
	}
}

// Validate checks every field and returns the failures keyed by field name,
// or nil when the form may be submitted.
func (f Product) Validate() Errors {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{"": err.Error()}
	}
	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

// ToProduct converts a valid form into a product. It fails when Validate
// would.
func (f Product) ToProduct() (product.Product, error) {
	if errs := f.Validate(); errs != nil {
		return product.Product{}, errs
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "parse price")
	}
	stock, err := strconv.Atoi(f.Stock)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "parse stock")
	}
	return product.Product{
		ID:          f.ID,
		Title:       f.Title,
		Price:       price,
		Description: f.Description,
		Category:    f.Category,
		Stock:       stock,
	}, nil
}

var labels = map[string]string{
	FieldTitle:       "Name",
	FieldPrice:       "Price",
	FieldDescription: "Description",
	FieldCategory:    "Category",
	FieldStock:       "Stock",
}

func message(fe validator.FieldError) string {
	label, ok := labels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "nonneg_decimal":
		return label + " must be a number of at least 0 with at most 2 decimals"
	case "nonneg_int":
		return label + " must be a whole number of at least 0"
	default:
		return label + " is invalid"
	}
}
