package catalog

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-console/internal/domain/product"
)

// decodePage reads a `{products, total, skip, limit}` envelope.
func decodePage(d *jx.Decoder) (*product.Page, error) {
	page := &product.Page{}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}

		var err error
		switch string(key) {
		case "products":
			page.Products = make([]product.Product, 0)
			return d.Arr(func(d *jx.Decoder) error {
				var p product.Product
				if err := decodeProduct(d, &p); err != nil {
					return err
				}
				page.Products = append(page.Products, p)
				return nil
			})
		case "total":
			page.Total, err = d.Int()
		case "skip":
			page.Skip, err = d.Int()
		case "limit":
			page.Limit, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// decodeProduct reads a single product object into p. Unknown fields are
// skipped and null values leave the field at its zero value.
func decodeProduct(d *jx.Decoder, p *product.Product) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}

		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Int64()
		case "title":
			p.Title, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		case "brand":
			p.Brand, err = d.Str()
		case "thumbnail":
			p.Thumbnail, err = d.Str()
		case "images":
			p.Images = p.Images[:0]
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				p.Images = append(p.Images, s)
				return nil
			})
		case "rating":
			p.Rating, err = d.Float64()
		case "discountPercentage":
			p.DiscountPercentage, err = d.Float64()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	num, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	raw := num.String()
	if len(raw) >= 2 && raw[0] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if e := v.Exponent(); e > maxExponent || e < -maxExponent {
		return decimal.Zero, errors.Errorf("number %q out of range", raw)
	}
	return v, nil
}

// maxExponent bounds decoded numbers: formatting a decimal expands its
// exponent in full.
const maxExponent = 18

// encodeProduct writes p as a request body. The identifier is never sent:
// creates let the server assign it and updates carry it in the path.
func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("stock")
	e.Int(p.Stock)

	if p.Brand != "" {
		e.FieldStart("brand")
		e.Str(p.Brand)
	}
	if p.Thumbnail != "" {
		e.FieldStart("thumbnail")
		e.Str(p.Thumbnail)
	}
	if len(p.Images) > 0 {
		e.FieldStart("images")
		e.ArrStart()
		for _, img := range p.Images {
			e.Str(img)
		}
		e.ArrEnd()
	}
	if p.Rating != 0 {
		e.FieldStart("rating")
		e.Float64(p.Rating)
	}
	if p.DiscountPercentage != 0 {
		e.FieldStart("discountPercentage")
		e.Float64(p.DiscountPercentage)
	}
	e.ObjEnd()
}

// decodeMessage extracts the `message` field from an error body, if any.
func decodeMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "message" || d.Next() != jx.String {
			return d.Skip()
		}
		var err error
		msg, err = d.Str()
		return err
	})
	return msg
}
