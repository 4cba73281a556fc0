// Package validation turns raw, string-typed product input (as it arrives from
// an HTML form or a JSON body) into a typed ProductData or a set of field errors.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	MsgNameRequired  = "Name is required"
	MsgPricePositive = "Price must be greater than 0"
	MsgPriceNumber   = "Price must be a number"
	MsgPriceTooLarge = "Price must be at most 99999999.99"
)

// MaxPrice is the largest price the decimal(10,2) column holds.
var MaxPrice = decimal.RequireFromString("99999999.99")

// RawProduct is untrusted product input. Description is nil when the field was
// not submitted at all.
type RawProduct struct {
	Name        string
	Description *string
	Price       string
}

// ProductData is a validated product record.
type ProductData struct {
	Name        string
	Description *string
	Price       decimal.Decimal
}

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// First returns the first message recorded for field, if any.
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// productSchema carries the constraints checked by the validator. Price is
// compared as a float only after it has been parsed as a decimal; an exponent
// too large for a float64 becomes +Inf and fails lte.
type productSchema struct {
	Name  string  `json:"name" validate:"min=1"`
	Price float64 `json:"price" validate:"gte=0.01,lte=99999999.99"`
}

var messages = map[string]string{
	"name.min":  MsgNameRequired,
	"price.gte": MsgPricePositive,
	"price.lte": MsgPriceTooLarge,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse coerces and validates raw input. Exactly one of the results is
// meaningful: errs is nil when the input is valid.
func Parse(raw RawProduct) (ProductData, FieldErrors) {
	errs := FieldErrors{}

	price, priceOK := coercePrice(raw.Price)
	if !priceOK {
		errs.add("price", MsgPriceNumber)
	}

	schema := productSchema{Name: raw.Name, Price: price.InexactFloat64()}
	if err := validate.Struct(schema); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			errs.add("_", err.Error())
		}
		for _, e := range verrs {
			if e.Field() == "price" && !priceOK {
				continue
			}
			msg, ok := messages[e.Field()+"."+e.Tag()]
			if !ok {
				msg = "Invalid value"
			}
			errs.add(e.Field(), msg)
		}
	}

	if len(errs) > 0 {
		return ProductData{}, errs
	}
	return ProductData{
		Name:        raw.Name,
		Description: raw.Description,
		Price:       price,
	}, nil
}

// coercePrice mirrors numeric coercion of form values: surrounding blanks are
// ignored and an empty value becomes zero.
func coercePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
