// Package currency formats monetary amounts for display.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts in a fixed locale and currency.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
	symbol  string
	scale   int
}

// NewFormatter builds a Formatter for a BCP 47 locale ("pt-BR") and an ISO 4217
// currency code ("BRL").
func NewFormatter(locale, code string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid currency locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("invalid currency code %q: %w", code, err)
	}
	p := message.NewPrinter(tag)
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{
		printer: p,
		unit:    unit,
		symbol:  p.Sprint(currency.Symbol(unit)),
		scale:   scale,
	}, nil
}

// MustFormatter is like NewFormatter but panics on invalid input.
func MustFormatter(locale, code string) *Formatter {
	f, err := NewFormatter(locale, code)
	if err != nil {
		panic(err)
	}
	return f
}

// Format renders amount with the currency symbol and the locale's grouping and
// decimal separators, e.g. "R$ 1.234,50".
func (f *Formatter) Format(amount decimal.Decimal) string {
	n := f.printer.Sprint(number.Decimal(amount.Round(int32(f.scale)).InexactFloat64(), number.Scale(f.scale)))
	return f.symbol + " " + n
}

// Code returns the ISO currency code.
func (f *Formatter) Code() string {
	return f.unit.String()
}
