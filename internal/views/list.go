package views

import (
	"time"
	"unicode/utf8"

	"catalog/internal/currency"
	"catalog/internal/models"
)

const (
	descriptionMaxRunes = 60

	NoDescription         = "No description"
	NoDescriptionProvided = "No description provided"
)

// Presenter turns products into display strings.
type Presenter struct {
	Money      *currency.Formatter
	DateLayout string
	Locale     string
}

func (p Presenter) date(t time.Time) string {
	layout := p.DateLayout
	if layout == "" {
		layout = "02/01/2006"
	}
	return t.Local().Format(layout)
}

// ProductRow is one row of the product table.
type ProductRow struct {
	ID          string
	Name        string
	Description string
	Price       string
	Created     string
	ViewURL     string
	EditURL     string
	DeleteURL   string
}

// ProductList is the product table with its delete confirmation.
type ProductList struct {
	Rows   []ProductRow
	Dialog *DeleteDialog
}

// Empty reports whether there is nothing to list.
func (l ProductList) Empty() bool { return len(l.Rows) == 0 }

// List builds the table rows in the given order.
func (p Presenter) List(products []models.Product) ProductList {
	rows := make([]ProductRow, 0, len(products))
	for _, prod := range products {
		desc := prod.DescriptionText()
		if desc == "" {
			desc = NoDescription
		}
		rows = append(rows, ProductRow{
			ID:          prod.ID,
			Name:        prod.Name,
			Description: truncate(desc, descriptionMaxRunes),
			Price:       p.Money.Format(prod.Price),
			Created:     p.date(prod.CreatedAt),
			ViewURL:     ListPath + "/" + prod.ID,
			EditURL:     ListPath + "/" + prod.ID + "/edit",
			DeleteURL:   ListPath + "?delete=" + prod.ID,
		})
	}
	return ProductList{Rows: rows, Dialog: &DeleteDialog{}}
}

// ProductDetail is the detail card of a single product.
type ProductDetail struct {
	ID          string
	Name        string
	Description string
	Price       string
	Created     string
	Updated     string
	EditURL     string
}

// Detail formats a single product.
func (p Presenter) Detail(prod models.Product) ProductDetail {
	desc := prod.DescriptionText()
	if desc == "" {
		desc = NoDescriptionProvided
	}
	return ProductDetail{
		ID:          prod.ID,
		Name:        prod.Name,
		Description: desc,
		Price:       p.Money.Format(prod.Price),
		Created:     p.date(prod.CreatedAt),
		Updated:     p.date(prod.UpdatedAt),
		EditURL:     ListPath + "/" + prod.ID + "/edit",
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
