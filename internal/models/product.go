package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// DescriptionText returns the description or an empty string when it is absent.
func (p Product) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}
