package repositories

import (
	"context"
	"errors"

	"catalog/internal/models"
)

// ErrProductNotFound is returned when no product matches the given ID.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// GetAll returns every product, newest first.
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// Update replaces name, description and price of the product identified by
	// product.ID and refreshes UpdatedAt.
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
