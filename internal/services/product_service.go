package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"catalog/internal/cache"
	"catalog/internal/metrics"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/validation"
)

const (
	MsgCreateFailed = "Failed to create product"
	MsgUpdateFailed = "Failed to update product"
	MsgDeleteFailed = "Failed to delete product"
)

var (
	// ErrFetchProducts is returned when the listing cannot be read.
	ErrFetchProducts = errors.New("failed to fetch products")
	// ErrFetchProduct is returned when a single product cannot be read.
	ErrFetchProduct = errors.New("failed to fetch product")
)

// ActionResult is the outcome of a mutating product action. Exactly one of
// Success, Message or FieldErrors is set.
type ActionResult struct {
	Success     bool
	Message     string
	FieldErrors validation.FieldErrors
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool { return r.Success }

// MarshalJSON encodes the result as {"success":true}, {"error":"message"} or
// {"error":{"field":["message"]}}.
func (r ActionResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Success:
		return json.Marshal(map[string]bool{"success": true})
	case r.FieldErrors != nil:
		return json.Marshal(map[string]validation.FieldErrors{"error": r.FieldErrors})
	default:
		return json.Marshal(map[string]string{"error": r.Message})
	}
}

func succeeded() ActionResult                          { return ActionResult{Success: true} }
func failed(msg string) ActionResult                   { return ActionResult{Message: msg} }
func invalid(errs validation.FieldErrors) ActionResult { return ActionResult{FieldErrors: errs} }

// ProductService implements the product actions: input validation, the single
// repository call, and invalidation of the cached listing.
type ProductService struct {
	repo        repositories.ProductRepository
	listCache   cache.ListCache
	invalidator cache.Invalidator
	metrics     *metrics.Metrics
}

// NewProductService creates a new ProductService. listCache and invalidator
// may be nil: a nil cache disables caching and a nil invalidator falls back to
// invalidating listCache directly.
func NewProductService(repo repositories.ProductRepository, listCache cache.ListCache, invalidator cache.Invalidator, m *metrics.Metrics) *ProductService {
	if listCache == nil {
		listCache = cache.Nop{}
	}
	if invalidator == nil {
		invalidator = listCache
	}
	return &ProductService{
		repo:        repo,
		listCache:   listCache,
		invalidator: invalidator,
		metrics:     m,
	}
}

// ListProducts returns every product, newest first.
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, gen, hit := s.listCache.Get(ctx)
	if hit {
		s.metrics.ObserveCache(true)
		return products, nil
	}
	s.metrics.ObserveCache(false)

	products, err := s.repo.GetAll(ctx)
	if err != nil {
		log.Printf("Error listing products: %v", err)
		return nil, ErrFetchProducts
	}
	if err := s.listCache.Set(ctx, products, gen); err != nil {
		log.Printf("Warning: failed to cache product listing: %v", err)
	}
	return products, nil
}

// GetProduct returns the product with the given ID. A missing product is
// reported with found == false and a nil error.
func (s *ProductService) GetProduct(ctx context.Context, id string) (product *models.Product, found bool, err error) {
	product, err = s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, false, nil
		}
		log.Printf("Error getting product %s: %v", id, err)
		return nil, false, ErrFetchProduct
	}
	return product, true, nil
}

// CreateProduct validates raw and inserts a new product.
func (s *ProductService) CreateProduct(ctx context.Context, raw validation.RawProduct) ActionResult {
	data, errs := validation.Parse(raw)
	if errs != nil {
		s.metrics.ObserveAction("create", "invalid")
		return invalid(errs)
	}

	product := &models.Product{
		Name:        data.Name,
		Description: data.Description,
		Price:       data.Price,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		log.Printf("Error creating product: %v", err)
		s.metrics.ObserveAction("create", "failed")
		return failed(MsgCreateFailed)
	}

	s.invalidateListing(ctx)
	s.metrics.ObserveAction("create", "success")
	return succeeded()
}

// UpdateProduct validates raw and replaces name, description and price of the
// product identified by id.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, raw validation.RawProduct) ActionResult {
	data, errs := validation.Parse(raw)
	if errs != nil {
		s.metrics.ObserveAction("update", "invalid")
		return invalid(errs)
	}

	product := &models.Product{
		ID:          id,
		Name:        data.Name,
		Description: data.Description,
		Price:       data.Price,
	}
	if err := s.repo.Update(ctx, product); err != nil {
		log.Printf("Error updating product %s: %v", id, err)
		s.metrics.ObserveAction("update", "failed")
		return failed(MsgUpdateFailed)
	}

	s.invalidateListing(ctx)
	s.metrics.ObserveAction("update", "success")
	return succeeded()
}

// DeleteProduct permanently removes the product identified by id.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) ActionResult {
	if err := s.repo.Delete(ctx, id); err != nil {
		log.Printf("Error deleting product %s: %v", id, err)
		s.metrics.ObserveAction("delete", "failed")
		return failed(MsgDeleteFailed)
	}

	s.invalidateListing(ctx)
	s.metrics.ObserveAction("delete", "success")
	return succeeded()
}

// invalidateListing is fire-and-forget: the mutation already happened, so a
// failure here is only logged.
func (s *ProductService) invalidateListing(ctx context.Context) {
	if err := s.invalidator.Invalidate(ctx, cache.ViewProducts); err != nil {
		log.Printf("Warning: failed to invalidate %s: %v", cache.ViewProducts, err)
	}
}
