// Package cache holds the rendered-listing cache and the invalidation messages
// that mark it stale after a mutation.
package cache

import (
	"context"

	"catalog/internal/models"
)

// ViewProducts names the product listing view.
const ViewProducts = "/products"

// Invalidator marks a cached view stale so that its next access recomputes it.
type Invalidator interface {
	Invalidate(ctx context.Context, view string) error
}

// Generation identifies a cached view between two invalidations. Every
// Invalidate moves the view to a new generation.
type Generation uint64

// ListCache caches the product listing.
type ListCache interface {
	Invalidator
	// Get returns the cached listing and whether it was present, along with the
	// current generation. On a miss the caller passes that generation to Set.
	Get(ctx context.Context) ([]models.Product, Generation, bool)
	// Set stores products read while the view was at generation seen. It is a
	// no-op when the view has been invalidated since.
	Set(ctx context.Context, products []models.Product, seen Generation) error
}

// Nop never caches anything. It backs CACHE_DRIVER=none.
type Nop struct{}

func (Nop) Invalidate(context.Context, string) error                 { return nil }
func (Nop) Get(context.Context) ([]models.Product, Generation, bool) { return nil, 0, false }
func (Nop) Set(context.Context, []models.Product, Generation) error  { return nil }
