package cache

import (
	"context"
	"sync"
	"time"

	"catalog/internal/models"
)

// Memory is an in-process ListCache. A listing read before an invalidation is
// never stored after it; entries also expire after ttl.
type Memory struct {
	mu       sync.RWMutex
	products []models.Product
	storedAt time.Time
	valid    bool
	gen      Generation
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates a Memory cache. A zero ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context) ([]models.Product, Generation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.valid {
		return nil, m.gen, false
	}
	if m.ttl > 0 && m.now().Sub(m.storedAt) > m.ttl {
		return nil, m.gen, false
	}
	out := make([]models.Product, len(m.products))
	copy(out, m.products)
	return out, m.gen, true
}

func (m *Memory) Set(_ context.Context, products []models.Product, seen Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seen != m.gen {
		return nil
	}
	m.products = make([]models.Product, len(products))
	copy(m.products, products)
	m.storedAt = m.now()
	m.valid = true
	return nil
}

// Invalidate drops the listing when view is ViewProducts; other views are not
// cached here.
func (m *Memory) Invalidate(_ context.Context, view string) error {
	if view != ViewProducts {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = nil
	m.valid = false
	m.gen++
	return nil
}
