package cache

import (
	"context"
	"fmt"
	"log"
)

// Publisher sends a view invalidation to other instances.
type Publisher interface {
	PublishInvalidation(ctx context.Context, view string) error
}

// Broadcaster invalidates the local cache and tells other instances to do the
// same. Remote messages are applied with ApplyRemote so they are not
// re-published.
type Broadcaster struct {
	local     Invalidator
	publisher Publisher
}

// NewBroadcaster wraps local. A nil publisher makes it purely local.
func NewBroadcaster(local Invalidator, publisher Publisher) *Broadcaster {
	return &Broadcaster{local: local, publisher: publisher}
}

// Invalidate drops the view locally, then publishes. A publish failure is
// returned but the local invalidation has already happened.
func (b *Broadcaster) Invalidate(ctx context.Context, view string) error {
	if err := b.local.Invalidate(ctx, view); err != nil {
		return fmt.Errorf("local invalidation of %s: %w", view, err)
	}
	if b.publisher == nil {
		return nil
	}
	if err := b.publisher.PublishInvalidation(ctx, view); err != nil {
		return fmt.Errorf("broadcast invalidation of %s: %w", view, err)
	}
	return nil
}

// ApplyRemote handles an invalidation received from another instance.
func (b *Broadcaster) ApplyRemote(ctx context.Context, view string) error {
	log.Printf("cache: remote invalidation of %s", view)
	return b.local.Invalidate(ctx, view)
}
