package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"catalog/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "catalog:view:"

// Redis is a ListCache shared by every instance pointing at the same Redis
// server.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, addr, password string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func redisKey(view string) string {
	return redisKeyPrefix + view
}

func redisGenKey(view string) string {
	return redisKeyPrefix + view + ":gen"
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Redis) generation(ctx context.Context, c getter) (Generation, error) {
	n, err := c.Get(ctx, redisGenKey(ViewProducts)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return Generation(n), err
}

// Get returns the cached listing. Any Redis or decoding error counts as a miss.
// The generation is read before the listing so that an invalidation racing
// with this read always wins.
func (r *Redis) Get(ctx context.Context) ([]models.Product, Generation, bool) {
	gen, err := r.generation(ctx, r.rdb)
	if err != nil {
		log.Printf("cache: redis get generation failed: %v", err)
	}
	val, err := r.rdb.Get(ctx, redisKey(ViewProducts)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: redis get failed: %v", err)
		}
		return nil, gen, false
	}
	var products []models.Product
	if err := json.Unmarshal(val, &products); err != nil {
		log.Printf("cache: discarding undecodable listing: %v", err)
		return nil, gen, false
	}
	return products, gen, true
}

// Set stores the listing in a transaction watching the generation key, so an
// invalidation from any instance after seen cancels the write.
func (r *Redis) Set(ctx context.Context, products []models.Product, seen Generation) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("cache: encode listing: %w", err)
	}
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.generation(ctx, tx)
		if err != nil {
			return err
		}
		if cur != seen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey(ViewProducts), data, r.ttl)
			return nil
		})
		return err
	}, redisGenKey(ViewProducts))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, view string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, redisGenKey(view))
		pipe.Del(ctx, redisKey(view))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: redis invalidate %s: %w", view, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
