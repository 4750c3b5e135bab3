package storage

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
)

// Cache is a size-bounded string-keyed cache whose entries expire a fixed
// time after they were written.
type Cache[T any] struct {
	outer *otter.Cache[string, T]
}

func NewCache[T any](capacity int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		outer: otter.Must(&otter.Options[string, T]{
			MaximumSize:      capacity,
			ExpiryCalculator: otter.ExpiryWriting[string, T](ttl),
		}),
	}
}

func (c *Cache[T]) Set(key string, val T) {
	c.outer.Set(key, val)
}

func (c *Cache[T]) Get(key string) (T, bool) {
	return c.outer.GetIfPresent(key)
}

// GetOrLoad returns the cached value or calls load once for concurrent
// callers of the same key. Failed loads are not cached.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	return c.outer.Get(ctx, key, otter.LoaderFunc[string, T](func(ctx context.Context, _ string) (T, error) {
		return load(ctx)
	}))
}

func (c *Cache[T]) ClearKey(key string) {
	c.outer.Invalidate(key)
}

func (c *Cache[T]) ClearAll() {
	c.outer.InvalidateAll()
}

func (c *Cache[T]) Len() int {
	return c.outer.EstimatedSize()
}
