package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache[string](16, time.Minute)

	_, ok := c.Get("forsen")
	assert.False(t, ok)

	c.Set("forsen", "22484632")
	v, ok := c.Get("forsen")
	require.True(t, ok)
	assert.Equal(t, "22484632", v)

	c.ClearKey("forsen")
	_, ok = c.Get("forsen")
	assert.False(t, ok)

	c.Set("a", "1")
	c.Set("b", "2")
	c.ClearAll()
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCacheExpires(t *testing.T) {
	c := NewCache[int](16, 50*time.Millisecond)
	c.Set("k", 1)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCacheGetOrLoad(t *testing.T) {
	c := NewCache[string](16, time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		return "loaded", nil
	}

	for range 3 {
		v, err := c.GetOrLoad(ctx, "k", load)
		require.NoError(t, err)
		assert.Equal(t, "loaded", v)
	}
	assert.Equal(t, int32(1), calls.Load())

	boom := errors.New("boom")
	_, err := c.GetOrLoad(ctx, "bad", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get("bad")
	assert.False(t, ok)
}
