package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	var out string
	ok, err := c.Get(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	ok, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", out)
}

func TestMemoryCache_ExpiresLazily(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", -time.Second))

	var out string
	ok, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	c.mu.Lock()
	_, stillPresent := c.store["k"]
	c.mu.Unlock()
	assert.False(t, stillPresent, "expired entry should be evicted on read")
}
