package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache(10)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetBytes(ctx, "a", []byte("1"), time.Minute))
	b, ok, err := c.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheEvictsSoonestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache(2)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetBytes(ctx, "long", []byte("x"), time.Hour))
	require.NoError(t, c.SetBytes(ctx, "short", []byte("y"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "new", []byte("z"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.GetBytes(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes(ctx, "long")
	assert.True(t, ok)
}

func TestPredictionKey(t *testing.T) {
	at := time.Unix(100, 0)
	k1 := PredictionKey("random_forest", at, []byte(`{"rows":[1]}`))
	k2 := PredictionKey("random_forest", at, []byte(`{"rows":[2]}`))
	k3 := PredictionKey("random_forest", at.Add(time.Second), []byte(`{"rows":[1]}`))

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, k1, PredictionKey("random_forest", at, []byte(`{"rows":[1]}`)))
	assert.Contains(t, k1, "cryptovol:pred:random_forest:")
}
