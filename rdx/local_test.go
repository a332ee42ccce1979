package rdx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache()
	defer c.Close()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	buf := []byte("hello")
	require.NoError(t, c.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'j'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(got))
}

func TestLocalCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestOpenWithoutAddrIsLocal(t *testing.T) {
	_, ok := Open(context.Background(), "", "").(*LocalCache)
	assert.True(t, ok)
}
