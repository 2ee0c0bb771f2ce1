package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "key1", "value1", 0)
	require.NoError(t, err)

	v, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "ttl_key", "val", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "ttl_key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", 0)
	_ = c.Del(ctx, "k")
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", 0)
	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDelRemovesEveryKind(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_, _ = c.HIncrBy(ctx, "h", "f", 1)
	_, _ = c.ZIncrBy(ctx, "z", "m", 1)
	_ = c.LPush(ctx, "l", "x")

	require.NoError(t, c.Del(ctx, "h", "z", "l"))
	all, _ := c.HGetAll(ctx, "h")
	assert.Empty(t, all)
	members, _ := c.ZRevRange(ctx, "z", 0, -1)
	assert.Empty(t, members)
	items, _ := c.LRange(ctx, "l", 0, -1)
	assert.Empty(t, items)
}

func TestHashCounters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	n, err := c.HIncrBy(ctx, "h", "follow_player", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, _ = c.HIncrBy(ctx, "h", "follow_player", 2)
	assert.Equal(t, int64(3), n)
	_, _ = c.HIncrBy(ctx, "h", "hold_position", 1)

	all, err := c.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"follow_player": "3", "hold_position": "1"}, all)
}

func TestZSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.ZIncrBy(ctx, "z", "alice", 100)
	require.NoError(t, err)
	_, _ = c.ZIncrBy(ctx, "z", "bob", 200)
	_, _ = c.ZIncrBy(ctx, "z", "carol", 50)

	members, err := c.ZRevRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice", "carol"}, members)

	score, err := c.ZIncrBy(ctx, "z", "carol", 200)
	require.NoError(t, err)
	assert.Equal(t, 250.0, score)
	members, _ = c.ZRevRange(ctx, "z", 0, 0)
	assert.Equal(t, []string{"carol"}, members)

	score, err = c.ZScore(ctx, "z", "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(100), score)

	_, err = c.ZScore(ctx, "z", "dave")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.LPush(ctx, "l", "c", "b", "a"))
	items, err := c.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	// LPush "c" then "b" then "a" gives head a, b, c
	assert.Equal(t, []string{"a", "b", "c"}, items)

	require.NoError(t, c.LTrim(ctx, "l", 0, 1))
	items, _ = c.LRange(ctx, "l", 0, -1)
	assert.Equal(t, []string{"a", "b"}, items)

	require.NoError(t, c.LTrim(ctx, "l", 5, 10))
	items, _ = c.LRange(ctx, "l", 0, -1)
	assert.Empty(t, items)
}

func TestCloseTwice(t *testing.T) {
	c, err := NewCache(Config{})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
