package cache

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"similarity_engine/internal/model"
)

// fakeMemcache 是内存中的 memcacheClient
type fakeMemcache struct {
	mu    sync.Mutex
	items map[string]*memcache.Item
	err   error
}

func newFakeMemcache() *fakeMemcache {
	return &fakeMemcache{items: make(map[string]*memcache.Item)}
}

func (f *fakeMemcache) Get(key string) (*memcache.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	it, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return it, nil
}

func (f *fakeMemcache) Set(item *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.items[item.Key] = item
	return nil
}

func (f *fakeMemcache) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.items, key)
	return nil
}

func TestMemcacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMemcache()
	c := newMemcache(fake, time.Hour, "")

	ok, err := c.Contains(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Add(ctx, "42", sampleTracks))
	require.Contains(t, fake.items, DefaultKeyPrefix+"42")
	assert.Equal(t, int32(3600), fake.items[DefaultKeyPrefix+"42"].Expiration)

	ok, err = c.Contains(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.FetchTracks(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, sampleTracks, got)
}

func TestMemcacheEmptyResult(t *testing.T) {
	ctx := context.Background()
	c := newMemcache(newFakeMemcache(), 0, "")

	require.NoError(t, c.Add(ctx, "none", []model.Item{}))
	got, err := c.FetchTracks(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemcacheExpiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		ttl  time.Duration
		want int32
	}{
		{0, 0},
		{500 * time.Millisecond, 1},
		{time.Hour, 3600},
		{30 * 24 * time.Hour, 2592000},
		// 超过 30 天写绝对时间戳
		{30*24*time.Hour + time.Second, int32(now.Add(30*24*time.Hour + time.Second).Unix())},
		{100 * 365 * 24 * time.Hour, math.MaxInt32},
	}
	for _, tc := range cases {
		fake := newFakeMemcache()
		c := newMemcache(fake, tc.ttl, "")
		c.now = func() time.Time { return now }

		require.NoError(t, c.Add(context.Background(), "42", sampleTracks))

		assert.Equal(t, tc.want, fake.items[DefaultKeyPrefix+"42"].Expiration, tc.ttl.String())
	}
}

func TestMemcacheNonFiniteScores(t *testing.T) {
	ctx := context.Background()
	c := newMemcache(newFakeMemcache(), time.Hour, "")

	require.NoError(t, c.Add(ctx, "42", []model.Item{{Name: "a", Score: math.NaN()}, {Name: "b", Score: math.Inf(-1)}}))
	got, err := c.FetchTracks(ctx, "42")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0].Score))
	assert.True(t, math.IsInf(got[1].Score, -1))
}

func TestMemcacheMiss(t *testing.T) {
	_, err := newMemcache(newFakeMemcache(), 0, "").FetchTracks(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemcacheErrorsAreWrapped(t *testing.T) {
	backendErr := errors.New("server down")
	fake := newFakeMemcache()
	fake.err = backendErr
	c := newMemcache(fake, 0, "")

	_, err := c.Contains(context.Background(), "42")
	assert.ErrorIs(t, err, backendErr)
	assert.ErrorIs(t, c.Add(context.Background(), "42", sampleTracks), backendErr)
}

func TestMemcacheHashesIllegalKeys(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMemcache()
	c := newMemcache(fake, 0, "")

	for _, id := range []model.ItemID{"has space", model.ItemID(strings.Repeat("x", 300))} {
		require.NoError(t, c.Add(ctx, id, sampleTracks))
		got, err := c.FetchTracks(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, sampleTracks, got)
	}
	for k := range fake.items {
		assert.True(t, validMemcacheKey(k), k)
	}
}

func TestMemcacheDelete(t *testing.T) {
	ctx := context.Background()
	c := newMemcache(newFakeMemcache(), 0, "")
	require.NoError(t, c.Add(ctx, "42", sampleTracks))

	require.NoError(t, c.Delete("42"))
	require.NoError(t, c.Delete("42"))

	ok, err := c.Contains(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}
