package pagecache

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() {
		cache.Close()
	})
	return cache
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestCacheHitAndMiss(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t, time.Hour)

	_, err := cache.Get(ctx, "", mustParse(t, "https://archiveofourown.org/series/1?page=2"))
	require.ErrorIs(t, err, ErrMiss)

	err = cache.Set(ctx, "", mustParse(t, "https://archiveofourown.org/series/1?page=2"), []byte("<html></html>"))
	require.NoError(t, err)

	body, err := cache.Get(ctx, "", mustParse(t, "https://ArchiveOfOurOwn.org:443/series/1?page=2#main"))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(body))

	err = cache.Set(ctx, "", mustParse(t, "https://archiveofourown.org/series/1?page=2"), []byte("updated"))
	require.NoError(t, err)
	body, err = cache.Get(ctx, "", mustParse(t, "https://archiveofourown.org/series/1?page=2"))
	require.NoError(t, err)
	require.Equal(t, "updated", string(body))
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t, time.Minute)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	u := mustParse(t, "https://archiveofourown.org/works/7")
	require.NoError(t, cache.Set(ctx, "", u, []byte("work")))

	now = now.Add(30 * time.Second)
	_, err := cache.Get(ctx, "", u)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = cache.Get(ctx, "", u)
	require.ErrorIs(t, err, ErrMiss)

	var count int
	require.NoError(t, cache.db.QueryRow("select count(*) from page").Scan(&count))
	require.Equal(t, 0, count)
}

func TestKeySortsQuery(t *testing.T) {
	a := Key("", mustParse(t, "https://archiveofourown.org/works/7?view_adult=true&b=1"))
	b := Key("", mustParse(t, "https://archiveofourown.org/works/7?b=1&view_adult=true"))
	require.Equal(t, a, b)
}

func TestCacheNamespaces(t *testing.T) {
	ctx := context.Background()
	cache := openTestCache(t, time.Hour)
	u := mustParse(t, "https://archiveofourown.org/works/7")

	require.NoError(t, cache.Set(ctx, "alice", u, []byte("restricted view")))

	_, err := cache.Get(ctx, "", u)
	require.ErrorIs(t, err, ErrMiss)

	body, err := cache.Get(ctx, "alice", u)
	require.NoError(t, err)
	require.Equal(t, "restricted view", string(body))
}
