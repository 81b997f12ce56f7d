package cache_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/cache"
)

var _ cache.Pruner = (*cache.SQLite)(nil)

func backends(t *testing.T) map[string]cache.Cache {
	t.Helper()

	sqlite, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "nested", "cache.db"), zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]cache.Cache{
		"memory": cache.NewMemory(),
		"sqlite": sqlite,
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	a := cache.Key("file:///a.php", []byte("<?php"))

	assert.Len(t, a, 64)
	assert.Equal(t, a, cache.Key("file:///a.php", []byte("<?php")))
	assert.NotEqual(t, a, cache.Key("file:///b.php", []byte("<?php")))
	assert.NotEqual(t, a, cache.Key("file:///a.php", []byte("<?php ")))

	// The separator keeps uri/content boundaries apart.
	assert.NotEqual(t, cache.Key("ab", []byte("c")), cache.Key("a", []byte("bc")))
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := c.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			val := []byte(strings.Repeat("definition ", 100))
			require.NoError(t, c.Set(ctx, "k", val))

			got, ok, err := c.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, val, got)

			require.NoError(t, c.Set(ctx, "k", []byte("v2")))

			got, _, err = c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)
		})
	}
}

func TestCache_Closed(t *testing.T) {
	t.Parallel()

	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Close())

			_, _, err := c.Get(context.Background(), "k")
			require.ErrorIs(t, err, cache.ErrClosed)
			require.ErrorIs(t, c.Set(context.Background(), "k", nil), cache.ErrClosed)
		})
	}
}

func TestBundle_RoundTrip(t *testing.T) {
	t.Parallel()

	src := []byte(`<?php
namespace App;

/** A thing. */
class Thing extends Base
{
    public function run(int $n): string
    {
        return static::class;
    }
}
`)

	f := analysis.NewAnalyzer(nil).Analyze("file:///thing.php", src)

	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := cache.GetBundle(ctx, c, "file:///thing.php", src)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, cache.SetBundle(ctx, c, "file:///thing.php", src, f.Bundle()))

			b, ok, err := cache.GetBundle(ctx, c, "file:///thing.php", src)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, f.Bundle(), b)

			// Different content never hits.
			_, ok, err = cache.GetBundle(ctx, c, "file:///thing.php", append(src, '\n'))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestWithPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory()

	a := cache.WithPrefix(c, "a:")
	b := cache.WithPrefix(c, "b:")

	require.NoError(t, a.Set(ctx, "k", []byte("1")))

	got, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(ctx, "a:k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Close())

	_, _, err = b.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrClosed)
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := cache.OpenSQLite(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c, err = cache.OpenSQLite(path, zap.NewNop())
	require.NoError(t, err)

	defer c.Close()

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	n, err := c.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		driver  string
		wantNil bool
		wantErr bool
	}{
		{driver: phpintel.CacheDriverNone, wantNil: true},
		{driver: phpintel.CacheDriverMemory},
		{driver: phpintel.CacheDriverSQLite},
		{driver: "redis", wantNil: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := phpintel.DefaultConfig(dir)
			cfg.Cache.Driver = tt.driver

			c, err := cache.Open(cfg, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			if tt.wantNil {
				assert.Nil(t, c)

				return
			}

			require.NotNil(t, c)
			assert.NoError(t, c.Close())
		})
	}
}
