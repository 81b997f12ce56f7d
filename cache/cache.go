// Package cache memoizes the index-independent part of a file analysis.
//
// Entries are keyed by the file URI and content, so a stale entry is never
// served for changed content. A cache miss or a cache error only costs time;
// results are always rebuildable from source.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache: closed")

// Cache is a byte-oriented key/value store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Close() error
}

// Pruner is a cache that can drop entries not written since a point in time.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// prefixed namespaces the keys of another cache.
type prefixed struct {
	Cache
	prefix string
}

// WithPrefix returns a view of c whose keys all start with prefix. Closing
// the view closes c.
func WithPrefix(c Cache, prefix string) Cache {
	return &prefixed{Cache: c, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.Cache.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, val []byte) error {
	return p.Cache.Set(ctx, p.prefix+key, val)
}

// Key derives the cache key of a file's content.
func Key(uri string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(uri))
	h.Write([]byte{0})
	h.Write(content)

	return hex.EncodeToString(h.Sum(nil))
}

// GetBundle reads and decodes the analysis bundle stored for a file.
func GetBundle(ctx context.Context, c Cache, uri string, content []byte) (analysis.Bundle, bool, error) {
	raw, ok, err := c.Get(ctx, Key(uri, content))
	if err != nil || !ok {
		return analysis.Bundle{}, false, err
	}

	var b analysis.Bundle

	err = json.Unmarshal(raw, &b)
	if err != nil {
		return analysis.Bundle{}, false, fmt.Errorf("decode bundle for %s: %w", uri, err)
	}

	return b, true, nil
}

// SetBundle encodes and stores the analysis bundle of a file.
func SetBundle(ctx context.Context, c Cache, uri string, content []byte, b analysis.Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle for %s: %w", uri, err)
	}

	return c.Set(ctx, Key(uri, content), raw)
}

// Open returns the cache selected by cfg, or nil when caching is disabled.
func Open(cfg *phpintel.Config, logger *zap.Logger) (Cache, error) {
	switch cfg.Cache.Driver {
	case "", phpintel.CacheDriverNone:
		return nil, nil
	case phpintel.CacheDriverMemory:
		return NewMemory(), nil
	case phpintel.CacheDriverSQLite:
		return OpenSQLite(cfg.CachePath(), logger)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}
