package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteDriverName = "sqlite"

// SQLite persists entries in a single-table SQLite database, zstd-compressed.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	path   string

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

var _ Cache = (*SQLite)(nil)

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory", path)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	// Set pragmas for performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for concurrent readers
		"PRAGMA synchronous=NORMAL", // Balance between safety and performance
		"PRAGMA busy_timeout=5000",  // Wait up to 5 seconds on lock
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()

		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	logger.Debug("Opened analysis cache", zap.String("path", path))

	return &SQLite{
		db:     db,
		logger: logger,
		path:   path,
		enc:    enc,
		dec:    dec,
	}, nil
}

// Get returns the decompressed value stored under key.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	var raw []byte

	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	val, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		s.logger.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(err))

		return nil, false, nil
	}

	return val, true, nil
}

// Set compresses and stores val under key, replacing any previous value.
func (s *SQLite) Set(ctx context.Context, key string, val []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	raw := s.enc.EncodeAll(val, nil)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO entries (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, raw, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	return nil
}

// Prune deletes entries not written since before.
func (s *SQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE updated_at < ?`, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}

	return res.RowsAffected()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database. It is safe to call more than once.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	_ = s.enc.Close()
	s.dec.Close()

	return s.db.Close()
}
