package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/models"
)

// Cache is a cache.Store backed by SQLite.
type Cache struct {
	db     *sql.DB
	opts   cache.Options
	hits   atomic.Int64
	misses atomic.Int64
}

var _ cache.Store = (*Cache)(nil)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	handle TEXT NOT NULL UNIQUE,
	model TEXT NOT NULL,
	payload TEXT NOT NULL,
	system_instruction TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

const selectEntry = `SELECT handle, model, payload, system_instruction, display_name, created_at, expires_at FROM cache_entries`

// New opens the database at dbPath and creates the cache table.
func New(dbPath string, opts ...cache.Option) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, opts: cache.BuildOptions(opts...)}, nil
}

// Create stores the content under a new handle.
func (c *Cache) Create(ctx context.Context, n models.NewCacheEntry) (*models.CacheEntry, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	now := c.opts.Clock.Now()
	expires, err := cache.ExpiresAt(now, n.TTL)
	if err != nil {
		return nil, err
	}
	e := &models.CacheEntry{
		Handle:            cache.NewHandle(),
		ModelID:           n.ModelID,
		Payload:           cache.ClonePayload(n.Payload),
		SystemInstruction: n.SystemInstruction,
		DisplayName:       n.DisplayName,
		CreatedAt:         now,
		ExpiresAt:         expires,
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (handle, model, payload, system_instruction, display_name, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Handle, e.ModelID, string(payload), e.SystemInstruction, e.DisplayName, now.UnixNano(), e.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache create: %w", err)
	}

	c.opts.Logger.Debug().Str("handle", e.Handle).Str("model", e.ModelID).Time("expires_at", e.ExpiresAt).Msg("cache entry created")
	return e, nil
}

// Get returns the entry if it exists and has not expired.
func (c *Cache) Get(ctx context.Context, handle string) (*models.CacheEntry, error) {
	e, err := scanEntry(c.db.QueryRowContext(ctx, selectEntry+` WHERE handle = ?`, handle))
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, cache.NotFound(handle)
	}
	if err != nil {
		return nil, err
	}
	if e.Expired(c.opts.Clock.Now()) {
		c.misses.Add(1)
		return nil, cache.NotFound(handle)
	}
	c.hits.Add(1)
	return e, nil
}

// List returns unexpired entries in creation order.
func (c *Cache) List(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		selectEntry+` WHERE expires_at > ? ORDER BY seq ASC`, c.opts.Clock.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	out := []models.CacheEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Delete removes the entry, expired or not.
func (c *Cache) Delete(ctx context.Context, handle string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	if err := requireRow(res, handle); err != nil {
		return err
	}
	c.opts.Logger.Debug().Str("handle", handle).Msg("cache entry deleted")
	return nil
}

// ExtendTTL resets the expiry of a live entry to now+ttl.
func (c *Cache) ExtendTTL(ctx context.Context, handle string, ttl time.Duration) (*models.CacheEntry, error) {
	now := c.opts.Clock.Now()
	expires, err := cache.ExpiresAt(now, ttl)
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE cache_entries SET expires_at = ? WHERE handle = ? AND expires_at > ?`,
		expires.UnixNano(), handle, now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache extend: %w", err)
	}
	if err := requireRow(res, handle); err != nil {
		return nil, err
	}
	e, err := scanEntry(tx.QueryRowContext(ctx, selectEntry+` WHERE handle = ?`, handle))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	c.opts.Logger.Debug().Str("handle", handle).Time("expires_at", e.ExpiresAt).Msg("cache entry extended")
	return e, nil
}

// Purge removes expired entries.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, c.opts.Clock.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns cache counts and lookup counters.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var stats models.CacheStats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) FROM cache_entries`,
		c.opts.Clock.Now().UnixNano(),
	).Scan(&stats.Entries, &stats.Active)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	return stats, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.CacheEntry, error) {
	var e models.CacheEntry
	var payload string
	var createdAt, expiresAt int64
	err := row.Scan(&e.Handle, &e.ModelID, &payload, &e.SystemInstruction, &e.DisplayName, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &e, nil
}

func requireRow(res sql.Result, handle string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return cache.NotFound(handle)
	}
	return nil
}
