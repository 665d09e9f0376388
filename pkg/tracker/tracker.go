package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/promptlab/pkg/models"
)

// Tracker records and queries token usage of generation calls.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// TotalByModel returns total tokens used since a given time. An empty
	// model sums over all models.
	TotalByModel(ctx context.Context, model string, since time.Time) (int64, error)
	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]models.UsageRecord, error)
	// Summary returns usage aggregated per model.
	Summary(ctx context.Context) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model TEXT NOT NULL,
	template_id TEXT NOT NULL DEFAULT '',
	version_id INTEGER NOT NULL DEFAULT 0,
	cache_handle TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL,
	cached_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_model_time ON usage_records(model, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (model, template_id, version_id, cache_handle,
		 prompt_tokens, cached_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Model, rec.TemplateID, rec.VersionID, rec.CacheHandle,
		rec.PromptTokens, rec.CachedTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// TotalByModel returns total tokens used since a given time.
func (t *SQLiteTracker) TotalByModel(ctx context.Context, model string, since time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE created_at >= ?`
	args := []any{since.UnixNano()}
	if model != "" {
		query += ` AND model = ?`
		args = append(args, model)
	}

	var total int64
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("total usage: %w", err)
	}
	return total, nil
}

// Recent returns the latest records, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, model, template_id, version_id, cache_handle,
		 prompt_tokens, cached_tokens, completion_tokens, total_tokens, created_at
		 FROM usage_records ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Model, &r.TemplateID, &r.VersionID, &r.CacheHandle,
			&r.PromptTokens, &r.CachedTokens, &r.CompletionTokens, &r.TotalTokens, &createdAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns aggregated usage grouped by model.
func (t *SQLiteTracker) Summary(ctx context.Context) ([]models.UsageSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT model, COUNT(*), SUM(prompt_tokens), SUM(cached_tokens), SUM(completion_tokens), SUM(total_tokens)
		 FROM usage_records GROUP BY model ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Model, &s.RequestCount, &s.TotalPrompt, &s.TotalCached, &s.TotalCompletion, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
