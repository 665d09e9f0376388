// Package sqlite persists prompt templates in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
)

// Store is a prompts.Store backed by SQLite.
type Store struct {
	db   *sql.DB
	opts prompts.Options
}

var _ prompts.Store = (*Store)(nil)

const createTables = `
CREATE TABLE IF NOT EXISTS prompt_templates (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS prompt_versions (
	template_id TEXT NOT NULL,
	version_id INTEGER NOT NULL,
	body TEXT NOT NULL,
	model_id TEXT NOT NULL DEFAULT '',
	system_instruction TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	PRIMARY KEY (template_id, version_id)
);
`

// New opens the database at dbPath and creates the prompt tables.
func New(dbPath string, opts ...prompts.Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open prompt db: %w", err)
	}
	// A single connection serializes transactions, so max(version_id) cannot race.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate prompt db: %w", err)
	}

	return &Store{db: db, opts: prompts.BuildOptions(opts...)}, nil
}

// Create inserts the template row and version 1 in one transaction.
func (s *Store) Create(ctx context.Context, name string, snap models.PromptSnapshot) (*models.PromptTemplate, error) {
	if err := prompts.ValidateName(name); err != nil {
		return nil, err
	}
	if err := prompts.ValidateSnapshot(snap); err != nil {
		return nil, err
	}

	now := s.opts.Clock.Now()
	t := &models.PromptTemplate{
		ID:        uuid.NewString(),
		Name:      name,
		Versions:  []models.PromptVersion{{VersionID: 1, Snapshot: snap, CreatedAt: now}},
		CreatedAt: now,
	}
	t.Present()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_templates (id, name, created_at) VALUES (?, ?, ?)`,
			t.ID, t.Name, now.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		return insertVersion(ctx, tx, t.ID, t.Versions[0])
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Debug().Str("id", t.ID).Str("name", name).Msg("prompt template created")
	return t, nil
}

// CreateVersion appends snap as version max+1.
func (s *Store) CreateVersion(ctx context.Context, id string, snap models.PromptSnapshot) (*models.PromptVersion, error) {
	if err := prompts.ValidateSnapshot(snap); err != nil {
		return nil, err
	}

	var v models.PromptVersion
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		v, err = s.appendVersion(ctx, tx, id, snap)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Debug().Str("id", id).Int("version", v.VersionID).Msg("prompt version created")
	return &v, nil
}

func (s *Store) appendVersion(ctx context.Context, tx *sql.Tx, id string, snap models.PromptSnapshot) (models.PromptVersion, error) {
	var maxID sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(version_id) FROM prompt_versions WHERE template_id = ?`, id,
	).Scan(&maxID)
	if err != nil {
		return models.PromptVersion{}, fmt.Errorf("max version: %w", err)
	}
	if !maxID.Valid {
		return models.PromptVersion{}, prompts.NotFound(id)
	}

	v := models.PromptVersion{
		VersionID: int(maxID.Int64) + 1,
		Snapshot:  snap,
		CreatedAt: s.opts.Clock.Now(),
	}
	if err := insertVersion(ctx, tx, id, v); err != nil {
		return models.PromptVersion{}, err
	}
	return v, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, id string, v models.PromptVersion) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO prompt_versions (template_id, version_id, body, model_id, system_instruction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, v.VersionID, v.Snapshot.Body, v.Snapshot.ModelID, v.Snapshot.SystemInstruction, v.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// Get loads the template and its full history in one read transaction.
func (s *Store) Get(ctx context.Context, id string) (*models.PromptTemplate, error) {
	t := &models.PromptTemplate{ID: id}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var createdAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT name, created_at FROM prompt_templates WHERE id = ?`, id,
		).Scan(&t.Name, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return prompts.NotFound(id)
		}
		if err != nil {
			return fmt.Errorf("get template: %w", err)
		}
		t.CreatedAt = fromNanos(createdAt)

		rows, err := tx.QueryContext(ctx,
			`SELECT version_id, body, model_id, system_instruction, created_at
			 FROM prompt_versions WHERE template_id = ? ORDER BY version_id ASC`, id,
		)
		if err != nil {
			return fmt.Errorf("query versions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVersion(rows)
			if err != nil {
				return err
			}
			t.Versions = append(t.Versions, v)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate versions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// A template row without versions is half-written or half-deleted.
	if len(t.Versions) == 0 {
		return nil, prompts.NotFound(id)
	}
	t.Present()
	return t, nil
}

// GetVersion loads a single version.
func (s *Store) GetVersion(ctx context.Context, id string, versionID int) (*models.PromptVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version_id, body, model_id, system_instruction, created_at
		 FROM prompt_versions WHERE template_id = ? AND version_id = ?`, id, versionID,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, xerr := s.exists(ctx, id); xerr == nil && !exists {
			return nil, prompts.NotFound(id)
		}
		return nil, prompts.VersionNotFound(id, versionID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_templates WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("template exists: %w", err)
	}
	return n > 0, nil
}

// Rename updates the template name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	if err := prompts.ValidateName(name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE prompt_templates SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename template: %w", err)
	}
	return requireRow(res, id)
}

// ListTemplates returns templates in creation order.
func (s *Store) ListTemplates(ctx context.Context) ([]models.TemplateSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM prompt_templates ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []models.TemplateSummary{}
	for rows.Next() {
		var ts models.TemplateSummary
		if err := rows.Scan(&ts.ID, &ts.Name); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// ListVersions returns version ids ascending.
func (s *Store) ListVersions(ctx context.Context, id string) ([]models.VersionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, created_at FROM prompt_versions WHERE template_id = ? ORDER BY version_id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []models.VersionInfo
	for rows.Next() {
		var vi models.VersionInfo
		var createdAt int64
		if err := rows.Scan(&vi.VersionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		vi.CreatedAt = fromNanos(createdAt)
		out = append(out, vi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	if len(out) == 0 {
		return nil, prompts.NotFound(id)
	}
	return out, nil
}

// RestoreVersion copies an old snapshot forward as a new version.
func (s *Store) RestoreVersion(ctx context.Context, id string, versionID int) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT version_id, body, model_id, system_instruction, created_at
			 FROM prompt_versions WHERE template_id = ? AND version_id = ?`, id, versionID,
		)
		old, err := scanVersion(row)
		if errors.Is(err, sql.ErrNoRows) {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_templates WHERE id = ?`, id).Scan(&n); err != nil {
				return fmt.Errorf("template exists: %w", err)
			}
			if n == 0 {
				return prompts.NotFound(id)
			}
			return prompts.VersionNotFound(id, versionID)
		}
		if err != nil {
			return err
		}
		v, err = s.appendVersion(ctx, tx, id, old.Snapshot)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Debug().Str("id", id).Int("from", versionID).Int("version", v.VersionID).Msg("prompt version restored")
	return &v, nil
}

// Delete removes the template and its versions.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		if err := requireRow(res, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM prompt_versions WHERE template_id = ?`, id); err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.opts.Logger.Debug().Str("id", id).Msg("prompt template deleted")
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (models.PromptVersion, error) {
	var v models.PromptVersion
	var createdAt int64
	err := row.Scan(&v.VersionID, &v.Snapshot.Body, &v.Snapshot.ModelID, &v.Snapshot.SystemInstruction, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, err
	}
	if err != nil {
		return v, fmt.Errorf("scan version: %w", err)
	}
	v.CreatedAt = fromNanos(createdAt)
	return v, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return prompts.NotFound(id)
	}
	return nil
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
