package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
	"github.com/pario-ai/promptlab/pkg/prompts/promptstest"
)

func newTestStore(t *testing.T, dbPath string, clk clock.Clock) *Store {
	t.Helper()
	s, err := New(dbPath, prompts.WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	promptstest.Run(t, func(t *testing.T, clk clock.Clock) prompts.Store {
		return newTestStore(t, filepath.Join(t.TempDir(), "prompts_test.db"), clk)
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "prompts_test.db")
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	clk := clock.NewManual(created)

	s, err := New(dbPath, prompts.WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	tmpl, err := s.Create(ctx, "summarize", models.PromptSnapshot{
		Body:              "Summarize {doc}",
		ModelID:           "gemini-2.0-flash",
		SystemInstruction: "You are concise.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := newTestStore(t, dbPath, clk)
	got, err := reopened.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "summarize" || got.Body != "Summarize {doc}" ||
		got.ModelID != "gemini-2.0-flash" || got.SystemInstruction != "You are concise." {
		t.Errorf("fields did not round-trip: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !got.Versions[0].CreatedAt.Equal(created) {
		t.Errorf("timestamps did not round-trip: %v / %v", got.CreatedAt, got.Versions[0].CreatedAt)
	}
}

func TestGetTemplateWithoutVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "prompts_test.db"), clock.NewManual(time.Unix(0, 0)))

	// A template row with no versions, as seen mid-way through a delete.
	if _, err := s.db.Exec(`INSERT INTO prompt_templates (id, name, created_at) VALUES ('orphan', 'o', 0)`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "orphan"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
