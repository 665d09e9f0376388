package budget

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/tracker"
)

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (tracker.Tracker, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "budget_test.db")
	tr, err := tracker.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, context.Background()
}

func TestCheckUnderBudget(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 150, CreatedAt: now})

	e := New([]models.BudgetPolicy{
		{Model: "*", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr, clock.NewManual(now))

	if err := e.Check(ctx, "m1"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckExceeded(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 1100, CreatedAt: now})

	e := New([]models.BudgetPolicy{
		{Model: "m1", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr, clock.NewManual(now))

	if err := e.Check(ctx, "m1"); !errors.Is(err, models.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if err := e.Check(ctx, "m2"); err != nil {
		t.Errorf("policy for m1 must not apply to m2, got %v", err)
	}
}

func TestDailyWindow(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 5000, CreatedAt: now.Add(-24 * time.Hour)})

	daily := New([]models.BudgetPolicy{{Model: "*", MaxTokens: 1000, Period: models.BudgetDaily}}, tr, clock.NewManual(now))
	if err := daily.Check(ctx, "m1"); err != nil {
		t.Errorf("yesterday's usage should not count, got %v", err)
	}

	monthly := New([]models.BudgetPolicy{{Model: "*", MaxTokens: 1000, Period: models.BudgetMonthly}}, tr, clock.NewManual(now))
	if err := monthly.Check(ctx, "m1"); !errors.Is(err, models.ErrBudgetExceeded) {
		t.Errorf("expected monthly budget exceeded, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.UsageRecord{Model: "m1", TotalTokens: 150, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Model: "m2", TotalTokens: 50, CreatedAt: now})

	e := New([]models.BudgetPolicy{
		{Model: "*", MaxTokens: 1000, Period: models.BudgetDaily},
		{Model: "m1", MaxTokens: 100, Period: models.BudgetDaily},
	}, tr, clock.NewManual(now))

	statuses, err := e.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Used != 200 || statuses[0].Remaining != 800 {
		t.Errorf("unexpected wildcard status %+v", statuses[0])
	}
	if statuses[1].Used != 150 || statuses[1].Remaining != 0 {
		t.Errorf("unexpected m1 status %+v", statuses[1])
	}
}
