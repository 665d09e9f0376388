package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/tracker"
)

// Enforcer checks token usage against budget policies.
type Enforcer struct {
	policies []models.BudgetPolicy
	tracker  tracker.Tracker
	clock    clock.Clock
}

// New creates an Enforcer with the given policies and tracker.
func New(policies []models.BudgetPolicy, t tracker.Tracker, c clock.Clock) *Enforcer {
	if c == nil {
		c = clock.Real{}
	}
	return &Enforcer{policies: policies, tracker: t, clock: c}
}

// Check returns ErrBudgetExceeded if any policy covering model is used up.
func (e *Enforcer) Check(ctx context.Context, model string) error {
	for _, p := range e.applicablePolicies(model) {
		used, err := e.used(ctx, p, model)
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if used >= p.MaxTokens {
			return fmt.Errorf("%w: %s budget of %d tokens for %q", models.ErrBudgetExceeded, p.Period, p.MaxTokens, p.Model)
		}
	}
	return nil
}

// Status returns usage against every configured policy.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	statuses := make([]models.BudgetStatus, 0, len(e.policies))
	for _, p := range e.policies {
		used, err := e.used(ctx, p, p.Model)
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		remaining := p.MaxTokens - used
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.BudgetStatus{
			Policy:    p,
			Used:      used,
			Remaining: remaining,
		})
	}
	return statuses, nil
}

// used sums tokens for the policy window. Wildcard policies count every model.
func (e *Enforcer) used(ctx context.Context, p models.BudgetPolicy, model string) (int64, error) {
	if p.Model == "*" {
		model = ""
	}
	return e.tracker.TotalByModel(ctx, model, periodStart(p.Period, e.clock.Now()))
}

func (e *Enforcer) applicablePolicies(model string) []models.BudgetPolicy {
	var result []models.BudgetPolicy
	for _, p := range e.policies {
		if p.Model == "*" || p.Model == model {
			result = append(result, p)
		}
	}
	return result
}

func periodStart(period models.BudgetPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
