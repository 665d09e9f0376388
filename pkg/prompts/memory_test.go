package prompts_test

import (
	"context"
	"testing"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
	"github.com/pario-ai/promptlab/pkg/prompts/promptstest"
)

func TestMemoryStore(t *testing.T) {
	promptstest.Run(t, func(t *testing.T, clk clock.Clock) prompts.Store {
		return prompts.NewMemory(prompts.WithClock(clk))
	})
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	s := prompts.NewMemory()
	ctx := context.Background()

	tmpl, err := s.Create(ctx, "t", models.PromptSnapshot{Body: "original"})
	if err != nil {
		t.Fatal(err)
	}
	tmpl.Versions[0].Snapshot.Body = "mutated"
	tmpl.Name = "mutated"

	got, err := s.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "original" || got.Versions[0].Snapshot.Body != "original" || got.Name != "t" {
		t.Errorf("caller mutation leaked into store: %+v", got)
	}
}
