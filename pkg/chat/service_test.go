package chat

import (
	"context"
	"testing"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/config"
	"github.com/pario-ai/promptlab/pkg/generate"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
	"github.com/pario-ai/promptlab/pkg/router"
)

// recordingGenerator answers every request and keeps what it was sent.
type recordingGenerator struct {
	reqs []generate.Request
}

func (g *recordingGenerator) Generate(_ context.Context, req generate.Request) (*generate.Response, error) {
	g.reqs = append(g.reqs, req)
	return &generate.Response{Text: "ok"}, nil
}

func TestTemplateDefaultsApplyToEveryTurn(t *testing.T) {
	ctx := context.Background()
	store := prompts.NewMemory()
	tpl, err := store.Create(ctx, "pirate", models.PromptSnapshot{
		Body:              "Tell me about {topic}.",
		ModelID:           "tmpl-model",
		SystemInstruction: "Speak like a pirate",
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Generation.Model = "default-model"
	gen := &recordingGenerator{}
	svc := generate.NewService(gen, store, cache.NewMemory(), router.New(cfg))

	s := NewSession(svc, generate.Call{TemplateID: tpl.ID, Bindings: map[string]string{"topic": "ships"}})
	for _, text := range []string{"Be short.", "And treasure?", "Thanks."} {
		if _, err := s.Send(ctx, text); err != nil {
			t.Fatal(err)
		}
	}

	if len(gen.reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(gen.reqs))
	}
	if gen.reqs[0].Text != "Tell me about ships.\n\nBe short." {
		t.Errorf("unexpected first prompt %q", gen.reqs[0].Text)
	}
	for i, req := range gen.reqs {
		if req.Model != "tmpl-model" || req.SystemInstruction != "Speak like a pirate" {
			t.Errorf("turn %d: model=%q system=%q", i+1, req.Model, req.SystemInstruction)
		}
	}
	if got := gen.reqs[2]; got.Text != "Thanks." || len(got.History) != 4 {
		t.Errorf("later turns send only the new text with history: %+v", got)
	}
}

func TestSessionModelOverridesTemplate(t *testing.T) {
	ctx := context.Background()
	store := prompts.NewMemory()
	tpl, err := store.Create(ctx, "t", models.PromptSnapshot{Body: "hi", ModelID: "tmpl-model"})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Router.Aliases = []config.AliasConfig{{Name: "fast", Model: "fast-model"}}
	gen := &recordingGenerator{}
	svc := generate.NewService(gen, store, cache.NewMemory(), router.New(cfg))

	s := NewSession(svc, generate.Call{TemplateID: tpl.ID, Model: "fast"})
	for _, text := range []string{"one", "two"} {
		if _, err := s.Send(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	for i, req := range gen.reqs {
		if req.Model != "fast-model" {
			t.Errorf("turn %d: expected fast-model, got %q", i+1, req.Model)
		}
	}
}
