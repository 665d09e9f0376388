package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/pario-ai/promptlab/pkg/generate"
	"github.com/pario-ai/promptlab/pkg/models"
)

type fakeRunner struct {
	calls []generate.Call
	err   error
}

func (f *fakeRunner) Run(_ context.Context, call generate.Call) (*generate.Result, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	res := &generate.Result{Text: "echo " + call.Text, Prompt: call.Text}
	if call.TemplateID != "" {
		res.Prompt = "[" + call.TemplateID + "] " + call.Text
		res.TemplateID = call.TemplateID
		res.Snapshot = models.PromptSnapshot{Body: "tpl body", ModelID: "tpl-model", SystemInstruction: "tpl system"}
	}
	return res, nil
}

func TestSendBuildsHistory(t *testing.T) {
	r := &fakeRunner{}
	s := NewSession(r, generate.Call{TemplateID: "tpl", Model: "m", CacheHandle: "cachedContents/x"})
	ctx := context.Background()

	if _, err := s.Send(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	reply, err := s.Send(ctx, "two")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "echo two" {
		t.Errorf("unexpected reply %q", reply)
	}

	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "[tpl] one"},
		{Role: models.RoleModel, Content: "echo one"},
		{Role: models.RoleUser, Content: "two"},
		{Role: models.RoleModel, Content: "echo two"},
	}
	got := s.History()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	second := r.calls[1]
	if second.TemplateID != "" || len(second.History) != 2 {
		t.Errorf("second turn should carry history without template: %+v", second)
	}
	if second.Model != "m" || second.CacheHandle != "cachedContents/x" {
		t.Errorf("model and cache must apply to every turn: %+v", second)
	}
	if second.SystemInstruction != "tpl system" {
		t.Errorf("template system instruction should carry over, got %q", second.SystemInstruction)
	}
}

func TestSendFailureKeepsHistory(t *testing.T) {
	r := &fakeRunner{}
	s := NewSession(r, generate.Call{})
	ctx := context.Background()

	if _, err := s.Send(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	r.err = models.ErrBudgetExceeded
	if _, err := s.Send(ctx, "two"); !errors.Is(err, models.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if n := len(s.History()); n != 2 {
		t.Errorf("failed turn must not be recorded, history has %d messages", n)
	}
}

func TestHistoryIsCopy(t *testing.T) {
	s := NewSession(&fakeRunner{}, generate.Call{})
	if _, err := s.Send(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	h := s.History()
	h[0].Content = "changed"
	if s.History()[0].Content != "one" {
		t.Error("History must return a copy")
	}
}

func TestReset(t *testing.T) {
	r := &fakeRunner{}
	s := NewSession(r, generate.Call{TemplateID: "tpl"})
	ctx := context.Background()

	if _, err := s.Send(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if len(s.History()) != 0 {
		t.Fatal("expected empty history after reset")
	}
	if _, err := s.Send(ctx, "again"); err != nil {
		t.Fatal(err)
	}
	if r.calls[1].TemplateID != "tpl" || r.calls[1].SystemInstruction != "" {
		t.Errorf("template should open the first turn after reset: %+v", r.calls[1])
	}
}
