// Package chat keeps multi-turn conversations over a generation service.
package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pario-ai/promptlab/pkg/generate"
	"github.com/pario-ai/promptlab/pkg/models"
)

// Runner runs a single generation call.
type Runner interface {
	Run(ctx context.Context, call generate.Call) (*generate.Result, error)
}

// Session is a conversation. The template in base, if any, is assembled
// into the first turn only; its model and system instruction stay in effect
// for every later turn. Model and cache handle in base apply to every turn.
type Session struct {
	runner Runner
	base   generate.Call

	mu      sync.Mutex
	history []models.ChatMessage
	// pinned holds the template snapshot once the first turn succeeded.
	pinned *models.PromptSnapshot
}

// NewSession starts an empty conversation.
func NewSession(r Runner, base generate.Call) *Session {
	base.Text = ""
	base.History = nil
	return &Session{runner: r, base: base}
}

// Send sends text and returns the model's reply. History only grows when
// the call succeeds.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.base
	call.Text = text
	call.History = slices.Clone(s.history)
	if s.pinned != nil {
		call.TemplateID = ""
		call.Bindings = nil
		if call.Model == "" {
			call.Model = s.pinned.ModelID
		}
		if call.SystemInstruction == "" {
			call.SystemInstruction = s.pinned.SystemInstruction
		}
	}

	res, err := s.runner.Run(ctx, call)
	if err != nil {
		return "", fmt.Errorf("chat turn %d: %w", len(s.history)/2+1, err)
	}

	if s.pinned == nil && call.TemplateID != "" {
		snap := res.Snapshot
		s.pinned = &snap
	}
	s.history = append(s.history,
		models.ChatMessage{Role: models.RoleUser, Content: res.Prompt},
		models.ChatMessage{Role: models.RoleModel, Content: res.Text},
	)
	return res.Text, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Reset clears the conversation. The template opens the next turn again.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.pinned = nil
	s.mu.Unlock()
}
