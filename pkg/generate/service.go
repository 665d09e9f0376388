package generate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/budget"
	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
	"github.com/pario-ai/promptlab/pkg/router"
	"github.com/pario-ai/promptlab/pkg/tracker"
)

// Call describes one generation. TemplateID and Text may be combined: the
// assembled template comes first and Text is appended after a blank line.
// Model and SystemInstruction override the template's values when set.
type Call struct {
	TemplateID        string
	Bindings          map[string]string
	Text              string
	CacheHandle       string
	Model             string
	SystemInstruction string
	History           []models.ChatMessage
}

// Result is the outcome of a Call.
type Result struct {
	Text  string
	Model string
	// Prompt is the user turn that was sent.
	Prompt     string
	TemplateID string
	VersionID  int
	// Snapshot is the template version the prompt was assembled from.
	Snapshot models.PromptSnapshot
	Usage    models.Usage
}

// Service builds requests from templates and cache entries and runs them.
type Service struct {
	gen      Generator
	prompts  prompts.Store
	cache    cache.Store
	router   *router.Router
	tracker  tracker.Tracker
	enforcer *budget.Enforcer
	log      zerolog.Logger
	clock    clock.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithTracker records usage of every successful call.
func WithTracker(t tracker.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithEnforcer checks budgets before each call.
func WithEnforcer(e *budget.Enforcer) Option {
	return func(s *Service) { s.enforcer = e }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock sets the clock used to stamp usage records.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService wires a Service. Tracking and budgets are off unless set.
func NewService(gen Generator, p prompts.Store, c cache.Store, r *router.Router, opts ...Option) *Service {
	s := &Service{
		gen:     gen,
		prompts: p,
		cache:   c,
		router:  r,
		log:     zerolog.Nop(),
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes a call.
func (s *Service) Run(ctx context.Context, call Call) (*Result, error) {
	req := Request{History: call.History, SystemInstruction: call.SystemInstruction}
	res := &Result{}
	model := call.Model

	if call.TemplateID != "" {
		t, err := s.prompts.Get(ctx, call.TemplateID)
		if err != nil {
			return nil, err
		}
		text, err := prompts.Assemble(t, call.Bindings)
		if err != nil {
			return nil, err
		}
		req.Text = text
		if req.SystemInstruction == "" {
			req.SystemInstruction = t.SystemInstruction
		}
		if model == "" {
			model = t.ModelID
		}
		latest := t.Latest()
		res.TemplateID = t.ID
		res.VersionID = latest.VersionID
		res.Snapshot = latest.Snapshot
	}

	if call.Text != "" {
		if req.Text != "" {
			req.Text += "\n\n"
		}
		req.Text += call.Text
	}
	if req.Text == "" {
		return nil, fmt.Errorf("%w: nothing to send", models.ErrValidation)
	}

	var entry *models.CacheEntry
	if call.CacheHandle != "" {
		var err error
		entry, err = s.cache.Get(ctx, call.CacheHandle)
		if err != nil {
			return nil, err
		}
		if model == "" {
			model = entry.ModelID
		}
	}

	req.Model = s.router.Resolve(model)
	if req.Model == "" {
		return nil, fmt.Errorf("%w: no model selected", models.ErrValidation)
	}

	if entry != nil {
		if entry.ModelID != req.Model {
			return nil, fmt.Errorf("%w: cache %q belongs to model %q, not %q",
				models.ErrValidation, entry.Handle, entry.ModelID, req.Model)
		}
		req.Parts = entry.Payload
		if entry.SystemInstruction != "" {
			req.SystemInstruction = entry.SystemInstruction
		}
	}

	if s.enforcer != nil {
		if err := s.enforcer.Check(ctx, req.Model); err != nil {
			return nil, err
		}
	}

	resp, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	res.Text = resp.Text
	res.Model = resp.Model
	if res.Model == "" {
		res.Model = req.Model
	}
	res.Prompt = req.Text
	res.Usage = resp.Usage

	s.log.Debug().
		Str("model", req.Model).
		Str("template", res.TemplateID).
		Int("version", res.VersionID).
		Str("handle", call.CacheHandle).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("generation complete")

	if s.tracker != nil {
		rec := models.UsageRecord{
			Model:            req.Model,
			TemplateID:       res.TemplateID,
			VersionID:        res.VersionID,
			CacheHandle:      call.CacheHandle,
			PromptTokens:     resp.Usage.PromptTokens,
			CachedTokens:     resp.Usage.CachedTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			CreatedAt:        s.clock.Now(),
		}
		if err := s.tracker.Record(ctx, rec); err != nil {
			s.log.Warn().Err(err).Msg("record usage failed")
		}
	}
	return res, nil
}
