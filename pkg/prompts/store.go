// Package prompts manages versioned prompt templates.
//
// History is append-only: a new version always receives max(existing)+1 and
// restoring an old version re-appends its snapshot instead of rewinding.
package prompts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/placeholder"
)

// Store owns prompt templates and their versions.
type Store interface {
	// Create stores a new template whose history is [version 1].
	Create(ctx context.Context, name string, snap models.PromptSnapshot) (*models.PromptTemplate, error)
	// CreateVersion appends a version to the template's history.
	CreateVersion(ctx context.Context, id string, snap models.PromptSnapshot) (*models.PromptVersion, error)
	// Get returns the template presenting its latest version.
	Get(ctx context.Context, id string) (*models.PromptTemplate, error)
	// GetVersion returns one historical version.
	GetVersion(ctx context.Context, id string, versionID int) (*models.PromptVersion, error)
	// Rename changes the template's label.
	Rename(ctx context.Context, id, name string) error
	// ListTemplates returns templates in creation order.
	ListTemplates(ctx context.Context) ([]models.TemplateSummary, error)
	// ListVersions returns the template's versions ascending by id.
	ListVersions(ctx context.Context, id string) ([]models.VersionInfo, error)
	// RestoreVersion re-appends a historical snapshot as a new version.
	RestoreVersion(ctx context.Context, id string, versionID int) (*models.PromptVersion, error)
	// Delete removes the template and all of its versions.
	Delete(ctx context.Context, id string) error
	// Close releases resources.
	Close() error
}

// Options configures a Store implementation.
type Options struct {
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithClock sets the clock used for version timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithLogger sets the logger for store mutations.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// BuildOptions applies opts over the defaults.
func BuildOptions(opts ...Option) Options {
	o := Options{Clock: clock.Real{}, Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateName rejects an empty template name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: template name is empty", models.ErrValidation)
	}
	return nil
}

// ValidateSnapshot rejects a snapshot with an empty body.
func ValidateSnapshot(snap models.PromptSnapshot) error {
	if snap.Body == "" {
		return fmt.Errorf("%w: template body is empty", models.ErrValidation)
	}
	return nil
}

// NotFound wraps ErrNotFound for a template id.
func NotFound(id string) error {
	return fmt.Errorf("%w: template %q", models.ErrNotFound, id)
}

// VersionNotFound wraps ErrNotFound for a template version.
func VersionNotFound(id string, versionID int) error {
	return fmt.Errorf("%w: template %q version %d", models.ErrNotFound, id, versionID)
}

// Assemble fills the template's current body with bindings.
func Assemble(t *models.PromptTemplate, bindings map[string]string) (string, error) {
	out, err := placeholder.Fill(t.Body, bindings)
	if err != nil {
		return "", fmt.Errorf("assemble template %q: %w", t.ID, err)
	}
	return out, nil
}
