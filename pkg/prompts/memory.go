package prompts

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/promptlab/pkg/models"
)

// Memory is an in-process Store. Mutations are serialized per template.
type Memory struct {
	opts Options

	mu        sync.RWMutex
	templates map[string]*entry
	order     []string
}

// entry guards one template. Lock order is Memory.mu, then entry.mu.
type entry struct {
	mu      sync.RWMutex
	tmpl    models.PromptTemplate
	deleted bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory Store.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		opts:      BuildOptions(opts...),
		templates: make(map[string]*entry),
	}
}

func (m *Memory) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.templates[id]
	m.mu.RUnlock()
	if !ok {
		return nil, NotFound(id)
	}
	return e, nil
}

// Create stores a new template with version 1.
func (m *Memory) Create(_ context.Context, name string, snap models.PromptSnapshot) (*models.PromptTemplate, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateSnapshot(snap); err != nil {
		return nil, err
	}

	now := m.opts.Clock.Now()
	e := &entry{tmpl: models.PromptTemplate{
		ID:        uuid.NewString(),
		Name:      name,
		Versions:  []models.PromptVersion{{VersionID: 1, Snapshot: snap, CreatedAt: now}},
		CreatedAt: now,
	}}
	e.tmpl.Present()

	m.mu.Lock()
	m.templates[e.tmpl.ID] = e
	m.order = append(m.order, e.tmpl.ID)
	m.mu.Unlock()

	m.opts.Logger.Debug().Str("id", e.tmpl.ID).Str("name", name).Msg("prompt template created")
	return cloneTemplate(&e.tmpl), nil
}

// CreateVersion appends snap as version max+1.
func (m *Memory) CreateVersion(_ context.Context, id string, snap models.PromptSnapshot) (*models.PromptVersion, error) {
	if err := ValidateSnapshot(snap); err != nil {
		return nil, err
	}
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, NotFound(id)
	}
	v := e.appendVersion(snap, m.opts.Clock.Now())
	m.opts.Logger.Debug().Str("id", id).Int("version", v.VersionID).Msg("prompt version created")
	return &v, nil
}

// appendVersion must be called with e.mu held.
func (e *entry) appendVersion(snap models.PromptSnapshot, now time.Time) models.PromptVersion {
	v := models.PromptVersion{
		VersionID: e.tmpl.Latest().VersionID + 1,
		Snapshot:  snap,
		CreatedAt: now,
	}
	e.tmpl.Versions = append(e.tmpl.Versions, v)
	e.tmpl.Present()
	return v
}

// Get returns a copy of the template.
func (m *Memory) Get(_ context.Context, id string) (*models.PromptTemplate, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, NotFound(id)
	}
	return cloneTemplate(&e.tmpl), nil
}

// GetVersion returns one version of the template.
func (m *Memory) GetVersion(_ context.Context, id string, versionID int) (*models.PromptVersion, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, NotFound(id)
	}
	v, ok := e.find(versionID)
	if !ok {
		return nil, VersionNotFound(id, versionID)
	}
	return &v, nil
}

func (e *entry) find(versionID int) (models.PromptVersion, bool) {
	// Versions are sorted by id.
	i, ok := slices.BinarySearchFunc(e.tmpl.Versions, versionID, func(v models.PromptVersion, target int) int {
		return v.VersionID - target
	})
	if !ok {
		return models.PromptVersion{}, false
	}
	return e.tmpl.Versions[i], true
}

// Rename changes the template name.
func (m *Memory) Rename(_ context.Context, id, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return NotFound(id)
	}
	e.tmpl.Name = name
	return nil
}

// ListTemplates returns templates in creation order.
func (m *Memory) ListTemplates(_ context.Context) ([]models.TemplateSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TemplateSummary, 0, len(m.order))
	for _, id := range m.order {
		e := m.templates[id]
		e.mu.RLock()
		out = append(out, models.TemplateSummary{ID: id, Name: e.tmpl.Name})
		e.mu.RUnlock()
	}
	return out, nil
}

// ListVersions returns version ids and timestamps in ascending order.
func (m *Memory) ListVersions(_ context.Context, id string) ([]models.VersionInfo, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, NotFound(id)
	}
	out := make([]models.VersionInfo, len(e.tmpl.Versions))
	for i, v := range e.tmpl.Versions {
		out[i] = models.VersionInfo{VersionID: v.VersionID, CreatedAt: v.CreatedAt}
	}
	return out, nil
}

// RestoreVersion re-appends the snapshot of versionID as a new version.
func (m *Memory) RestoreVersion(_ context.Context, id string, versionID int) (*models.PromptVersion, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, NotFound(id)
	}
	old, ok := e.find(versionID)
	if !ok {
		return nil, VersionNotFound(id, versionID)
	}
	v := e.appendVersion(old.Snapshot, m.opts.Clock.Now())
	m.opts.Logger.Debug().Str("id", id).Int("from", versionID).Int("version", v.VersionID).Msg("prompt version restored")
	return &v, nil
}

// Delete removes the template. Deleting twice reports ErrNotFound.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.templates[id]
	if !ok {
		return NotFound(id)
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()

	delete(m.templates, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })

	m.opts.Logger.Debug().Str("id", id).Msg("prompt template deleted")
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneTemplate(t *models.PromptTemplate) *models.PromptTemplate {
	c := *t
	c.Versions = slices.Clone(t.Versions)
	return &c
}
