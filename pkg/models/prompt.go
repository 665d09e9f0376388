package models

import "time"

// PromptSnapshot is the content captured by a single prompt version.
type PromptSnapshot struct {
	Body              string `json:"body" yaml:"body"`
	ModelID           string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty" yaml:"system_instruction,omitempty"`
}

// PromptVersion is an immutable entry in a template's history.
type PromptVersion struct {
	VersionID int            `json:"version_id"`
	Snapshot  PromptSnapshot `json:"snapshot"`
	CreatedAt time.Time      `json:"created_at"`
}

// PromptTemplate is a named prompt with an append-only version history.
// Body, ModelID and SystemInstruction mirror the latest version.
type PromptTemplate struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Body              string          `json:"body"`
	ModelID           string          `json:"model_id,omitempty"`
	SystemInstruction string          `json:"system_instruction,omitempty"`
	Versions          []PromptVersion `json:"versions"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Latest returns the current version. Versions is never empty for a stored template.
func (t *PromptTemplate) Latest() PromptVersion {
	return t.Versions[len(t.Versions)-1]
}

// Present sets the presented fields from the latest version.
func (t *PromptTemplate) Present() {
	if len(t.Versions) == 0 {
		return
	}
	s := t.Latest().Snapshot
	t.Body = s.Body
	t.ModelID = s.ModelID
	t.SystemInstruction = s.SystemInstruction
}

// TemplateSummary is a listing row for a template.
type TemplateSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VersionInfo is a listing row for a template version.
type VersionInfo struct {
	VersionID int       `json:"version_id"`
	CreatedAt time.Time `json:"created_at"`
}
