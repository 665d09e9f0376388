package models

import "time"

// Usage represents token usage reported for a generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CachedTokens     int `json:"cached_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks per-call token usage and what the call was built from.
type UsageRecord struct {
	ID               int64     `json:"id"`
	Model            string    `json:"model"`
	TemplateID       string    `json:"template_id,omitempty"`
	VersionID        int       `json:"version_id,omitempty"`
	CacheHandle      string    `json:"cache_handle,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CachedTokens     int       `json:"cached_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates usage per model.
type UsageSummary struct {
	Model           string `json:"model"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCached     int    `json:"total_cached"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
}
