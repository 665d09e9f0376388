package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pario-ai/promptlab/pkg/prompts"
)

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, s *Server, args json.RawMessage) (string, error)
}

type templateArgs struct {
	ID       string            `json:"id"`
	Version  int               `json:"version"`
	Bindings map[string]string `json:"bindings"`
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "promptlab_list_templates",
			Description: "List prompt templates in creation order.",
			InputSchema: objectSchema(nil, nil),
		},
		handle: handleListTemplates,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_get_template",
			Description: "Show a prompt template's latest version, or a specific version.",
			InputSchema: objectSchema(map[string]any{
				"id":      prop("string", "Template id"),
				"version": prop("integer", "Version id (optional, defaults to latest)"),
			}, []string{"id"}),
		},
		handle: handleGetTemplate,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_list_versions",
			Description: "List a template's version history.",
			InputSchema: objectSchema(map[string]any{
				"id": prop("string", "Template id"),
			}, []string{"id"}),
		},
		handle: handleListVersions,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_assemble",
			Description: "Fill a template's {placeholders} and return the resulting prompt.",
			InputSchema: objectSchema(map[string]any{
				"id": prop("string", "Template id"),
				"bindings": map[string]any{
					"type":                 "object",
					"description":          "Placeholder values by name",
					"additionalProperties": map[string]any{"type": "string"},
				},
			}, []string{"id"}),
		},
		handle: handleAssemble,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_list_cache",
			Description: "List live cache entries.",
			InputSchema: objectSchema(nil, nil),
		},
		handle: handleListCache,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_cache_stats",
			Description: "Show cache entry counts and lookup hit rate.",
			InputSchema: objectSchema(nil, nil),
		},
		handle: handleCacheStats,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_usage",
			Description: "Show token usage aggregated per model.",
			InputSchema: objectSchema(nil, nil),
		},
		handle: handleUsage,
	},
	{
		def: ToolDefinition{
			Name:        "promptlab_budget",
			Description: "Show usage against every configured budget policy.",
			InputSchema: objectSchema(nil, nil),
		},
		handle: handleBudget,
	},
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.def
	}
	return defs
}

func objectSchema(props map[string]any, required []string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func decodeTemplateArgs(raw json.RawMessage) (templateArgs, error) {
	var args templateArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return args, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if args.ID == "" {
		return args, errors.New("id is required")
	}
	return args, nil
}

func handleListTemplates(ctx context.Context, s *Server, _ json.RawMessage) (string, error) {
	list, err := s.prompts.ListTemplates(ctx)
	if err != nil {
		return "", err
	}
	return formatTemplates(list), nil
}

func handleGetTemplate(ctx context.Context, s *Server, raw json.RawMessage) (string, error) {
	args, err := decodeTemplateArgs(raw)
	if err != nil {
		return "", err
	}
	t, err := s.prompts.Get(ctx, args.ID)
	if err != nil {
		return "", err
	}
	v := t.Latest()
	if args.Version > 0 {
		pv, err := s.prompts.GetVersion(ctx, args.ID, args.Version)
		if err != nil {
			return "", err
		}
		v = *pv
	}
	return formatTemplate(t, v), nil
}

func handleListVersions(ctx context.Context, s *Server, raw json.RawMessage) (string, error) {
	args, err := decodeTemplateArgs(raw)
	if err != nil {
		return "", err
	}
	list, err := s.prompts.ListVersions(ctx, args.ID)
	if err != nil {
		return "", err
	}
	return formatVersions(list), nil
}

func handleAssemble(ctx context.Context, s *Server, raw json.RawMessage) (string, error) {
	args, err := decodeTemplateArgs(raw)
	if err != nil {
		return "", err
	}
	t, err := s.prompts.Get(ctx, args.ID)
	if err != nil {
		return "", err
	}
	return prompts.Assemble(t, args.Bindings)
}

func handleListCache(ctx context.Context, s *Server, _ json.RawMessage) (string, error) {
	list, err := s.cache.List(ctx)
	if err != nil {
		return "", err
	}
	return formatCacheEntries(list), nil
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) (string, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return "", err
	}
	return formatCacheStats(stats), nil
}

func handleUsage(ctx context.Context, s *Server, _ json.RawMessage) (string, error) {
	if s.tracker == nil {
		return "Usage tracking is not configured.", nil
	}
	rows, err := s.tracker.Summary(ctx)
	if err != nil {
		return "", err
	}
	return formatSummary(rows), nil
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) (string, error) {
	if s.enforcer == nil {
		return "Budget enforcement is not configured.", nil
	}
	statuses, err := s.enforcer.Status(ctx)
	if err != nil {
		return "", err
	}
	return formatBudgetStatus(statuses), nil
}

