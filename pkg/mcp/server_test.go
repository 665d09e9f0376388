package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/budget"
	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
	"github.com/pario-ai/promptlab/pkg/tracker"
)

type fixture struct {
	srv     *Server
	prompts prompts.Store
	cache   cache.Store
	tracker tracker.Tracker
}

func setup(t *testing.T) *fixture {
	t.Helper()
	tr, err := tracker.New(filepath.Join(t.TempDir(), "mcp_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })

	f := &fixture{
		prompts: prompts.NewMemory(),
		cache:   cache.NewMemory(),
		tracker: tr,
	}
	enforcer := budget.New([]models.BudgetPolicy{{Model: "*", MaxTokens: 1000, Period: models.BudgetDaily}}, tr, nil)
	f.srv = New(f.prompts, f.cache, tr, enforcer, zerolog.Nop(), "test")
	return f
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name string, args any) ToolCallResult {
	t.Helper()
	rawArgs, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	params, err := json.Marshal(ToolCallParams{Name: name, Arguments: rawArgs})
	if err != nil {
		t.Fatal(err)
	}
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected one content block, got %+v", result)
	}
	return result
}

func TestInitialize(t *testing.T) {
	f := setup(t)
	resp := sendAndReceive(t, f.srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "promptlab" || result.ServerInfo.Version != "test" {
		t.Errorf("unexpected server info %+v", result.ServerInfo)
	}
}

func TestToolsList(t *testing.T) {
	f := setup(t)
	resp := sendAndReceive(t, f.srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"promptlab_list_templates", "promptlab_get_template", "promptlab_list_versions",
		"promptlab_assemble", "promptlab_list_cache", "promptlab_cache_stats",
		"promptlab_usage", "promptlab_budget",
	} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestTemplateTools(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tpl, err := f.prompts.Create(ctx, "greet", models.PromptSnapshot{Body: "Hello {name}"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.prompts.CreateVersion(ctx, tpl.ID, models.PromptSnapshot{Body: "Hi {name}"}); err != nil {
		t.Fatal(err)
	}

	if res := callTool(t, f.srv, "promptlab_list_templates", nil); !strings.Contains(res.Content[0].Text, "greet") {
		t.Errorf("expected template in list, got %q", res.Content[0].Text)
	}

	res := callTool(t, f.srv, "promptlab_get_template", map[string]any{"id": tpl.ID, "version": 1})
	if res.IsError || !strings.Contains(res.Content[0].Text, "Hello {name}") || !strings.Contains(res.Content[0].Text, "Version: 1 of 2") {
		t.Errorf("unexpected template output %q", res.Content[0].Text)
	}

	if res := callTool(t, f.srv, "promptlab_list_versions", map[string]any{"id": tpl.ID}); !strings.Contains(res.Content[0].Text, "2") {
		t.Errorf("unexpected versions output %q", res.Content[0].Text)
	}

	res = callTool(t, f.srv, "promptlab_assemble", map[string]any{"id": tpl.ID, "bindings": map[string]string{"name": "Ada"}})
	if res.IsError || res.Content[0].Text != "Hi Ada" {
		t.Errorf("unexpected assembly %+v", res)
	}

	res = callTool(t, f.srv, "promptlab_assemble", map[string]any{"id": tpl.ID})
	if !res.IsError || !strings.Contains(res.Content[0].Text, "missing bindings for name") {
		t.Errorf("expected missing binding error, got %+v", res)
	}

	res = callTool(t, f.srv, "promptlab_get_template", map[string]any{})
	if !res.IsError || !strings.Contains(res.Content[0].Text, "id is required") {
		t.Errorf("expected id error, got %+v", res)
	}
}

func TestCacheTools(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e, err := f.cache.Create(ctx, models.NewCacheEntry{
		ModelID:     "m",
		Payload:     []models.PayloadRef{{MIMEType: "text/plain", Data: []byte("doc")}},
		TTL:         time.Hour,
		DisplayName: "notes",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.cache.Get(ctx, e.Handle)

	if res := callTool(t, f.srv, "promptlab_list_cache", nil); !strings.Contains(res.Content[0].Text, e.Handle) {
		t.Errorf("expected handle in list, got %q", res.Content[0].Text)
	}
	res := callTool(t, f.srv, "promptlab_cache_stats", nil)
	if !strings.Contains(res.Content[0].Text, "Hits:     1") || !strings.Contains(res.Content[0].Text, "100.0%") {
		t.Errorf("unexpected stats %q", res.Content[0].Text)
	}
}

func TestUsageAndBudgetTools(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.tracker.Record(ctx, models.UsageRecord{Model: "m", PromptTokens: 100, TotalTokens: 250, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}

	if res := callTool(t, f.srv, "promptlab_usage", nil); !strings.Contains(res.Content[0].Text, "250") {
		t.Errorf("unexpected usage %q", res.Content[0].Text)
	}
	res := callTool(t, f.srv, "promptlab_budget", nil)
	if !strings.Contains(res.Content[0].Text, "750") || !strings.Contains(res.Content[0].Text, "25.0%") {
		t.Errorf("unexpected budget %q", res.Content[0].Text)
	}
}

func TestUnknownTool(t *testing.T) {
	f := setup(t)
	res := callTool(t, f.srv, "nope", nil)
	if !res.IsError || !strings.Contains(res.Content[0].Text, "unknown tool") {
		t.Errorf("expected unknown tool error, got %+v", res)
	}
}

func TestUnknownMethod(t *testing.T) {
	f := setup(t)
	resp := sendAndReceive(t, f.srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "resources/list",
	})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Errorf("expected method not found, got %+v", resp)
	}
}

func TestParseError(t *testing.T) {
	f := setup(t)
	var out bytes.Buffer
	if err := f.srv.Run(context.Background(), strings.NewReader("{not json\n"), &out); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp)
	}
}

func TestNotificationsGetNoResponse(t *testing.T) {
	f := setup(t)
	lines := []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":3}}`,
		`{"jsonrpc":"2.0","method":"tools/list"}`,
		`{"jsonrpc":"2.0","method":"no/such/method"}`,
	}
	var out bytes.Buffer
	if err := f.srv.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), &out); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("notifications must not be answered, got %q", out.String())
	}
}
