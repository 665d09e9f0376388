package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "promptlab.yaml")
	cfg := "db_path: " + filepath.Join(dir, "test.db") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"-c", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestPromptLifecycle(t *testing.T) {
	cfg := setup(t)

	id := strings.TrimSpace(mustRun(t, cfg, "prompt", "create", "greet", "--body", "Hello {name}"))
	if id == "" {
		t.Fatal("expected template id")
	}

	if out := mustRun(t, cfg, "prompt", "version", id, "--body", "Hi {name}!"); !strings.Contains(out, "version 2") {
		t.Errorf("unexpected version output %q", out)
	}
	if out := mustRun(t, cfg, "prompt", "assemble", id, "--set", "name=Ada"); strings.TrimSpace(out) != "Hi Ada!" {
		t.Errorf("unexpected assembly %q", out)
	}
	if out := mustRun(t, cfg, "prompt", "restore", id, "1"); !strings.Contains(out, "as version 3") {
		t.Errorf("unexpected restore output %q", out)
	}
	if out := mustRun(t, cfg, "prompt", "show", id); !strings.Contains(out, "Hello {name}") || !strings.Contains(out, "Version: 3 of 3") {
		t.Errorf("expected restored body, got %q", out)
	}

	mustRun(t, cfg, "prompt", "rename", id, "welcome")
	if out := mustRun(t, cfg, "prompt", "list"); !strings.Contains(out, "welcome") {
		t.Errorf("expected renamed template in list, got %q", out)
	}

	if _, err := run(t, cfg, "prompt", "assemble", id); err == nil || !strings.Contains(err.Error(), "missing bindings for name") {
		t.Errorf("expected missing binding error, got %v", err)
	}

	mustRun(t, cfg, "prompt", "delete", id)
	if _, err := run(t, cfg, "prompt", "show", id); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	cfg := setup(t)
	doc := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(doc, []byte("meeting notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	handle := strings.TrimSpace(mustRun(t, cfg, "cache", "create",
		"--model", "m", "--file", doc, "--uri", "application/pdf=gs://bucket/a.pdf", "--name", "notes"))
	if !strings.HasPrefix(handle, "cachedContents/") {
		t.Fatalf("unexpected handle %q", handle)
	}

	out := mustRun(t, cfg, "cache", "show", handle)
	if !strings.Contains(out, "text/plain") || !strings.Contains(out, "gs://bucket/a.pdf") {
		t.Errorf("unexpected show output %q", out)
	}
	if out := mustRun(t, cfg, "cache", "list"); !strings.Contains(out, handle) {
		t.Errorf("expected handle in list, got %q", out)
	}
	if out := mustRun(t, cfg, "cache", "stats"); !strings.Contains(out, "Active:  1") {
		t.Errorf("unexpected stats %q", out)
	}

	mustRun(t, cfg, "cache", "delete", handle)
	if _, err := run(t, cfg, "cache", "show", handle); err == nil {
		t.Error("expected error for deleted handle")
	}

	if _, err := run(t, cfg, "cache", "create", "--model", "m"); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("expected validation error for empty payload, got %v", err)
	}
	if _, err := run(t, cfg, "cache", "create", "--uri", "gs://no-mime"); err == nil {
		t.Error("expected error for malformed --uri")
	}
}

func TestUsageAndBudgetEmpty(t *testing.T) {
	cfg := setup(t)

	if out := mustRun(t, cfg, "usage"); !strings.Contains(out, "No usage data") {
		t.Errorf("unexpected usage output %q", out)
	}
	if out := mustRun(t, cfg, "budget", "status"); !strings.Contains(out, "disabled") {
		t.Errorf("unexpected budget output %q", out)
	}
}

func TestMemoryBackendRejectedForOneShotCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "promptlab.yaml")
	body := "backend: memory\ndb_path: " + filepath.Join(dir, "test.db") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{
		{"prompt", "list"},
		{"prompt", "create", "greet", "--body", "Hello"},
		{"cache", "list"},
		{"generate", "hi"},
	} {
		if _, err := run(t, cfg, args...); err == nil || !strings.Contains(err.Error(), "keeps nothing between commands") {
			t.Errorf("%v: expected memory backend error, got %v", args, err)
		}
	}
	if out := mustRun(t, cfg, "usage"); !strings.Contains(out, "No usage data") {
		t.Errorf("usage should still work on the memory backend, got %q", out)
	}
}
