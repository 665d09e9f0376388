// Package promptstest holds behaviour tests shared by every prompts.Store.
package promptstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
)

// Factory builds an empty store driven by clk. The store is closed by the caller's cleanup.
type Factory func(t *testing.T, clk clock.Clock) prompts.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"CreateValidation", testCreateValidation},
		{"VersionHistory", testVersionHistory},
		{"RestoreAppends", testRestoreAppends},
		{"RestoreUnknown", testRestoreUnknown},
		{"ListTemplatesOrder", testListTemplatesOrder},
		{"DeleteTwice", testDeleteTwice},
		{"Rename", testRename},
		{"GetVersion", testGetVersion},
		{"ConcurrentVersions", testConcurrentVersions},
		{"FailedVersionLeavesHistory", testFailedVersionLeavesHistory},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, newStore) })
	}
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, newStore Factory) (prompts.Store, *clock.Manual, context.Context) {
	t.Helper()
	clk := clock.NewManual(epoch)
	return newStore(t, clk), clk, context.Background()
}

func versionIDs(t *testing.T, s prompts.Store, id string) []int {
	t.Helper()
	infos, err := s.ListVersions(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]int, len(infos))
	for i, vi := range infos {
		ids[i] = vi.VersionID
	}
	return ids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testCreateValidation(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	if _, err := s.Create(ctx, "", models.PromptSnapshot{Body: "x"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty name: expected ErrValidation, got %v", err)
	}
	if _, err := s.Create(ctx, "t", models.PromptSnapshot{}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty body: expected ErrValidation, got %v", err)
	}

	list, err := s.ListTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("failed creates must not store anything, got %d templates", len(list))
	}
}

func testVersionHistory(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "t1", models.PromptSnapshot{Body: "Hi {x}", ModelID: "gemini-2.0-flash"})
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if len(tmpl.Versions) != 1 || tmpl.Versions[0].VersionID != 1 {
		t.Fatalf("expected [v1], got %+v", tmpl.Versions)
	}

	clk.Advance(time.Minute)
	v, err := s.CreateVersion(ctx, tmpl.ID, models.PromptSnapshot{Body: "Hello {x} and {y}", ModelID: "gemini-2.0-flash"})
	if err != nil {
		t.Fatal(err)
	}
	if v.VersionID != 2 {
		t.Errorf("expected version 2, got %d", v.VersionID)
	}
	if !v.CreatedAt.Equal(epoch.Add(time.Minute)) {
		t.Errorf("expected created_at from clock, got %v", v.CreatedAt)
	}

	if got := versionIDs(t, s, tmpl.ID); !equalInts(got, []int{1, 2}) {
		t.Errorf("expected versions [1 2], got %v", got)
	}

	cur, err := s.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Body != "Hello {x} and {y}" {
		t.Errorf("expected latest body, got %q", cur.Body)
	}
	if cur.Name != "t1" {
		t.Errorf("expected name t1, got %q", cur.Name)
	}

	if _, err := s.CreateVersion(ctx, "missing", models.PromptSnapshot{Body: "x"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func testRestoreAppends(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "t1", models.PromptSnapshot{Body: "Hi {x}", SystemInstruction: "be brief"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateVersion(ctx, tmpl.ID, models.PromptSnapshot{Body: "Hello {x} and {y}", ModelID: "m2"}); err != nil {
		t.Fatal(err)
	}

	v, err := s.RestoreVersion(ctx, tmpl.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.VersionID != 3 {
		t.Errorf("expected new version 3, got %d", v.VersionID)
	}
	if v.Snapshot.Body != "Hi {x}" {
		t.Errorf("expected restored body, got %q", v.Snapshot.Body)
	}

	cur, err := s.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Body != "Hi {x}" || cur.ModelID != "" || cur.SystemInstruction != "be brief" {
		t.Errorf("current state does not match version 1: %+v", cur)
	}
	if cur.Latest().VersionID != 3 {
		t.Errorf("expected latest version 3, got %d", cur.Latest().VersionID)
	}

	out, err := prompts.Assemble(cur, map[string]string{"x": "Bob"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hi Bob" {
		t.Errorf("expected %q, got %q", "Hi Bob", out)
	}

	if got := versionIDs(t, s, tmpl.ID); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("expected versions [1 2 3], got %v", got)
	}
}

func testRestoreUnknown(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "t", models.PromptSnapshot{Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RestoreVersion(ctx, tmpl.ID, 7); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown version: expected ErrNotFound, got %v", err)
	}
	if _, err := s.RestoreVersion(ctx, "nope", 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if got := versionIDs(t, s, tmpl.ID); !equalInts(got, []int{1}) {
		t.Errorf("failed restore changed history: %v", got)
	}
}

func testListTemplatesOrder(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	var ids []string
	for _, name := range []string{"classify", "summarize", "extract"} {
		tmpl, err := s.Create(ctx, name, models.PromptSnapshot{Body: name + " {text}"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tmpl.ID)
	}
	if err := s.Delete(ctx, ids[1]); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(list))
	}
	if list[0].ID != ids[0] || list[0].Name != "classify" || list[1].ID != ids[2] || list[1].Name != "extract" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func testDeleteTwice(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	if err := s.Delete(ctx, "unknown"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting unknown id, got %v", err)
	}
	if _, err := s.Get(ctx, "unknown"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound on get, got %v", err)
	}

	tmpl, err := s.Create(ctx, "t", models.PromptSnapshot{Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, tmpl.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, tmpl.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, tmpl.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("get after delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.ListVersions(ctx, tmpl.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("versions after delete: expected ErrNotFound, got %v", err)
	}
}

func testRename(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "old", models.PromptSnapshot{Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Rename(ctx, tmpl.ID, "new"); err != nil {
		t.Fatal(err)
	}
	cur, err := s.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Name != "new" {
		t.Errorf("expected renamed template, got %q", cur.Name)
	}
	if len(cur.Versions) != 1 {
		t.Errorf("rename must not create a version, got %d", len(cur.Versions))
	}
	if err := s.Rename(ctx, tmpl.ID, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for empty name, got %v", err)
	}
	if err := s.Rename(ctx, "nope", "x"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testGetVersion(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "t", models.PromptSnapshot{Body: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateVersion(ctx, tmpl.ID, models.PromptSnapshot{Body: "v2"}); err != nil {
		t.Fatal(err)
	}

	v, err := s.GetVersion(ctx, tmpl.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Snapshot.Body != "v1" {
		t.Errorf("expected v1 snapshot, got %q", v.Snapshot.Body)
	}
	if _, err := s.GetVersion(ctx, tmpl.ID, 3); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testConcurrentVersions(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "t", models.PromptSnapshot{Body: "b"})
	if err != nil {
		t.Fatal(err)
	}

	const n = 20
	var wg conc.WaitGroup
	for range n {
		wg.Go(func() {
			if _, err := s.CreateVersion(ctx, tmpl.ID, models.PromptSnapshot{Body: "b"}); err != nil {
				t.Error(err)
			}
		})
	}
	wg.Wait()

	ids := versionIDs(t, s, tmpl.ID)
	if len(ids) != n+1 {
		t.Fatalf("expected %d versions, got %d", n+1, len(ids))
	}
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("expected gap-free ids, got %v", ids)
		}
	}
}

func testFailedVersionLeavesHistory(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	tmpl, err := s.Create(ctx, "t", models.PromptSnapshot{Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateVersion(ctx, tmpl.ID, models.PromptSnapshot{}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if got := versionIDs(t, s, tmpl.ID); !equalInts(got, []int{1}) {
		t.Errorf("expected history [1], got %v", got)
	}
}
