// Package cachetest holds behaviour tests shared by every cache.Store.
package cachetest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
)

// Factory builds an empty store driven by clk.
type Factory func(t *testing.T, clk clock.Clock) cache.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateValidation", testCreateValidation},
		{"ExpiryHidesEntry", testExpiryHidesEntry},
		{"ListSkipsExpired", testListSkipsExpired},
		{"DeleteExpired", testDeleteExpired},
		{"ExtendTTL", testExtendTTL},
		{"Purge", testPurge},
		{"Stats", testStats},
		{"UniqueHandles", testUniqueHandles},
		{"LongTTLRejected", testLongTTLRejected},
		{"CreateCopiesPayload", testCreateCopiesPayload},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, newStore) })
	}
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, newStore Factory) (cache.Store, *clock.Manual, context.Context) {
	t.Helper()
	clk := clock.NewManual(epoch)
	return newStore(t, clk), clk, context.Background()
}

func entry(ttl time.Duration, name string) models.NewCacheEntry {
	return models.NewCacheEntry{
		ModelID: "m",
		Payload: []models.PayloadRef{
			{MIMEType: "text/plain", Data: []byte("a long transcript")},
			{MIMEType: "application/pdf", URI: "gs://bucket/paper.pdf"},
		},
		SystemInstruction: "Answer from the document only.",
		TTL:               ttl,
		DisplayName:       name,
	}
}

func testCreateAndGet(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	e, err := s.Create(ctx, entry(time.Second, "c"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(e.Handle, cache.HandlePrefix) {
		t.Errorf("unexpected handle %q", e.Handle)
	}
	if !e.ExpiresAt.Equal(epoch.Add(time.Second)) || !e.CreatedAt.Equal(epoch) {
		t.Errorf("unexpected timestamps: created %v expires %v", e.CreatedAt, e.ExpiresAt)
	}

	got, err := s.Get(ctx, e.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if got.ModelID != "m" || got.DisplayName != "c" || got.SystemInstruction != "Answer from the document only." {
		t.Errorf("fields did not round-trip: %+v", got)
	}
	if len(got.Payload) != 2 ||
		!bytes.Equal(got.Payload[0].Data, []byte("a long transcript")) ||
		got.Payload[1].URI != "gs://bucket/paper.pdf" || got.Payload[1].MIMEType != "application/pdf" {
		t.Errorf("payload did not round-trip: %+v", got.Payload)
	}
	if !got.ExpiresAt.Equal(e.ExpiresAt) {
		t.Errorf("expected expires_at %v, got %v", e.ExpiresAt, got.ExpiresAt)
	}
}

func testCreateValidation(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	bad := []models.NewCacheEntry{
		{ModelID: "m", TTL: time.Second},
		{ModelID: "m", Payload: entry(time.Second, "").Payload, TTL: 0},
		{ModelID: "m", Payload: entry(time.Second, "").Payload, TTL: -time.Second},
		{Payload: entry(time.Second, "").Payload, TTL: time.Second},
		{ModelID: "m", Payload: []models.PayloadRef{{Data: []byte("x")}}, TTL: time.Second},
		{ModelID: "m", Payload: []models.PayloadRef{{MIMEType: "text/plain"}}, TTL: time.Second},
		{ModelID: "m", Payload: []models.PayloadRef{{MIMEType: "text/plain", Data: []byte("x"), URI: "gs://x"}}, TTL: time.Second},
	}
	for i, n := range bad {
		if _, err := s.Create(ctx, n); !errors.Is(err, models.ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("failed creates registered %d entries", stats.Entries)
	}
}

func testExpiryHidesEntry(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	e, err := s.Create(ctx, entry(time.Second, "c"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, e.Handle); err != nil {
		t.Fatalf("expected live entry, got %v", err)
	}

	clk.Advance(999 * time.Millisecond)
	if _, err := s.Get(ctx, e.Handle); err != nil {
		t.Fatalf("expected entry before expiry, got %v", err)
	}

	clk.Advance(time.Millisecond)
	if _, err := s.Get(ctx, e.Handle); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound at expires_at, got %v", err)
	}
	if _, err := s.Get(ctx, "cachedContents/never"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown handle, got %v", err)
	}
}

func testListSkipsExpired(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	short, err := s.Create(ctx, entry(time.Second, "short"))
	if err != nil {
		t.Fatal(err)
	}
	long1, err := s.Create(ctx, entry(time.Hour, "long1"))
	if err != nil {
		t.Fatal(err)
	}
	long2, err := s.Create(ctx, entry(time.Hour, "long2"))
	if err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Handle != short.Handle {
		t.Fatalf("expected 3 entries in creation order, got %+v", list)
	}

	clk.Advance(2 * time.Second)
	list, err = s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Handle != long1.Handle || list[1].Handle != long2.Handle {
		t.Errorf("expected only live entries in creation order, got %+v", list)
	}
}

func testDeleteExpired(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	e, err := s.Create(ctx, entry(time.Second, "c"))
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)

	if err := s.Delete(ctx, e.Handle); err != nil {
		t.Fatalf("expired entry should still be deletable, got %v", err)
	}
	if err := s.Delete(ctx, e.Handle); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "cachedContents/never"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown handle: expected ErrNotFound, got %v", err)
	}
}

func testExtendTTL(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	e, err := s.Create(ctx, entry(time.Second, "c"))
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(500 * time.Millisecond)
	ext, err := s.ExtendTTL(ctx, e.Handle, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	want := epoch.Add(500 * time.Millisecond).Add(time.Minute)
	if !ext.ExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, ext.ExpiresAt)
	}

	clk.Advance(30 * time.Second)
	if _, err := s.Get(ctx, e.Handle); err != nil {
		t.Errorf("extended entry should be live, got %v", err)
	}

	if _, err := s.ExtendTTL(ctx, e.Handle, 0); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for zero ttl, got %v", err)
	}

	clk.Advance(time.Hour)
	if _, err := s.ExtendTTL(ctx, e.Handle, time.Minute); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound extending expired entry, got %v", err)
	}
	if _, err := s.ExtendTTL(ctx, "cachedContents/never", time.Minute); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown handle, got %v", err)
	}
}

func testPurge(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	expired, err := s.Create(ctx, entry(time.Second, "a"))
	if err != nil {
		t.Fatal(err)
	}
	live, err := s.Create(ctx, entry(time.Hour, "b"))
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)

	n, err := s.Purge(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if err := s.Delete(ctx, expired.Handle); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("purged entry should be gone, got %v", err)
	}
	if _, err := s.Get(ctx, live.Handle); err != nil {
		t.Errorf("live entry should survive purge, got %v", err)
	}
}

func testStats(t *testing.T, newStore Factory) {
	s, clk, ctx := setup(t, newStore)

	a, err := s.Create(ctx, entry(time.Second, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, entry(time.Hour, "b")); err != nil {
		t.Fatal(err)
	}
	_, _ = s.Get(ctx, a.Handle)           // hit
	_, _ = s.Get(ctx, "cachedContents/x") // miss
	clk.Advance(time.Minute)
	_, _ = s.Get(ctx, a.Handle) // miss, expired

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 || stats.Active != 1 {
		t.Errorf("expected 2 entries / 1 active, got %+v", stats)
	}
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("expected 1 hit / 2 misses, got %+v", stats)
	}
}

func testUniqueHandles(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	const n = 25
	handles := make(chan string, n)
	var wg conc.WaitGroup
	for range n {
		wg.Go(func() {
			e, err := s.Create(ctx, entry(time.Hour, ""))
			if err != nil {
				t.Error(err)
				return
			}
			handles <- e.Handle
		})
	}
	wg.Wait()
	close(handles)

	seen := make(map[string]bool)
	for h := range handles {
		if seen[h] {
			t.Fatalf("duplicate handle %q", h)
		}
		seen[h] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d handles, got %d", n, len(seen))
	}
}

func testLongTTLRejected(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	// Past the last instant an int64 of nanoseconds since 1970 can hold.
	const centuries = 250 * 365 * 24 * time.Hour

	if _, err := s.Create(ctx, entry(centuries, "far")); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation on create, got %v", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("rejected create registered %d entries", stats.Entries)
	}

	e, err := s.Create(ctx, entry(time.Hour, "near"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExtendTTL(ctx, e.Handle, centuries); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation on extend, got %v", err)
	}
	got, err := s.Get(ctx, e.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ExpiresAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("rejected extend moved expires_at to %v", got.ExpiresAt)
	}
}

func testCreateCopiesPayload(t *testing.T, newStore Factory) {
	s, _, ctx := setup(t, newStore)

	n := entry(time.Hour, "c")
	e, err := s.Create(ctx, n)
	if err != nil {
		t.Fatal(err)
	}
	n.Payload[0].Data[0] = 'X'
	n.Payload[1].URI = "gs://bucket/other.pdf"

	if !bytes.Equal(e.Payload[0].Data, []byte("a long transcript")) || e.Payload[1].URI != "gs://bucket/paper.pdf" {
		t.Errorf("returned entry shares the caller's payload: %+v", e.Payload)
	}
	got, err := s.Get(ctx, e.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload[0].Data, []byte("a long transcript")) || got.Payload[1].URI != "gs://bucket/paper.pdf" {
		t.Errorf("stored entry shares the caller's payload: %+v", got.Payload)
	}
}
