package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/cache/cachetest"
	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
)

func newTestCache(t *testing.T, dbPath string, clk clock.Clock) *Cache {
	t.Helper()
	c, err := New(dbPath, cache.WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache(t *testing.T) {
	cachetest.Run(t, func(t *testing.T, clk clock.Clock) cache.Store {
		return newTestCache(t, filepath.Join(t.TempDir(), "cache_test.db"), clk)
	})
}

func TestExpiredEntryStaysOnDiskUntilPurge(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	clk := clock.NewManual(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCache(t, dbPath, clk)
	ctx := context.Background()

	e, err := c.Create(ctx, models.NewCacheEntry{
		ModelID: "m",
		Payload: []models.PayloadRef{{MIMEType: "text/plain", Data: []byte("x")}},
		TTL:     time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Second)

	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries WHERE handle = ?`, e.Handle).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected expired row to remain until purge, got %d rows", n)
	}

	if _, err := c.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected purge to remove the row, got %d", n)
	}
}
