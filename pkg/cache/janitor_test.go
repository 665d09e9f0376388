package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
)

func TestJanitorPurgesExpired(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	c := cache.NewMemory(cache.WithClock(clk))
	ctx := context.Background()

	_, err := c.Create(ctx, models.NewCacheEntry{
		ModelID: "m",
		Payload: []models.PayloadRef{{MIMEType: "text/plain", Data: []byte("x")}},
		TTL:     time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)

	j := cache.StartJanitor(c, 5*time.Millisecond, zerolog.Nop())
	defer j.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := c.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Entries == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("janitor did not purge the expired entry")
}
