package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/cache/cachetest"
	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
)

func TestMemoryCache(t *testing.T) {
	cachetest.Run(t, func(t *testing.T, clk clock.Clock) cache.Store {
		return cache.NewMemory(cache.WithClock(clk))
	})
}

func TestMemoryCopiesPayload(t *testing.T) {
	c := cache.NewMemory()
	ctx := context.Background()

	data := []byte("original")
	e, err := c.Create(ctx, models.NewCacheEntry{
		ModelID: "m",
		Payload: []models.PayloadRef{{MIMEType: "text/plain", Data: data}},
		TTL:     time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 'X'
	e.Payload[0].Data[1] = 'Y'

	got, err := c.Get(ctx, e.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload[0].Data) != "original" {
		t.Errorf("stored payload was mutated: %q", got.Payload[0].Data)
	}
}
