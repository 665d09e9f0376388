package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Janitor purges expired entries on a fixed interval.
type Janitor struct {
	store    Store
	interval time.Duration
	log      zerolog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

// StartJanitor launches the purge loop. Call Close to stop it.
func StartJanitor(store Store, interval time.Duration, log zerolog.Logger) *Janitor {
	j := &Janitor{
		store:    store,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
	j.wg.Add(1)
	go j.loop()
	return j
}

func (j *Janitor) loop() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.purge()
		}
	}
}

func (j *Janitor) purge() {
	n, err := j.store.Purge(context.Background())
	if err != nil {
		j.log.Error().Err(err).Msg("cache purge failed")
		return
	}
	if n > 0 {
		j.log.Info().Int64("purged", n).Msg("expired cache entries purged")
	}
}

// Close stops the purge loop and waits for it to exit.
func (j *Janitor) Close() {
	close(j.done)
	j.wg.Wait()
}
