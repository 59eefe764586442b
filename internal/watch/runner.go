// internal/watch/runner.go
package watch

import (
	"context"
	"sync"
	"time"
)

// staleAfter is how long a host may go without a completed poll before
// its health turns stale.
func (w *Watcher) staleAfter() time.Duration {
	return max(3*w.cfg.Interval, time.Second)
}

// Run starts the poll ticker and the 1 Hz seconds-in-error ticker.
// One poll goroutine per host. No overlap. No retries.
// The seconds ticker runs on its own goroutine so a poll stuck on the
// port still leaves the host counting and going stale.
func (w *Watcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runSeconds(ctx)
	}()
	defer wg.Wait()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if res := w.PollOnce(); res.Err != nil {
				w.log.Warn("poll failed", "err", res.Err)
			}
		}
	}
}

func (w *Watcher) runSeconds(ctx context.Context) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-secTicker.C:
			if w.status.MarkStale(w.staleAfter()) {
				w.log.Warn("health changed", "health", w.status.Snapshot().Health.String())
			}
			w.status.Tick()
		}
	}
}
