package correlation

import (
	"context"
	"log/slog"
	"time"

	"github.com/lusakalabs/kwachaflow/internal/service"
)

// Sweeper periodically deletes correlation records past their retention
// window. The store is working memory for correlation, not an audit log.
type Sweeper struct {
	store     service.CorrelationStore
	interval  time.Duration
	retention time.Duration
}

// NewSweeper creates a sweeper with sane lower bounds on its durations.
func NewSweeper(store service.CorrelationStore, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
	}
}

// Run sweeps on a ticker until the context is canceled. Sweep failures are
// logged and the next tick tries again.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := w.store.SweepOlderThan(ctx, w.retention)
			if err != nil {
				slog.Error("correlation sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("swept expired correlation records", "deleted", deleted)
			}
		}
	}
}
