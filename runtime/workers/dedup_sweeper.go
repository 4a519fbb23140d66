package workers

import (
	"context"
	"gym-chat/contract"
	"gym-chat/observability"
	"log/slog"
	"time"
)

// DedupSweepWorker purges dedup entries whose window has elapsed.
type DedupSweepWorker struct {
	log      *slog.Logger
	dedup    contract.IDeduplicator
	metrics  *observability.Metrics
	interval time.Duration
	now      func() time.Time
}

func NewDedupSweepWorker(log *slog.Logger, dedup contract.IDeduplicator,
	metrics *observability.Metrics, interval time.Duration) *DedupSweepWorker {
	return &DedupSweepWorker{log: log, dedup: dedup, metrics: metrics, interval: interval, now: time.Now}
}

func (w *DedupSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping dedup sweep")
			return nil
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *DedupSweepWorker) sweep() {
	removed := w.dedup.Sweep(w.now())
	if removed > 0 {
		w.metrics.DedupEntriesSwept.Add(float64(removed))
		w.log.Debug("Dedup entries swept", "removed", removed)
	}
}
