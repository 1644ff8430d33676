package metrics

import (
	"context"
	"log/slog"
	"time"
)

// CountFunc reports the current size of something worth graphing.
type CountFunc func(ctx context.Context) (int, error)

// Aggregator periodically refreshes gauges that are too costly to keep
// current on every event, such as the number of training images on disk.
type Aggregator struct {
	manager  *Manager
	count    CountFunc
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
}

// NewAggregator creates a new metrics aggregator worker
func NewAggregator(manager *Manager, count CountFunc, logger *slog.Logger, interval time.Duration) *Aggregator {
	if interval == 0 {
		interval = 1 * time.Minute
	}

	return &Aggregator{
		manager:  manager,
		count:    count,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start refreshes once, then on every tick until ctx ends or Stop is called.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("metrics aggregator started", "interval", a.interval)
	a.aggregate(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("metrics aggregator stopped")
			return
		case <-a.done:
			a.logger.Info("metrics aggregator stopped")
			return
		case <-ticker.C:
			a.aggregate(ctx)
		}
	}
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
}

func (a *Aggregator) aggregate(ctx context.Context) {
	n, err := a.count(ctx)
	if err != nil {
		a.logger.Error("failed to count training images", "error", err)
		return
	}
	a.manager.SetTrainingImages(n)
	a.logger.Debug("metrics refreshed", "training_images", n)
}
