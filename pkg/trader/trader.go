package trader

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/engine"
	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/market"
	"github.com/mirrorlabs/copytrader/pkg/store"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultWorkers      = 4
)

// Trader is the long-running poller: each cycle it ingests every leader's
// recent fills, hands unseen ones to the engine through a worker pool, and
// drains ready aggregation buckets. Shutdown is cooperative; in-flight
// markers left behind stay in-flight, and later cycles do not pick those
// activities up again (only unseen activities are loaded).
type Trader struct {
	leaders      []string
	data         *market.DataClient
	engine       *engine.Engine
	activities   store.ActivityStore
	pollInterval time.Duration
	workers      int

	mu            sync.RWMutex
	started       bool
	lastPollTime  time.Time
	processedPoll int
}

func New(leaders []string, data *market.DataClient, eng *engine.Engine,
	activities store.ActivityStore, pollInterval time.Duration, workers int) *Trader {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Trader{
		leaders:      leaders,
		data:         data,
		engine:       eng,
		activities:   activities,
		pollInterval: pollInterval,
		workers:      workers,
	}
}

// Start runs the polling loop until the context is cancelled.
func (t *Trader) Start(ctx context.Context) error {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()

	logger.Sugar.Infof("Starting copy trader: %d leaders, poll every %v, %d workers",
		len(t.leaders), t.pollInterval, t.workers)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	// First cycle immediately instead of waiting out a full interval.
	t.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Sugar.Info("Copy trader stopped")
			t.mu.Lock()
			t.started = false
			t.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *Trader) pollOnce(ctx context.Context) {
	processed := 0
	for _, leader := range t.leaders {
		select {
		case <-ctx.Done():
			return
		default:
		}
		processed += t.pollLeader(ctx, leader)
	}

	if err := t.engine.DrainAggregated(ctx); err != nil {
		logger.Sugar.Warnw("Aggregation drain failed", errors.LogFields(errors.Classify(err, "trader", "DrainAggregated"))...)
	}

	t.mu.Lock()
	t.lastPollTime = time.Now()
	t.processedPoll = processed
	t.mu.Unlock()
}

func (t *Trader) pollLeader(ctx context.Context, leader string) int {
	fills, err := t.data.RecentTrades(ctx, leader)
	if err != nil {
		logger.Sugar.Warnw("Failed to fetch leader activity",
			append(errors.LogFields(errors.Classify(err, "trader", "RecentTrades")), "leader", leader)...)
		return 0
	}
	if len(fills) == 0 {
		return 0
	}

	if err := t.activities.UpsertActivities(ctx, fills); err != nil {
		logger.Sugar.Warnw("Failed to persist leader activity", errors.LogFields(errors.Classify(err, "trader", "UpsertActivities"))...)
		return 0
	}

	unprocessed, err := t.activities.FindUnprocessed(ctx, leader)
	if err != nil {
		logger.Sugar.Warnw("Failed to load unprocessed activity", errors.LogFields(errors.Classify(err, "trader", "FindUnprocessed"))...)
		return 0
	}
	if len(unprocessed) == 0 {
		return 0
	}

	logger.Sugar.Infof("Leader %s: %d unprocessed fills", leader, len(unprocessed))
	return t.executeConcurrently(ctx, unprocessed)
}

// IsStarted reports whether the polling loop is running.
func (t *Trader) IsStarted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

// LastPollTime returns when the last full cycle finished.
func (t *Trader) LastPollTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastPollTime
}

// IsHealthy reports whether a cycle completed recently.
func (t *Trader) IsHealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.started {
		return false
	}
	if t.lastPollTime.IsZero() {
		return true // starting up
	}
	return time.Since(t.lastPollTime) < 10*t.pollInterval
}
