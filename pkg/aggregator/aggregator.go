package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/store"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

// DefaultWindow is how long a bucket collects same-key fills before it
// becomes eligible for draining.
const DefaultWindow = 60 * time.Second

type bucket struct {
	key           types.AggregationKey
	trades        []*types.Activity
	totalUsdcSize float64
	averagePrice  float64
	windowStart   time.Time
	createdOrder  int
}

// Aggregator merges same-key fills inside a time window into one
// weighted-average order. Buckets are owned exclusively by the
// aggregator; callers poll Ready to drain them.
type Aggregator struct {
	window          time.Duration
	minOrderSizeUSD float64
	activities      store.ActivityStore
	clock           func() time.Time

	mu      sync.Mutex
	buckets map[types.AggregationKey]*bucket
	nextSeq int
}

func New(window time.Duration, minOrderSizeUSD float64, activities store.ActivityStore) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Aggregator{
		window:          window,
		minOrderSizeUSD: minOrderSizeUSD,
		activities:      activities,
		clock:           time.Now,
		buckets:         make(map[types.AggregationKey]*bucket),
	}
}

// WithClock overrides the wall clock, for tests.
func (a *Aggregator) WithClock(clock func() time.Time) *Aggregator {
	a.clock = clock
	return a
}

// Add buffers one fill. The first fill for a key opens its bucket and
// pins the window start; later fills only extend the totals.
func (a *Aggregator) Add(activity *types.Activity) {
	key := types.KeyOf(activity)

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[key]
	if !ok {
		b = &bucket{
			key:          key,
			windowStart:  a.clock(),
			createdOrder: a.nextSeq,
		}
		a.nextSeq++
		a.buckets[key] = b
	}

	b.trades = append(b.trades, activity)
	b.recompute()
}

// Ready drains every bucket whose window has elapsed, in bucket-creation
// order. Buckets below the minimum order size are dropped and their
// contributors flagged as skipped in persistence instead of being emitted.
func (a *Aggregator) Ready(ctx context.Context) ([]*types.AggregatedTrade, error) {
	now := a.clock()

	a.mu.Lock()
	var due []*bucket
	for key, b := range a.buckets {
		if now.Sub(b.windowStart) >= a.window {
			due = append(due, b)
			delete(a.buckets, key)
		}
	}
	a.mu.Unlock()

	// Emission order is bucket-creation order regardless of map iteration.
	for i := 0; i < len(due); i++ {
		for j := i + 1; j < len(due); j++ {
			if due[j].createdOrder < due[i].createdOrder {
				due[i], due[j] = due[j], due[i]
			}
		}
	}

	var ready []*types.AggregatedTrade
	for _, b := range due {
		if b.totalUsdcSize < a.minOrderSizeUSD {
			ids := make([]string, 0, len(b.trades))
			for _, trade := range b.trades {
				ids = append(ids, trade.ID)
			}
			logger.Sugar.Infof("Dropping aggregated bucket %s: $%.2f below minimum $%.2f (%d fills)",
				b.key, b.totalUsdcSize, a.minOrderSizeUSD, len(b.trades))
			if err := a.activities.MarkAggregatedSkipped(ctx, ids); err != nil {
				return ready, err
			}
			continue
		}

		ready = append(ready, &types.AggregatedTrade{
			Key:           b.key,
			Trades:        b.trades,
			TotalUsdcSize: b.totalUsdcSize,
			AveragePrice:  b.averagePrice,
			WindowStart:   b.windowStart,
		})
	}

	return ready, nil
}

// Size returns the number of live buckets.
func (a *Aggregator) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

// Reset discards every live bucket without marking anything.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buckets = make(map[types.AggregationKey]*bucket)
}

func (b *bucket) recompute() {
	var total, weighted float64
	for _, trade := range b.trades {
		total += trade.UsdcSize
		weighted += trade.UsdcSize * trade.Price
	}
	b.totalUsdcSize = total
	if total > 0 {
		b.averagePrice = weighted / total
	} else {
		b.averagePrice = 0
	}
}
