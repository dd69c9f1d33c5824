package engine

import (
	"context"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/aggregator"
	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/market"
	"github.com/mirrorlabs/copytrader/pkg/store"
	"github.com/mirrorlabs/copytrader/pkg/types"
	"github.com/mirrorlabs/copytrader/pkg/validator"
)

// Engine drives the validate -> aggregate -> post -> mark pipeline for one
// follower account. Marker writes are the engine's exclusive
// responsibility; the aggregator only flags below-minimum discards.
type Engine struct {
	follower   string
	orders     market.OrderClient
	validator  *validator.Validator
	activities store.ActivityStore
	aggregator *aggregator.Aggregator
	clock      func() time.Time

	// onShutdown is invoked once when a critical final error demands the
	// process stop (insufficient funds, broken configuration).
	onShutdown func(error)
}

func New(follower string, orders market.OrderClient, v *validator.Validator,
	activities store.ActivityStore, agg *aggregator.Aggregator, onShutdown func(error)) *Engine {
	if onShutdown == nil {
		onShutdown = func(error) {}
	}
	return &Engine{
		follower:   follower,
		orders:     orders,
		validator:  v,
		activities: activities,
		aggregator: agg,
		clock:      time.Now,
		onShutdown: onShutdown,
	}
}

// WithClock overrides the wall clock, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// ExecuteTrade mirrors one leader fill. The claim CAS guarantees at most
// one worker ever advances a given activity past unseen; losing the race
// is a silent no-op.
func (e *Engine) ExecuteTrade(ctx context.Context, activity *types.Activity) error {
	claimed, err := e.activities.ClaimActivity(ctx, activity.ID, e.clock())
	if err != nil {
		return e.handleError(ctx, err)
	}
	if !claimed {
		logger.Sugar.Debugf("Activity %s already claimed, skipping", activity.ID)
		return nil
	}

	decision, err := e.validator.ValidateTrade(ctx, activity, e.follower)
	if err != nil {
		return e.handleError(ctx, err)
	}
	if !decision.IsValid {
		logger.Sugar.Infow("Trade skipped",
			"activity_id", activity.ID,
			"leader", activity.ProxyWallet,
			"reason", decision.Reason,
		)
		if markErr := e.activities.MarkSkipped(ctx, activity.ID); markErr != nil {
			return e.handleError(ctx, markErr)
		}
		return nil
	}

	if e.aggregator != nil {
		// Buffered fills keep their in-flight marker until the bucket
		// drains. The per-fill sizing decision is not carried into the
		// bucket: the merged order is posted at the bucket's total leader
		// USDC size.
		e.aggregator.Add(activity)
		logger.Sugar.Debugf("Activity %s buffered for aggregation (%d buckets live)",
			activity.ID, e.aggregator.Size())
		return nil
	}

	if err := e.postAndMark(ctx, types.OrderArgs{
		Asset: activity.Asset,
		Side:  activity.Side,
		Size:  decision.Sizing.FinalAmount,
		Price: activity.Price,
	}, []string{activity.ID}); err != nil {
		return err
	}
	return nil
}

// ExecuteAggregatedTrades posts one order per drained bucket, then marks
// every contributing activity completed. The post always precedes the
// marker writes, so a crash between the two leaves the activities
// in-flight, where they are never picked up again, rather than posting
// the order twice.
func (e *Engine) ExecuteAggregatedTrades(ctx context.Context, trades []*types.AggregatedTrade) error {
	for _, trade := range trades {
		ids := make([]string, 0, len(trade.Trades))
		for _, contribution := range trade.Trades {
			ids = append(ids, contribution.ID)
		}

		logger.Sugar.Infow("Posting aggregated order",
			"key", trade.Key.String(),
			"fills", len(trade.Trades),
			"total_usdc", trade.TotalUsdcSize,
			"avg_price", trade.AveragePrice,
		)

		if err := e.postAndMark(ctx, types.OrderArgs{
			Asset: trade.Key.Asset,
			Side:  trade.Key.Side,
			Size:  trade.TotalUsdcSize,
			Price: trade.AveragePrice,
		}, ids); err != nil {
			return err
		}
	}
	return nil
}

// DrainAggregated drains ready buckets and executes them.
func (e *Engine) DrainAggregated(ctx context.Context) error {
	if e.aggregator == nil {
		return nil
	}
	ready, err := e.aggregator.Ready(ctx)
	if err != nil {
		return e.handleError(ctx, err)
	}
	if len(ready) == 0 {
		return nil
	}
	return e.ExecuteAggregatedTrades(ctx, ready)
}

func (e *Engine) postAndMark(ctx context.Context, args types.OrderArgs, activityIDs []string) error {
	if err := e.orders.PostOrder(ctx, args); err != nil {
		classified := errors.Classify(err, "engine", "PostOrder")
		logger.Sugar.Errorw("Order post failed", errors.LogFields(classified)...)

		// A retryable failure leaves the markers in-flight so a later run
		// can reconcile; a final one retires the activities.
		if !classified.Retryable() {
			for _, id := range activityIDs {
				if markErr := e.activities.MarkSkipped(ctx, id); markErr != nil {
					logger.Sugar.Errorw("Failed to mark activity skipped", errors.LogFields(errors.Classify(markErr, "engine", "MarkSkipped"))...)
				}
			}
		}
		return e.handleError(ctx, classified)
	}

	completedAt := e.clock()
	for _, id := range activityIDs {
		if err := e.activities.MarkCompleted(ctx, id, completedAt); err != nil {
			return e.handleError(ctx, err)
		}
	}
	return nil
}

// handleError applies the recovery table: every classified error is
// logged by its recovery strategy and returned to the caller, and
// critical final errors also stop the process through the shutdown
// callback. The engine itself does not re-attempt retryable failures,
// and no circuit breaker wraps the store.
func (e *Engine) handleError(ctx context.Context, err error) error {
	classified := errors.Classify(err, "engine", "handleError")

	switch errors.Recovery(classified) {
	case errors.RecoveryShutdown:
		logger.Sugar.Errorw("Critical error, shutting down", errors.LogFields(classified)...)
		e.onShutdown(classified)
	case errors.RecoveryRetry:
		logger.Sugar.Warnw("Transient error", errors.LogFields(classified)...)
	case errors.RecoveryCircuitBreak:
		logger.Sugar.Warnw("Storage error", errors.LogFields(classified)...)
	default:
		logger.Sugar.Warnw("Skipping after error", errors.LogFields(classified)...)
	}
	return classified
}
