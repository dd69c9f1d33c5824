package validator

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/policy"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

// DefaultFreshnessHorizon rejects fills older than this; mirroring stale
// prices copies the leader's entry long after the market moved.
const DefaultFreshnessHorizon = 5 * time.Minute

// BalanceSource reads the follower's available balance.
type BalanceSource interface {
	GetBalance(ctx context.Context, address string) (float64, error)
}

// PositionSource reads a holder's USD value in one outcome token.
type PositionSource interface {
	PositionValue(ctx context.Context, holder, asset string) (float64, error)
}

// MarkerSource reads an activity's processing marker.
type MarkerSource interface {
	GetMarker(ctx context.Context, id string) (types.Marker, error)
}

// Decision is the outcome of validating one leader fill. When IsValid is
// true the sizing output rides along so the engine need not recompute it.
type Decision struct {
	IsValid      bool
	Reason       string
	Sizing       policy.SizedOrder
	MyBalance    float64
	UserBalance  float64
	MyPosition   float64
	UserPosition float64
}

// Validator combines the sizing policy with freshness, marker, and
// duplicate-transaction checks.
type Validator struct {
	policyConfig policy.Config
	balances     BalanceSource
	positions    PositionSource
	markers      MarkerSource
	horizon      time.Duration
	clock        func() time.Time

	mu      sync.Mutex
	seenTxs map[string]struct{}
}

func New(cfg policy.Config, balances BalanceSource, positions PositionSource, markers MarkerSource, horizon time.Duration) *Validator {
	if horizon <= 0 {
		horizon = DefaultFreshnessHorizon
	}
	return &Validator{
		policyConfig: cfg,
		balances:     balances,
		positions:    positions,
		markers:      markers,
		horizon:      horizon,
		clock:        time.Now,
		seenTxs:      make(map[string]struct{}),
	}
}

// WithClock overrides the wall clock, for tests.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// ValidateTrade decides whether a leader fill should be mirrored for the
// follower, and at what size.
func (v *Validator) ValidateTrade(ctx context.Context, activity *types.Activity, follower string) (Decision, error) {
	marker, err := v.markers.GetMarker(ctx, activity.ID)
	if err != nil {
		return Decision{}, err
	}
	// In-flight is the caller's own claim; anything terminal is a repeat.
	if marker.State != types.MarkerUnseen && marker.State != types.MarkerInFlight {
		return Decision{Reason: "Already processed"}, nil
	}

	if activity.Age(v.clock()) > v.horizon {
		return Decision{Reason: "Stale activity"}, nil
	}

	if v.isDuplicate(activity) {
		return Decision{Reason: "Duplicate transaction"}, nil
	}

	balance, err := v.balances.GetBalance(ctx, follower)
	if err != nil {
		return Decision{}, err
	}

	// The leader's balance is informational; a failed read never blocks
	// the trade.
	leaderBalance, err := v.balances.GetBalance(ctx, activity.ProxyWallet)
	if err != nil {
		leaderBalance = 0
	}

	myPosition, err := v.positions.PositionValue(ctx, follower, activity.Asset)
	if err != nil {
		logger.Sugar.Warnw("Position lookup failed, assuming flat", errors.LogFields(err)...)
		myPosition = 0
	}
	userPosition, err := v.positions.PositionValue(ctx, activity.ProxyWallet, activity.Asset)
	if err != nil {
		userPosition = 0
	}

	sizing := policy.CalculateOrderSize(v.policyConfig, activity.UsdcSize, balance, myPosition)

	decision := Decision{
		Sizing:       sizing,
		MyBalance:    balance,
		UserBalance:  leaderBalance,
		MyPosition:   myPosition,
		UserPosition: userPosition,
	}

	if sizing.FinalAmount <= 0 {
		if sizing.ReducedByBalance {
			decision.Reason = "Insufficient balance"
		} else {
			decision.Reason = "Below minimum"
		}
		return decision, nil
	}

	v.rememberTx(activity)
	decision.IsValid = true
	return decision, nil
}

// Reset clears the duplicate-transaction guard.
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seenTxs = make(map[string]struct{})
}

func (v *Validator) isDuplicate(activity *types.Activity) bool {
	if activity.TransactionHash == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, seen := v.seenTxs[txKey(activity)]
	return seen
}

func (v *Validator) rememberTx(activity *types.Activity) {
	if activity.TransactionHash == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seenTxs[txKey(activity)] = struct{}{}
}

// txKey includes the asset and side because one on-chain transaction can
// legitimately carry fills for both outcome tokens.
func txKey(activity *types.Activity) string {
	return activity.TransactionHash + "_" + activity.Asset + "_" + string(activity.Side)
}
