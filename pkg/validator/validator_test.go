package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/policy"
	"github.com/mirrorlabs/copytrader/pkg/store"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

func init() {
	logger.Init(true)
}

type fakeBalances struct {
	balance float64
	err     error
}

func (f *fakeBalances) GetBalance(ctx context.Context, address string) (float64, error) {
	return f.balance, f.err
}

type fakePositions struct {
	values map[string]float64
}

func (f *fakePositions) PositionValue(ctx context.Context, holder, asset string) (float64, error) {
	return f.values[holder+"/"+asset], nil
}

func testPolicy() policy.Config {
	return policy.Config{
		Strategy:        policy.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	}
}

func setup(t *testing.T, balance float64) (*Validator, *store.MemoryActivityStore, *testClockV) {
	t.Helper()
	clock := &testClockV{now: time.Unix(100000, 0)}
	activities := store.NewMemoryActivityStore()
	v := New(testPolicy(), &fakeBalances{balance: balance}, &fakePositions{values: map[string]float64{}},
		activities, 5*time.Minute).WithClock(clock.Now)
	return v, activities, clock
}

type testClockV struct {
	now time.Time
}

func (c *testClockV) Now() time.Time { return c.now }

func freshActivity(id string, clock *testClockV) *types.Activity {
	return &types.Activity{
		ID:              id,
		ProxyWallet:     "0xleader",
		ConditionID:     "cond",
		Asset:           "token",
		Side:            types.SideBuy,
		UsdcSize:        100,
		Price:           0.5,
		Timestamp:       clock.now.Unix() - 30,
		TransactionHash: "0xhash" + id,
	}
}

func TestValidateTrade_Valid(t *testing.T) {
	v, activities, clock := setup(t, 50)
	ctx := context.Background()

	activity := freshActivity("a1", clock)
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{activity}))

	decision, err := v.ValidateTrade(ctx, activity, "0xfollower")
	require.NoError(t, err)
	require.True(t, decision.IsValid)
	require.InDelta(t, 10, decision.Sizing.FinalAmount, 1e-9)
	require.InDelta(t, 50, decision.MyBalance, 1e-9)
}

func TestValidateTrade_Stale(t *testing.T) {
	v, activities, clock := setup(t, 50)
	ctx := context.Background()

	activity := freshActivity("a1", clock)
	activity.Timestamp = clock.now.Add(-10 * time.Minute).Unix()
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{activity}))

	decision, err := v.ValidateTrade(ctx, activity, "0xfollower")
	require.NoError(t, err)
	require.False(t, decision.IsValid)
	require.Equal(t, "Stale activity", decision.Reason)
}

func TestValidateTrade_AlreadyProcessed(t *testing.T) {
	v, activities, clock := setup(t, 50)
	ctx := context.Background()

	activity := freshActivity("a1", clock)
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{activity}))
	require.NoError(t, activities.MarkSkipped(ctx, "a1"))

	decision, err := v.ValidateTrade(ctx, activity, "0xfollower")
	require.NoError(t, err)
	require.False(t, decision.IsValid)
	require.Equal(t, "Already processed", decision.Reason)
}

func TestValidateTrade_OwnClaimIsAccepted(t *testing.T) {
	v, activities, clock := setup(t, 50)
	ctx := context.Background()

	activity := freshActivity("a1", clock)
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{activity}))

	// The engine claims before validating; its own in-flight marker must
	// not fail validation.
	claimed, err := activities.ClaimActivity(ctx, "a1", clock.now)
	require.NoError(t, err)
	require.True(t, claimed)

	decision, err := v.ValidateTrade(ctx, activity, "0xfollower")
	require.NoError(t, err)
	require.True(t, decision.IsValid)
}

func TestValidateTrade_Duplicate(t *testing.T) {
	v, activities, clock := setup(t, 50)
	ctx := context.Background()

	first := freshActivity("a1", clock)
	second := freshActivity("a2", clock)
	second.TransactionHash = first.TransactionHash
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{first, second}))

	decision, err := v.ValidateTrade(ctx, first, "0xfollower")
	require.NoError(t, err)
	require.True(t, decision.IsValid)

	decision, err = v.ValidateTrade(ctx, second, "0xfollower")
	require.NoError(t, err)
	require.False(t, decision.IsValid)
	require.Equal(t, "Duplicate transaction", decision.Reason)

	// Reset clears the guard.
	v.Reset()
	decision, err = v.ValidateTrade(ctx, second, "0xfollower")
	require.NoError(t, err)
	require.True(t, decision.IsValid)
}

func TestValidateTrade_BelowMinimum(t *testing.T) {
	v, activities, clock := setup(t, 50)
	ctx := context.Background()

	activity := freshActivity("a1", clock)
	activity.UsdcSize = 5 // 10% of $5 is below the $1 minimum
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{activity}))

	decision, err := v.ValidateTrade(ctx, activity, "0xfollower")
	require.NoError(t, err)
	require.False(t, decision.IsValid)
	require.Equal(t, "Below minimum", decision.Reason)
	require.True(t, decision.Sizing.BelowMinimum)
}

func TestValidateTrade_InsufficientBalance(t *testing.T) {
	v, activities, clock := setup(t, 0.5)
	ctx := context.Background()

	activity := freshActivity("a1", clock)
	require.NoError(t, activities.UpsertActivities(ctx, []*types.Activity{activity}))

	decision, err := v.ValidateTrade(ctx, activity, "0xfollower")
	require.NoError(t, err)
	require.False(t, decision.IsValid)
	require.Equal(t, "Insufficient balance", decision.Reason)
}

func TestValidateTrade_BalanceErrorPropagates(t *testing.T) {
	clock := &testClockV{now: time.Unix(100000, 0)}
	activities := store.NewMemoryActivityStore()
	v := New(testPolicy(), &fakeBalances{err: context.DeadlineExceeded},
		&fakePositions{values: map[string]float64{}}, activities, 5*time.Minute).WithClock(clock.Now)

	activity := freshActivity("a1", clock)
	require.NoError(t, activities.UpsertActivities(context.Background(), []*types.Activity{activity}))

	_, err := v.ValidateTrade(context.Background(), activity, "0xfollower")
	require.Error(t, err)
}
