package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarkerSentinelRoundTrip(t *testing.T) {
	claimed := Marker{State: MarkerInFlight, Time: time.Unix(1700000000, 0)}
	require.Equal(t, int64(1700000000), claimed.Sentinel())

	decoded := MarkerFromSentinel(claimed.Sentinel())
	require.Equal(t, MarkerInFlight, decoded.State)
	require.Equal(t, claimed.Time.Unix(), decoded.Time.Unix())

	require.Equal(t, int64(0), Marker{State: MarkerUnseen}.Sentinel())
	require.Equal(t, int64(-1), Marker{State: MarkerSkipped}.Sentinel())
	require.Equal(t, MarkerUnseen, MarkerFromSentinel(0).State)
	require.Equal(t, MarkerSkipped, MarkerFromSentinel(-1).State)
}

func TestAggregationKey(t *testing.T) {
	a := &Activity{ProxyWallet: "0xleader", ConditionID: "cond", Asset: "token", Side: SideBuy}
	b := &Activity{ProxyWallet: "0xleader", ConditionID: "cond", Asset: "token", Side: SideBuy, Price: 0.9}
	c := &Activity{ProxyWallet: "0xleader", ConditionID: "cond", Asset: "token", Side: SideSell}

	require.Equal(t, KeyOf(a), KeyOf(b), "price does not affect merge eligibility")
	require.NotEqual(t, KeyOf(a), KeyOf(c), "opposite sides never merge")
	require.Contains(t, KeyOf(a).String(), "0xleader")
}

func TestActivityAge(t *testing.T) {
	now := time.Unix(2000, 0)
	activity := &Activity{Timestamp: 1700}
	require.Equal(t, 300*time.Second, activity.Age(now))
}
