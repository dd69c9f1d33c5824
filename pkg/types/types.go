package types

import (
	"fmt"
	"time"
)

// Side is the direction of a fill or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Activity represents a single leader fill ingested from the exchange
// data API. It is immutable once received; only the processing marker
// advances (in persistence, never on this struct).
type Activity struct {
	ID              string  `json:"_id" bson:"_id"`
	ProxyWallet     string  `json:"proxyWallet" bson:"proxyWallet"`
	ConditionID     string  `json:"conditionId" bson:"conditionId"`
	Asset           string  `json:"asset" bson:"asset"`
	Side            Side    `json:"side" bson:"side"`
	Size            float64 `json:"size" bson:"size"`
	UsdcSize        float64 `json:"usdcSize" bson:"usdcSize"`
	Price           float64 `json:"price" bson:"price"`
	Timestamp       int64   `json:"timestamp" bson:"timestamp"`
	TransactionHash string  `json:"transactionHash" bson:"transactionHash"`

	// Profile fields carried through opaquely from the data API.
	Title        string `json:"title,omitempty" bson:"title,omitempty"`
	Slug         string `json:"slug,omitempty" bson:"slug,omitempty"`
	Name         string `json:"name,omitempty" bson:"name,omitempty"`
	Pseudonym    string `json:"pseudonym,omitempty" bson:"pseudonym,omitempty"`
	ProfileImage string `json:"profileImage,omitempty" bson:"profileImage,omitempty"`

	// BotExecutedTime is the processing marker sentinel as stored:
	// 0 unseen, positive timestamp in-flight/completed, -1 skipped.
	// The field name preserves the historical store schema.
	BotExecutedTime int64 `json:"botExcutedTime" bson:"botExcutedTime"`
	// Bot is set when the aggregator discards the activity below minimum.
	Bot bool `json:"bot,omitempty" bson:"bot,omitempty"`
}

// Age returns how long ago the leader claims the fill happened.
func (a *Activity) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(a.Timestamp, 0))
}

// MarkerState is the lifecycle position of an activity's processing marker.
type MarkerState int

const (
	MarkerUnseen MarkerState = iota
	MarkerInFlight
	MarkerSkipped
	MarkerCompleted
)

func (s MarkerState) String() string {
	switch s {
	case MarkerUnseen:
		return "unseen"
	case MarkerInFlight:
		return "in-flight"
	case MarkerSkipped:
		return "skipped"
	case MarkerCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Marker is the tagged processing marker. The store maps it to the
// historical sentinel encoding on write: unseen=0, in-flight=claim
// timestamp, completed=completion timestamp, skipped=-1.
type Marker struct {
	State MarkerState
	Time  time.Time
}

// Sentinel returns the persisted encoding of the marker.
func (m Marker) Sentinel() int64 {
	switch m.State {
	case MarkerUnseen:
		return 0
	case MarkerSkipped:
		return -1
	default:
		return m.Time.Unix()
	}
}

// MarkerFromSentinel decodes a stored sentinel. In-flight and completed
// share the positive-timestamp encoding; callers that need to tell them
// apart must track completion separately (the engine does, by ordering).
func MarkerFromSentinel(v int64) Marker {
	switch {
	case v == 0:
		return Marker{State: MarkerUnseen}
	case v < 0:
		return Marker{State: MarkerSkipped}
	default:
		return Marker{State: MarkerInFlight, Time: time.Unix(v, 0)}
	}
}

// AggregationKey determines merge eligibility: fills from the same leader,
// market, outcome token, and side may be merged into one order.
type AggregationKey struct {
	Leader      string
	ConditionID string
	Asset       string
	Side        Side
}

func (k AggregationKey) String() string {
	return fmt.Sprintf("%s_%s_%s_%s", k.Leader, k.ConditionID, k.Asset, k.Side)
}

// KeyOf returns the aggregation key of an activity.
func KeyOf(a *Activity) AggregationKey {
	return AggregationKey{
		Leader:      a.ProxyWallet,
		ConditionID: a.ConditionID,
		Asset:       a.Asset,
		Side:        a.Side,
	}
}

// OrderArgs is the single-order contract consumed by the order client.
type OrderArgs struct {
	Asset string
	Side  Side
	Size  float64
	Price float64
}

// AggregatedTrade is one drained aggregation bucket: the merged order plus
// the activities that contributed to it.
type AggregatedTrade struct {
	Key           AggregationKey
	Trades        []*Activity
	TotalUsdcSize float64
	AveragePrice  float64
	WindowStart   time.Time
}

// Position is a holder's stake in one outcome token, valued in USD.
type Position struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	CurrentValue float64 `json:"currentValue"`
	AvgPrice     float64 `json:"avgPrice"`
}
