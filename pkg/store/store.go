package store

import (
	"context"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/types"
)

// ActivityStore is the persistence contract for leader activities and
// their processing markers. Marker writes are the execution engine's
// responsibility except for below-minimum aggregation buckets, which the
// aggregator marks directly.
type ActivityStore interface {
	// UpsertActivities inserts newly fetched activities, leaving existing
	// documents (and their markers) untouched.
	UpsertActivities(ctx context.Context, activities []*types.Activity) error

	// FindUnprocessed returns a leader's activities whose marker is unseen.
	FindUnprocessed(ctx context.Context, leader string) ([]*types.Activity, error)

	// GetMarker reads an activity's current marker.
	GetMarker(ctx context.Context, id string) (types.Marker, error)

	// ClaimActivity atomically moves an unseen activity in-flight. Returns
	// false when another worker already owns it.
	ClaimActivity(ctx context.Context, id string, claimedAt time.Time) (bool, error)

	// MarkCompleted records the terminal completed marker.
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error

	// MarkSkipped records the terminal skipped marker.
	MarkSkipped(ctx context.Context, id string) error

	// MarkAggregatedSkipped flags activities discarded by the aggregator
	// because their bucket stayed below the minimum order size.
	MarkAggregatedSkipped(ctx context.Context, ids []string) error
}
