package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

// MemoryActivityStore is an in-process ActivityStore with the same marker
// semantics as the Mongo store. It backs tests and dry runs where no
// database is available.
type MemoryActivityStore struct {
	mu         sync.Mutex
	activities map[string]*types.Activity
	flagged    map[string]bool
}

func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{
		activities: make(map[string]*types.Activity),
		flagged:    make(map[string]bool),
	}
}

func (s *MemoryActivityStore) UpsertActivities(ctx context.Context, activities []*types.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, activity := range activities {
		if _, exists := s.activities[activity.ID]; exists {
			continue
		}
		clone := *activity
		s.activities[activity.ID] = &clone
	}
	return nil
}

func (s *MemoryActivityStore) FindUnprocessed(ctx context.Context, leader string) ([]*types.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unprocessed []*types.Activity
	for _, activity := range s.activities {
		if activity.ProxyWallet == leader && activity.BotExecutedTime == 0 {
			clone := *activity
			unprocessed = append(unprocessed, &clone)
		}
	}
	sort.Slice(unprocessed, func(i, j int) bool {
		return unprocessed[i].Timestamp < unprocessed[j].Timestamp
	})
	return unprocessed, nil
}

func (s *MemoryActivityStore) GetMarker(ctx context.Context, id string) (types.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[id]
	if !ok {
		return types.Marker{}, errors.NewValidationError("store", "GetMarker", "activity not found", nil,
			errors.WithActivityID(id))
	}
	return types.MarkerFromSentinel(activity.BotExecutedTime), nil
}

func (s *MemoryActivityStore) ClaimActivity(ctx context.Context, id string, claimedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[id]
	if !ok || activity.BotExecutedTime != 0 {
		return false, nil
	}
	activity.BotExecutedTime = types.Marker{State: types.MarkerInFlight, Time: claimedAt}.Sentinel()
	return true, nil
}

func (s *MemoryActivityStore) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	return s.setSentinel(id, types.Marker{State: types.MarkerCompleted, Time: completedAt}.Sentinel())
}

func (s *MemoryActivityStore) MarkSkipped(ctx context.Context, id string) error {
	return s.setSentinel(id, types.Marker{State: types.MarkerSkipped}.Sentinel())
}

func (s *MemoryActivityStore) MarkAggregatedSkipped(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if activity, ok := s.activities[id]; ok {
			activity.Bot = true
			activity.BotExecutedTime = types.Marker{State: types.MarkerSkipped}.Sentinel()
			s.flagged[id] = true
		}
	}
	return nil
}

// Sentinel returns the stored marker sentinel, for assertions in tests.
func (s *MemoryActivityStore) Sentinel(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if activity, ok := s.activities[id]; ok {
		return activity.BotExecutedTime
	}
	return 0
}

// Flagged reports whether the aggregator discarded the activity.
func (s *MemoryActivityStore) Flagged(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagged[id]
}

func (s *MemoryActivityStore) setSentinel(id string, sentinel int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[id]
	if !ok {
		return errors.NewValidationError("store", "setSentinel", "activity not found", nil,
			errors.WithActivityID(id))
	}
	activity.BotExecutedTime = sentinel
	return nil
}
