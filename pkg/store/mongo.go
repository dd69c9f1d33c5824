package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/types"
	"github.com/mirrorlabs/copytrader/pkg/utils"
)

const activitiesCollection = "activities"

// MongoActivityStore persists leader activities in MongoDB. The document
// schema keeps the historical field names (botExcutedTime, bot) so
// existing deployments keep their processing history across upgrades.
type MongoActivityStore struct {
	activities *mongo.Collection
}

// NewMongoActivityStore connects to the given URI and database.
func NewMongoActivityStore(ctx context.Context, uri, database string) (*MongoActivityStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.NewDatabaseError("store", "NewMongoActivityStore", "failed to connect to MongoDB", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.NewDatabaseError("store", "NewMongoActivityStore", "MongoDB ping failed", err)
	}
	return &MongoActivityStore{
		activities: client.Database(database).Collection(activitiesCollection),
	}, nil
}

func (s *MongoActivityStore) UpsertActivities(ctx context.Context, activities []*types.Activity) error {
	for _, activity := range activities {
		filter := bson.M{"_id": activity.ID}
		update := bson.M{"$setOnInsert": activity}
		opts := options.Update().SetUpsert(true)

		_, err := utils.RequestResourceWithRetries(ctx, logger.Sugar, func() (interface{}, error) {
			return s.activities.UpdateOne(ctx, filter, update, opts)
		}, "upsert activity "+activity.ID)
		if err != nil {
			return errors.NewDatabaseError("store", "UpsertActivities", "failed to upsert activity", err,
				errors.WithActivityID(activity.ID))
		}
	}
	return nil
}

func (s *MongoActivityStore) FindUnprocessed(ctx context.Context, leader string) ([]*types.Activity, error) {
	filter := bson.M{"proxyWallet": leader, "botExcutedTime": 0}
	cursor, err := s.activities.Find(ctx, filter)
	if err != nil {
		return nil, errors.NewDatabaseError("store", "FindUnprocessed", "failed to query activities", err)
	}
	defer cursor.Close(ctx)

	var activities []*types.Activity
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, errors.NewDatabaseError("store", "FindUnprocessed", "failed to decode activities", err)
	}
	return activities, nil
}

func (s *MongoActivityStore) GetMarker(ctx context.Context, id string) (types.Marker, error) {
	var doc struct {
		BotExecutedTime int64 `bson:"botExcutedTime"`
	}
	err := s.activities.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return types.Marker{}, errors.NewValidationError("store", "GetMarker", "activity not found", err,
				errors.WithActivityID(id))
		}
		return types.Marker{}, errors.NewDatabaseError("store", "GetMarker", "failed to read marker", err,
			errors.WithActivityID(id))
	}
	return types.MarkerFromSentinel(doc.BotExecutedTime), nil
}

// ClaimActivity is the compare-and-set that enforces at-most-once
// mirroring: the filter only matches the unseen sentinel, so exactly one
// worker ever advances a given activity beyond it.
func (s *MongoActivityStore) ClaimActivity(ctx context.Context, id string, claimedAt time.Time) (bool, error) {
	marker := types.Marker{State: types.MarkerInFlight, Time: claimedAt}
	result, err := s.activities.UpdateOne(ctx,
		bson.M{"_id": id, "botExcutedTime": 0},
		bson.M{"$set": bson.M{"botExcutedTime": marker.Sentinel()}},
	)
	if err != nil {
		return false, errors.NewDatabaseError("store", "ClaimActivity", "failed to claim activity", err,
			errors.WithActivityID(id))
	}
	return result.ModifiedCount == 1, nil
}

func (s *MongoActivityStore) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	marker := types.Marker{State: types.MarkerCompleted, Time: completedAt}
	return s.setMarker(ctx, id, marker.Sentinel())
}

func (s *MongoActivityStore) MarkSkipped(ctx context.Context, id string) error {
	marker := types.Marker{State: types.MarkerSkipped}
	return s.setMarker(ctx, id, marker.Sentinel())
}

func (s *MongoActivityStore) MarkAggregatedSkipped(ctx context.Context, ids []string) error {
	skipped := types.Marker{State: types.MarkerSkipped}
	for _, id := range ids {
		_, err := utils.RequestResourceWithRetries(ctx, logger.Sugar, func() (interface{}, error) {
			return s.activities.UpdateOne(ctx,
				bson.M{"_id": id},
				bson.M{"$set": bson.M{"bot": true, "botExcutedTime": skipped.Sentinel()}},
			)
		}, "mark aggregated skip "+id)
		if err != nil {
			return errors.NewDatabaseError("store", "MarkAggregatedSkipped", "failed to flag activity", err,
				errors.WithActivityID(id))
		}
	}
	return nil
}

func (s *MongoActivityStore) setMarker(ctx context.Context, id string, sentinel int64) error {
	_, err := utils.RequestResourceWithRetries(ctx, logger.Sugar, func() (interface{}, error) {
		return s.activities.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"botExcutedTime": sentinel}},
		)
	}, "set marker "+id)
	if err != nil {
		return errors.NewDatabaseError("store", "setMarker", "failed to update marker", err,
			errors.WithActivityID(id))
	}
	return nil
}
