package repositories

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refermart/refermart_backend/models"
)

// How long the redis duplicate-suppression key lives. Mongo's unique index
// is the authoritative check; redis only saves the insert round trip on hot
// retries.
const eventKeyTTL = 24 * time.Hour

// EventRepository provides idempotency for referral events via a
// referral_events collection with a unique index on eventKey, with an
// optional redis fast path.
type EventRepository struct {
	collection *mongo.Collection
	redis      *redis.Client
}

func NewEventRepository(db *mongo.Database, redisClient *redis.Client) *EventRepository {
	return &EventRepository{
		collection: db.Collection("referral_events"),
		redis:      redisClient,
	}
}

// Begin registers the event key, reporting whether a completed delivery of
// the same event already exists and, if so, its stored result. A marker left
// in "processing" by a failed first delivery does not count as a duplicate;
// the redelivery runs again against the existing marker so the ancestors
// eventually get paid.
func (r *EventRepository) Begin(ctx context.Context, key string, newMemberID primitive.ObjectID) (*models.CompensationResult, bool, error) {
	if r.redis != nil {
		set, err := r.redis.SetNX(ctx, "referral_event:"+key, "1", eventKeyTTL).Result()
		if err != nil {
			log.Printf("Warning: redis event check failed, falling back to mongo: %v", err)
		} else if !set {
			// Redis has seen the key, but only a completed mongo marker is
			// authoritative.
			prior, completed, err := r.completedResult(ctx, key)
			if err != nil {
				return nil, false, err
			}
			if completed {
				return prior, true, nil
			}
		}
	}

	event := models.ReferralEvent{
		EventKey:    key,
		NewMemberID: newMemberID,
		Status:      "processing",
		CreatedAt:   time.Now(),
	}
	_, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			prior, completed, err := r.completedResult(ctx, key)
			if err != nil {
				return nil, false, err
			}
			if completed {
				return prior, true, nil
			}
			// The earlier delivery never completed; reuse its marker and
			// process again.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to register referral event: %w", err)
	}
	return nil, false, nil
}

// Complete stores the result of a processed event against its key.
func (r *EventRepository) Complete(ctx context.Context, key string, result *models.CompensationResult) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"eventKey": key},
		bson.M{"$set": bson.M{
			"status":      "completed",
			"result":      result,
			"completedAt": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to complete referral event: %w", err)
	}
	return nil
}

// completedResult loads the event marker and reports its result when the
// first delivery finished. A missing marker or one still in "processing"
// returns completed=false.
func (r *EventRepository) completedResult(ctx context.Context, key string) (*models.CompensationResult, bool, error) {
	var event models.ReferralEvent
	err := r.collection.FindOne(ctx, bson.M{"eventKey": key}).Decode(&event)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load referral event: %w", err)
	}
	if event.Status != "completed" {
		return nil, false, nil
	}
	return event.Result, true, nil
}
