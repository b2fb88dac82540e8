package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/refermart/refermart_backend/models"
)

// MatrixRepository tracks slot fills with one document per (owner, stage).
// The claim path never reads then writes: the conditional update is the only
// thing deciding whether a slot is still free, so two concurrent claims can
// neither overfill a matrix nor both observe the completing fill.
type MatrixRepository struct {
	collection *mongo.Collection
}

func NewMatrixRepository(db *mongo.Database) *MatrixRepository {
	return &MatrixRepository{
		collection: db.Collection("matrix_slots"),
	}
}

// EnsureMatrix creates the (owner, stage) record at zero filled slots if it
// does not exist. The unique (ownerId, stage) index makes concurrent ensures
// collapse into one document.
func (r *MatrixRepository) EnsureMatrix(ctx context.Context, ownerID primitive.ObjectID, stage string, required int) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"ownerId": ownerID, "stage": stage},
		bson.M{
			"$setOnInsert": bson.M{
				"slotsRequired": required,
				"slotsFilled":   0,
				"slots":         []models.MatrixSlot{},
				"createdAt":     now,
				"updatedAt":     now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return ensureMatrixErr(ownerID, stage, err)
}

// ensureMatrixErr classifies an EnsureMatrix upsert failure. Two first-time
// ensures can race on the unique index; the loser's duplicate key means the
// document exists, which is all EnsureMatrix promises.
func ensureMatrixErr(ownerID primitive.ObjectID, stage string, err error) error {
	if err == nil || mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return asConflict(err, fmt.Sprintf("ensure matrix %s/%s", ownerID.Hex(), stage))
}

// ClaimSlot fills the next free slot for (owner, stage). The filter admits
// the update only while slotsFilled is below slotsRequired, so the filled
// count can never exceed the requirement and exactly one claim sees
// JustCompleted. A full matrix returns AlreadyComplete without mutation.
func (r *MatrixRepository) ClaimSlot(ctx context.Context, ownerID primitive.ObjectID, stage string, occupantID primitive.ObjectID) (models.SlotClaim, error) {
	filter := bson.M{
		"ownerId": ownerID,
		"stage":   stage,
		"$expr":   bson.M{"$lt": bson.A{"$slotsFilled", "$slotsRequired"}},
	}
	update := bson.M{
		"$inc": bson.M{"slotsFilled": 1},
		"$push": bson.M{"slots": models.MatrixSlot{
			OccupantID: occupantID,
			FilledAt:   time.Now(),
		}},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	var updated models.MatrixRecord
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		// Either the matrix is already full or it was never initialized.
		var existing models.MatrixRecord
		err := r.collection.FindOne(ctx, bson.M{"ownerId": ownerID, "stage": stage}).Decode(&existing)
		if err == mongo.ErrNoDocuments {
			return models.SlotClaim{}, fmt.Errorf("%w: matrix %s/%s not initialized",
				models.ErrIntegrity, ownerID.Hex(), stage)
		}
		if err != nil {
			return models.SlotClaim{}, fmt.Errorf("failed to inspect matrix %s/%s: %w", ownerID.Hex(), stage, err)
		}
		return models.SlotClaim{
			SlotsFilled:     existing.SlotsFilled,
			SlotsRequired:   existing.SlotsRequired,
			AlreadyComplete: true,
		}, nil
	}
	if err != nil {
		return models.SlotClaim{}, asConflict(err, fmt.Sprintf("claim slot %s/%s", ownerID.Hex(), stage))
	}

	return models.SlotClaim{
		SlotsFilled:   updated.SlotsFilled,
		SlotsRequired: updated.SlotsRequired,
		JustCompleted: updated.SlotsFilled == updated.SlotsRequired,
	}, nil
}

// Progress returns the matrix record for (owner, stage), or (nil, nil) when
// the member has not entered that stage yet.
func (r *MatrixRepository) Progress(ctx context.Context, ownerID primitive.ObjectID, stage string) (*models.MatrixRecord, error) {
	var record models.MatrixRecord
	err := r.collection.FindOne(ctx, bson.M{"ownerId": ownerID, "stage": stage}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find matrix %s/%s: %w", ownerID.Hex(), stage, err)
	}
	return &record, nil
}
