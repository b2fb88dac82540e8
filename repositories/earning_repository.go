package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/refermart/refermart_backend/models"
)

// EarningRepository serves the read side of the ledger: summaries and team
// earning lookups. Writes go through WalletRepository.CreditEarning only.
type EarningRepository struct {
	collection *mongo.Collection
}

func NewEarningRepository(db *mongo.Database) *EarningRepository {
	return &EarningRepository{
		collection: db.Collection("earnings"),
	}
}

// SummaryByStage groups a member's earnings by stage-at-credit.
func (r *EarningRepository) SummaryByStage(ctx context.Context, memberID primitive.ObjectID) ([]models.EarningsSummaryRow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"beneficiaryId": memberID}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$stage",
			"count":       bson.M{"$sum": 1},
			"totalEarned": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	defer cursor.Close(ctx)

	rows := []models.EarningsSummaryRow{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode earnings summary: %w", err)
	}
	return rows, nil
}

// TotalsBySource sums what the beneficiary earned from each of the given
// source members. Members absent from the map contributed nothing.
func (r *EarningRepository) TotalsBySource(ctx context.Context, beneficiaryID primitive.ObjectID, sourceIDs []primitive.ObjectID) (map[primitive.ObjectID]float64, error) {
	totals := make(map[primitive.ObjectID]float64, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return totals, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"beneficiaryId": beneficiaryID,
			"sourceId":      bson.M{"$in": sourceIDs},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$sourceId",
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate source totals: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		SourceID primitive.ObjectID `bson:"_id"`
		Total    float64            `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode source totals: %w", err)
	}
	for _, row := range rows {
		totals[row.SourceID] = row.Total
	}
	return totals, nil
}

// ListByBeneficiary returns a member's earning records, newest first.
func (r *EarningRepository) ListByBeneficiary(ctx context.Context, memberID primitive.ObjectID, limit int64) ([]models.EarningRecord, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"beneficiaryId": memberID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.EarningRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode earnings: %w", err)
	}
	return records, nil
}
