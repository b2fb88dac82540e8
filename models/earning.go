package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EarningRecord is the immutable audit entry for one bonus payout. Stage is
// the beneficiary's stage at the moment of credit, which fixes the bonus
// amount for good even if the beneficiary advances later.
type EarningRecord struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BeneficiaryID primitive.ObjectID `json:"beneficiaryId" bson:"beneficiaryId"`
	SourceID      primitive.ObjectID `json:"sourceId" bson:"sourceId"`
	Stage         string             `json:"stage" bson:"stage"`
	Amount        float64            `json:"amount" bson:"amount"`
	Level         int                `json:"level" bson:"level"` // 1 = direct, 2 = indirect
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
}

// EarningsSummaryRow is one group of the per-stage earnings summary.
type EarningsSummaryRow struct {
	Stage       string  `json:"stage" bson:"_id"`
	Count       int     `json:"count" bson:"count"`
	TotalEarned float64 `json:"totalEarned" bson:"totalEarned"`
}
