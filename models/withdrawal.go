package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Withdrawal struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MemberID    primitive.ObjectID `bson:"memberId" json:"memberId"`
	Amount      float64            `bson:"amount" json:"amount"`
	Status      string             `bson:"status" json:"status"` // e.g., "pending", "approved", "rejected"
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	ProcessedAt *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	MemberNote  string             `bson:"memberNote,omitempty" json:"memberNote,omitempty"`
}

type WithdrawalRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Note   string  `json:"note,omitempty"`
}
