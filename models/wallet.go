package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wallet is a member's monetary ledger. Invariants: TotalEarned never
// decreases and always equals the sum of the member's earning records;
// Balance = TotalEarned - TotalWithdrawn - spent.
type Wallet struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID        primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	Balance        float64            `json:"balance" bson:"balance"`
	TotalEarned    float64            `json:"totalEarned" bson:"totalEarned"`
	TotalWithdrawn float64            `json:"totalWithdrawn" bson:"totalWithdrawn"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type WalletSummary struct {
	Balance        float64 `json:"balance"`
	TotalEarned    float64 `json:"totalEarned"`
	TotalWithdrawn float64 `json:"totalWithdrawn"`
}
