package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TransactionTypeReferralBonus = "referral_bonus"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypePurchase      = "purchase"
)

const (
	TransactionDirectionCredit = "credit"
	TransactionDirectionDebit  = "debit"
)

// Transaction is a generic append-only ledger entry used for audit and
// balance reconciliation. Exactly one of EarningID or WithdrawalID is set
// depending on Type.
type Transaction struct {
	ID           primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID      primitive.ObjectID  `json:"ownerId" bson:"ownerId"`
	Type         string              `json:"type" bson:"type"`
	Direction    string              `json:"direction" bson:"direction"`
	Amount       float64             `json:"amount" bson:"amount"`
	Reference    string              `json:"reference" bson:"reference"`
	EarningID    *primitive.ObjectID `json:"earningId,omitempty" bson:"earningId,omitempty"`
	WithdrawalID *primitive.ObjectID `json:"withdrawalId,omitempty" bson:"withdrawalId,omitempty"`
	Description  string              `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt    time.Time           `json:"createdAt" bson:"createdAt"`
}
