package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreditedAncestor describes one bonus paid out during a referral event.
type CreditedAncestor struct {
	AncestorID    primitive.ObjectID `json:"ancestorId" bson:"ancestorId"`
	Level         int                `json:"level" bson:"level"`
	Amount        float64            `json:"amount" bson:"amount"`
	StageAtCredit string             `json:"stageAtCredit" bson:"stageAtCredit"`
}

// StageTransition records a member advancing to the next stage because their
// matrix filled during this event.
type StageTransition struct {
	MemberID  primitive.ObjectID `json:"memberId" bson:"memberId"`
	FromStage string             `json:"fromStage" bson:"fromStage"`
	ToStage   string             `json:"toStage" bson:"toStage"`
}

// CompensationResult is what ProcessReferral returns to the registration
// workflow.
type CompensationResult struct {
	CreditedAncestors []CreditedAncestor `json:"creditedAncestors" bson:"creditedAncestors"`
	Transitions       []StageTransition  `json:"transitions" bson:"transitions"`
}

// ReferralEvent is the idempotency marker for one referral event. EventKey is
// the new member's id, unique per registration; a second delivery of the same
// key finds this document and replays the stored result instead of paying
// twice.
type ReferralEvent struct {
	ID          primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	EventKey    string              `json:"eventKey" bson:"eventKey"`
	NewMemberID primitive.ObjectID  `json:"newMemberId" bson:"newMemberId"`
	Status      string              `json:"status" bson:"status"` // "processing", "completed"
	Result      *CompensationResult `json:"result,omitempty" bson:"result,omitempty"`
	CreatedAt   time.Time           `json:"createdAt" bson:"createdAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}
