package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatrixSlot records one filled slot: which downstream referral was credited
// toward the owner's current stage, and when. A slot is never vacated; its
// index is its position in the record's Slots array.
type MatrixSlot struct {
	OccupantID primitive.ObjectID `json:"occupantId" bson:"occupantId"`
	FilledAt   time.Time          `json:"filledAt" bson:"filledAt"`
}

// MatrixRecord is the single document tracking one (owner, stage) matrix.
// SlotsFilled never exceeds SlotsRequired; the claim update enforces that
// with a conditional filter rather than a read-then-write.
type MatrixRecord struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID       primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	Stage         string             `json:"stage" bson:"stage"`
	SlotsRequired int                `json:"slotsRequired" bson:"slotsRequired"`
	SlotsFilled   int                `json:"slotsFilled" bson:"slotsFilled"`
	Slots         []MatrixSlot       `json:"slots" bson:"slots"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SlotClaim is the outcome of one claim attempt.
type SlotClaim struct {
	SlotsFilled     int
	SlotsRequired   int
	JustCompleted   bool
	AlreadyComplete bool
}
