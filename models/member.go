// models/member.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member model. ReferredBy is the referrer's referral code, set once at
// registration and immutable afterwards. CurrentStage only ever moves forward
// along the stage ladder.
type Member struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email        string             `json:"email" bson:"email"`
	Password     string             `json:"password,omitempty" bson:"password"`
	FullName     string             `json:"fullName" bson:"fullName"`
	ReferralCode string             `json:"referralCode" bson:"referralCode"`
	ReferredBy   string             `json:"referredBy,omitempty" bson:"referredBy,omitempty"`
	CurrentStage string             `json:"currentStage" bson:"currentStage"`
	IsActive     bool               `json:"isActive" bson:"isActive"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Ancestor is one entry of a referral-chain walk.
type Ancestor struct {
	Member Member
	Level  int // 1 = direct referrer, 2 = referrer's referrer
}

type SignupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"fullName" validate:"required"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ReferralData struct {
	ReferralCode  string `json:"referralCode"`
	ReferralCount int    `json:"referralCount"`
	CurrentStage  string `json:"currentStage"`
	ReferralLink  string `json:"referralLink"`
}

// TeamMember is one row of the two-level team listing.
type TeamMember struct {
	MemberID          primitive.ObjectID `json:"memberId"`
	FullName          string             `json:"fullName"`
	Level             int                `json:"level"`
	HasCredited       bool               `json:"hasCredited"`
	EarningFromMember float64            `json:"earningFromMember"`
	JoinedAt          time.Time          `json:"joinedAt"`
}

// StageProgress describes how far a member is through their current matrix.
type StageProgress struct {
	CurrentStage  string `json:"currentStage"`
	SlotsFilled   int    `json:"slotsFilled"`
	SlotsRequired int    `json:"slotsRequired"`
}
