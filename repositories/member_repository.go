package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refermart/refermart_backend/models"
)

// maxChainDepth bounds the referrer-chain walk during cycle detection so a
// corrupted chain cannot spin forever.
const maxChainDepth = 1000

// MemberRepository is the mongo-backed referral graph: members keyed by id,
// referrer stored as a referral-code edge.
type MemberRepository struct {
	collection *mongo.Collection
}

func NewMemberRepository(db *mongo.Database) *MemberRepository {
	return &MemberRepository{
		collection: db.Collection("members"),
	}
}

// Create inserts a new member. Unique indexes on email and referralCode
// reject duplicates.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, member)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		member.ID = oid
	}
	return nil
}

// GetByID returns (nil, nil) when the member does not exist.
func (r *MemberRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member %s: %w", id.Hex(), err)
	}
	return &member, nil
}

// GetByReferralCode returns (nil, nil) when no member owns the code.
func (r *MemberRepository) GetByReferralCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"referralCode": code}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by referral code: %w", err)
	}
	return &member, nil
}

// GetByEmail returns (nil, nil) when no member has the email.
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by email: %w", err)
	}
	return &member, nil
}

// Ancestors walks up the referral chain from memberID, returning at most
// maxLevels ancestors. A member without a referrer code, or a code that no
// longer resolves, ends the walk; neither is an error.
func (r *MemberRepository) Ancestors(ctx context.Context, memberID primitive.ObjectID, maxLevels int) ([]models.Ancestor, error) {
	member, err := r.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: unknown member %s", models.ErrValidation, memberID.Hex())
	}

	ancestors := make([]models.Ancestor, 0, maxLevels)
	current := member
	for level := 1; level <= maxLevels; level++ {
		if current.ReferredBy == "" {
			break
		}
		referrer, err := r.GetByReferralCode(ctx, current.ReferredBy)
		if err != nil {
			return nil, err
		}
		if referrer == nil {
			// Dangling edge: the referrer was removed. Truncate, don't fail.
			break
		}
		ancestors = append(ancestors, models.Ancestor{Member: *referrer, Level: level})
		current = referrer
	}
	return ancestors, nil
}

// ValidateReferrerEdge checks that attaching newMemberID under the member
// owning referrerCode cannot create a cycle. It resolves the code, rejects
// self-referral, and walks the candidate referrer's own chain before the
// edge is accepted. Returns the resolved referrer on success.
func (r *MemberRepository) ValidateReferrerEdge(ctx context.Context, referrerCode string, newMemberID primitive.ObjectID) (*models.Member, error) {
	return validateReferrerEdge(ctx, r.GetByReferralCode, referrerCode, newMemberID)
}

// referrerLookup resolves a referral code to its owner, (nil, nil) when no
// member carries the code.
type referrerLookup func(ctx context.Context, code string) (*models.Member, error)

func validateReferrerEdge(ctx context.Context, lookup referrerLookup, referrerCode string, newMemberID primitive.ObjectID) (*models.Member, error) {
	referrer, err := lookup(ctx, referrerCode)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, models.ErrReferralCodeNotFound
	}
	if referrer.ID == newMemberID {
		return nil, models.ErrSelfReferral
	}

	seen := map[primitive.ObjectID]bool{newMemberID: true}
	current := referrer
	for depth := 0; depth < maxChainDepth; depth++ {
		if seen[current.ID] {
			return nil, models.ErrReferralCycle
		}
		seen[current.ID] = true
		if current.ReferredBy == "" {
			return referrer, nil
		}
		next, err := lookup(ctx, current.ReferredBy)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return referrer, nil
		}
		current = next
	}
	return nil, fmt.Errorf("%w: referrer chain exceeds %d levels", models.ErrReferralCycle, maxChainDepth)
}

// AdvanceStage moves a member from fromStage to toStage. The filter on the
// old stage makes the transition apply at most once even under concurrent
// matrix completions.
func (r *MemberRepository) AdvanceStage(ctx context.Context, memberID primitive.ObjectID, fromStage, toStage string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": memberID, "currentStage": fromStage},
		bson.M{"$set": bson.M{
			"currentStage": toStage,
			"updatedAt":    time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to advance member %s stage: %w", memberID.Hex(), err)
	}
	return result.ModifiedCount == 1, nil
}

// ListByReferrerCode returns the members directly referred by the owner of
// the given code, oldest first.
func (r *MemberRepository) ListByReferrerCode(ctx context.Context, code string) ([]models.Member, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"referredBy": code})
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer cursor.Close(ctx)

	var members []models.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode referrals: %w", err)
	}
	return members, nil
}

// CountByReferrerCode counts a member's direct referrals.
func (r *MemberRepository) CountByReferrerCode(ctx context.Context, code string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"referredBy": code})
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}
