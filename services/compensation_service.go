// services/compensation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/models"
)

// MemberStore is the referral-graph view the processor needs.
type MemberStore interface {
	// GetByID returns (nil, nil) when no such member exists.
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
	// Ancestors walks up to maxLevels referrer edges, truncating silently on
	// a missing or dangling edge.
	Ancestors(ctx context.Context, memberID primitive.ObjectID, maxLevels int) ([]models.Ancestor, error)
	// AdvanceStage moves the member from fromStage to toStage, reporting
	// whether the update applied. A member already past fromStage is left
	// alone, which makes the transition fire at most once.
	AdvanceStage(ctx context.Context, memberID primitive.ObjectID, fromStage, toStage string) (bool, error)
}

// WalletStore is the ledger view the processor needs.
type WalletStore interface {
	// CreditEarning writes the earning record, its transaction entry, and the
	// wallet increment in one atomic unit. Returns models.ErrWalletNotFound
	// when the beneficiary has no wallet row.
	CreditEarning(ctx context.Context, earning *models.EarningRecord) error
}

// MatrixStore tracks slot fills per (owner, stage).
type MatrixStore interface {
	// EnsureMatrix creates the (owner, stage) record with zero filled slots
	// if it does not exist yet.
	EnsureMatrix(ctx context.Context, ownerID primitive.ObjectID, stage string, required int) error
	// ClaimSlot atomically fills the next slot, or reports AlreadyComplete
	// without mutating anything.
	ClaimSlot(ctx context.Context, ownerID primitive.ObjectID, stage string, occupantID primitive.ObjectID) (models.SlotClaim, error)
}

// EventStore provides idempotency for referral events.
type EventStore interface {
	// Begin registers the event key. When a completed delivery of the same
	// key exists it returns the stored result and duplicate=true; a marker
	// left behind by a failed delivery is reused and processing runs again.
	Begin(ctx context.Context, key string, newMemberID primitive.ObjectID) (prior *models.CompensationResult, duplicate bool, err error)
	// Complete stores the result against the key.
	Complete(ctx context.Context, key string, result *models.CompensationResult) error
}

// Notifier pushes engine events to connected clients. May be nil.
type Notifier interface {
	NotifyEarningCredited(memberID primitive.ObjectID, credit models.CreditedAncestor)
	NotifyStageAdvanced(memberID primitive.ObjectID, transition models.StageTransition)
}

const defaultMaxRetries = 3

// CompensationService orchestrates one referral event: resolve up to two
// ancestor levels, credit their bonuses, fill matrix slots, and advance
// stages. Each ancestor's credit is an independent atomic unit; a later
// ancestor's failure never rolls back an earlier ancestor's committed credit.
type CompensationService struct {
	members    MemberStore
	wallets    WalletStore
	matrix     MatrixStore
	events     EventStore
	ladder     *models.StageLadder
	notifier   Notifier
	maxRetries uint64
}

func NewCompensationService(members MemberStore, wallets WalletStore, matrix MatrixStore, events EventStore, ladder *models.StageLadder) *CompensationService {
	return &CompensationService{
		members:    members,
		wallets:    wallets,
		matrix:     matrix,
		events:     events,
		ladder:     ladder,
		maxRetries: defaultMaxRetries,
	}
}

// WithNotifier attaches a notifier for earning and transition pushes.
func (cs *CompensationService) WithNotifier(n Notifier) *CompensationService {
	cs.notifier = n
	return cs
}

// ProcessReferral handles the "new member joined via referral" event. It is
// idempotent on the new member's id: a redelivered event replays the stored
// result without paying anything twice.
func (cs *CompensationService) ProcessReferral(ctx context.Context, newMemberID primitive.ObjectID) (*models.CompensationResult, error) {
	if newMemberID.IsZero() {
		return nil, fmt.Errorf("%w: empty member id", models.ErrValidation)
	}

	newMember, err := cs.members.GetByID(ctx, newMemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", newMemberID.Hex(), err)
	}
	if newMember == nil {
		return nil, fmt.Errorf("%w: unknown member %s", models.ErrValidation, newMemberID.Hex())
	}

	prior, duplicate, err := cs.events.Begin(ctx, newMemberID.Hex(), newMemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to register referral event: %w", err)
	}
	if duplicate {
		log.Printf("referral event %s already processed, replaying stored result", newMemberID.Hex())
		if prior == nil {
			prior = &models.CompensationResult{}
		}
		return prior, nil
	}

	ancestors, err := cs.members.Ancestors(ctx, newMemberID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ancestors of %s: %w", newMemberID.Hex(), err)
	}

	result := &models.CompensationResult{
		CreditedAncestors: []models.CreditedAncestor{},
		Transitions:       []models.StageTransition{},
	}

	for _, anc := range ancestors {
		if err := cs.creditAncestor(ctx, anc, newMemberID, result); err != nil {
			// Credits already committed for earlier levels stay committed.
			return result, err
		}
	}

	if err := cs.events.Complete(ctx, newMemberID.Hex(), result); err != nil {
		log.Printf("failed to store result for referral event %s: %v", newMemberID.Hex(), err)
	}

	return result, nil
}

// creditAncestor runs one ancestor's compensation: bonus credit at the
// ancestor's own current stage, slot claim, and stage transition when the
// claim completed the matrix.
func (cs *CompensationService) creditAncestor(ctx context.Context, anc models.Ancestor, sourceID primitive.ObjectID, result *models.CompensationResult) error {
	stageDef, ok := cs.ladder.Stage(anc.Member.CurrentStage)
	if !ok {
		log.Printf("INTEGRITY: member %s has unknown stage %q", anc.Member.ID.Hex(), anc.Member.CurrentStage)
		return fmt.Errorf("%w: member %s has unknown stage %q",
			models.ErrIntegrity, anc.Member.ID.Hex(), anc.Member.CurrentStage)
	}

	earning := &models.EarningRecord{
		BeneficiaryID: anc.Member.ID,
		SourceID:      sourceID,
		Stage:         stageDef.Name,
		Amount:        stageDef.Bonus,
		Level:         anc.Level,
		CreatedAt:     time.Now(),
	}

	err := cs.withRetry(ctx, func() error {
		return cs.wallets.CreditEarning(ctx, earning)
	})
	if err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			log.Printf("INTEGRITY: member %s has no wallet, refusing to credit", anc.Member.ID.Hex())
			return fmt.Errorf("%w: member %s has no wallet", models.ErrIntegrity, anc.Member.ID.Hex())
		}
		return fmt.Errorf("failed to credit member %s: %w", anc.Member.ID.Hex(), err)
	}

	credit := models.CreditedAncestor{
		AncestorID:    anc.Member.ID,
		Level:         anc.Level,
		Amount:        stageDef.Bonus,
		StageAtCredit: stageDef.Name,
	}
	result.CreditedAncestors = append(result.CreditedAncestors, credit)
	if cs.notifier != nil {
		cs.notifier.NotifyEarningCredited(anc.Member.ID, credit)
	}

	// The terminal stage has no matrix; members there earn but never move.
	if stageDef.SlotsRequired == 0 {
		return nil
	}

	if err := cs.matrix.EnsureMatrix(ctx, anc.Member.ID, stageDef.Name, stageDef.SlotsRequired); err != nil {
		return fmt.Errorf("failed to ensure matrix for member %s stage %s: %w",
			anc.Member.ID.Hex(), stageDef.Name, err)
	}

	var claim models.SlotClaim
	err = cs.withRetry(ctx, func() error {
		var claimErr error
		claim, claimErr = cs.matrix.ClaimSlot(ctx, anc.Member.ID, stageDef.Name, sourceID)
		return claimErr
	})
	if err != nil {
		return fmt.Errorf("failed to claim slot for member %s stage %s: %w",
			anc.Member.ID.Hex(), stageDef.Name, err)
	}

	if !claim.JustCompleted {
		return nil
	}

	successor, ok := cs.ladder.Successor(stageDef.Name)
	if !ok {
		return nil
	}

	advanced, err := cs.members.AdvanceStage(ctx, anc.Member.ID, stageDef.Name, successor.Name)
	if err != nil {
		return fmt.Errorf("failed to advance member %s to stage %s: %w",
			anc.Member.ID.Hex(), successor.Name, err)
	}
	if !advanced {
		return nil
	}

	if successor.SlotsRequired > 0 {
		if err := cs.matrix.EnsureMatrix(ctx, anc.Member.ID, successor.Name, successor.SlotsRequired); err != nil {
			return fmt.Errorf("failed to initialize matrix for member %s stage %s: %w",
				anc.Member.ID.Hex(), successor.Name, err)
		}
	}

	transition := models.StageTransition{
		MemberID:  anc.Member.ID,
		FromStage: stageDef.Name,
		ToStage:   successor.Name,
	}
	result.Transitions = append(result.Transitions, transition)
	if cs.notifier != nil {
		cs.notifier.NotifyStageAdvanced(anc.Member.ID, transition)
	}
	log.Printf("member %s advanced from stage %s to %s", anc.Member.ID.Hex(), stageDef.Name, successor.Name)

	return nil
}

// withRetry retries op with bounded exponential backoff while it keeps
// failing with a concurrency conflict. Any other error aborts immediately.
func (cs *CompensationService) withRetry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrConcurrencyConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, cs.maxRetries), ctx))
}
