package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/models"
)

// fakeStore backs the processor with in-memory state. Every method takes the
// store lock, which mirrors the per-document atomicity the mongo
// repositories provide.
type fakeStore struct {
	mu       sync.Mutex
	members  map[primitive.ObjectID]*models.Member
	byCode   map[string]primitive.ObjectID
	wallets  map[primitive.ObjectID]*models.Wallet
	earnings []models.EarningRecord
	matrices map[string]*models.MatrixRecord
	events   map[string]*models.ReferralEvent

	// creditConflicts injects that many concurrency conflicts into
	// CreditEarning before it starts succeeding.
	creditConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:  make(map[primitive.ObjectID]*models.Member),
		byCode:   make(map[string]primitive.ObjectID),
		wallets:  make(map[primitive.ObjectID]*models.Wallet),
		matrices: make(map[string]*models.MatrixRecord),
		events:   make(map[string]*models.ReferralEvent),
	}
}

func matrixKey(ownerID primitive.ObjectID, stage string) string {
	return ownerID.Hex() + "/" + stage
}

// addMember registers a member with a wallet unless withWallet is false.
func (f *fakeStore) addMember(code, referredBy, stage string, withWallet bool) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := primitive.NewObjectID()
	f.members[id] = &models.Member{
		ID:           id,
		ReferralCode: code,
		ReferredBy:   referredBy,
		CurrentStage: stage,
		IsActive:     true,
	}
	f.byCode[code] = id
	if withWallet {
		f.wallets[id] = &models.Wallet{OwnerID: id}
	}
	return id
}

func (f *fakeStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[id]
	if !ok {
		return nil, nil
	}
	clone := *member
	return &clone, nil
}

func (f *fakeStore) Ancestors(ctx context.Context, memberID primitive.ObjectID, maxLevels int) ([]models.Ancestor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.members[memberID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown member", models.ErrValidation)
	}
	var ancestors []models.Ancestor
	for level := 1; level <= maxLevels; level++ {
		if current.ReferredBy == "" {
			break
		}
		refID, ok := f.byCode[current.ReferredBy]
		if !ok {
			break
		}
		referrer := f.members[refID]
		ancestors = append(ancestors, models.Ancestor{Member: *referrer, Level: level})
		current = referrer
	}
	return ancestors, nil
}

func (f *fakeStore) AdvanceStage(ctx context.Context, memberID primitive.ObjectID, fromStage, toStage string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	member, ok := f.members[memberID]
	if !ok || member.CurrentStage != fromStage {
		return false, nil
	}
	member.CurrentStage = toStage
	return true, nil
}

func (f *fakeStore) CreditEarning(ctx context.Context, earning *models.EarningRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.creditConflicts > 0 {
		f.creditConflicts--
		return fmt.Errorf("%w: injected conflict", models.ErrConcurrencyConflict)
	}

	wallet, ok := f.wallets[earning.BeneficiaryID]
	if !ok {
		return models.ErrWalletNotFound
	}
	earning.ID = primitive.NewObjectID()
	f.earnings = append(f.earnings, *earning)
	wallet.Balance += earning.Amount
	wallet.TotalEarned += earning.Amount
	return nil
}

func (f *fakeStore) EnsureMatrix(ctx context.Context, ownerID primitive.ObjectID, stage string, required int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := matrixKey(ownerID, stage)
	if _, ok := f.matrices[key]; !ok {
		f.matrices[key] = &models.MatrixRecord{
			OwnerID:       ownerID,
			Stage:         stage,
			SlotsRequired: required,
		}
	}
	return nil
}

func (f *fakeStore) ClaimSlot(ctx context.Context, ownerID primitive.ObjectID, stage string, occupantID primitive.ObjectID) (models.SlotClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.matrices[matrixKey(ownerID, stage)]
	if !ok {
		return models.SlotClaim{}, fmt.Errorf("%w: matrix not initialized", models.ErrIntegrity)
	}
	if record.SlotsFilled >= record.SlotsRequired {
		return models.SlotClaim{
			SlotsFilled:     record.SlotsFilled,
			SlotsRequired:   record.SlotsRequired,
			AlreadyComplete: true,
		}, nil
	}
	record.SlotsFilled++
	record.Slots = append(record.Slots, models.MatrixSlot{OccupantID: occupantID})
	return models.SlotClaim{
		SlotsFilled:   record.SlotsFilled,
		SlotsRequired: record.SlotsRequired,
		JustCompleted: record.SlotsFilled == record.SlotsRequired,
	}, nil
}

func (f *fakeStore) Begin(ctx context.Context, key string, newMemberID primitive.ObjectID) (*models.CompensationResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Only a completed delivery replays; a marker left by a failed one is
	// reused.
	if event, ok := f.events[key]; ok {
		if event.Status == "completed" {
			return event.Result, true, nil
		}
		return nil, false, nil
	}
	f.events[key] = &models.ReferralEvent{EventKey: key, NewMemberID: newMemberID, Status: "processing"}
	return nil, false, nil
}

func (f *fakeStore) Complete(ctx context.Context, key string, result *models.CompensationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[key]
	if !ok {
		return fmt.Errorf("unknown event %s", key)
	}
	event.Status = "completed"
	event.Result = result
	return nil
}

func (f *fakeStore) wallet(id primitive.ObjectID) models.Wallet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.wallets[id]
}

func (f *fakeStore) matrix(id primitive.ObjectID, stage string) *models.MatrixRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.matrices[matrixKey(id, stage)]
	if !ok {
		return nil
	}
	clone := *record
	return &clone
}

func (f *fakeStore) earningsFor(id primitive.ObjectID) []models.EarningRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EarningRecord
	for _, e := range f.earnings {
		if e.BeneficiaryID == id {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeStore) stageOf(id primitive.ObjectID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[id].CurrentStage
}

func testLadder(t *testing.T) *models.StageLadder {
	t.Helper()
	ladder, err := models.NewStageLadder(models.DefaultStageDefinitions())
	require.NoError(t, err)
	return ladder
}

func newTestService(store *fakeStore, ladder *models.StageLadder) *CompensationService {
	return NewCompensationService(store, store, store, store, ladder)
}

func TestProcessReferralCreditsTwoLevels(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	grandparent := store.addMember("MBR-GP0001", "", "bronze", true)
	parent := store.addMember("MBR-PA0001", "MBR-GP0001", "starter", true)
	child := store.addMember("MBR-CH0001", "MBR-PA0001", "starter", true)

	store.EnsureMatrix(context.Background(), grandparent, "bronze", 6)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)

	svc := newTestService(store, ladder)
	result, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)

	require.Len(t, result.CreditedAncestors, 2)

	level1 := result.CreditedAncestors[0]
	require.Equal(t, parent, level1.AncestorID)
	require.Equal(t, 1, level1.Level)
	require.Equal(t, "starter", level1.StageAtCredit)
	require.Equal(t, 5.0, level1.Amount)

	// Level 2 pays the grandparent's own stage bonus, not a derivative of
	// level 1.
	level2 := result.CreditedAncestors[1]
	require.Equal(t, grandparent, level2.AncestorID)
	require.Equal(t, 2, level2.Level)
	require.Equal(t, "bronze", level2.StageAtCredit)
	require.Equal(t, 10.0, level2.Amount)

	require.Equal(t, 5.0, store.wallet(parent).TotalEarned)
	require.Equal(t, 10.0, store.wallet(grandparent).TotalEarned)
	require.Equal(t, 1, store.matrix(parent, "starter").SlotsFilled)
	require.Equal(t, 1, store.matrix(grandparent, "bronze").SlotsFilled)
	require.Empty(t, result.Transitions)
}

func TestProcessReferralBrokenChainTruncates(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	// Parent's referrer code points at nobody: the level-2 walk must stop
	// silently.
	parent := store.addMember("MBR-PA0002", "MBR-GHOST1", "starter", true)
	child := store.addMember("MBR-CH0002", "MBR-PA0002", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)

	svc := newTestService(store, ladder)
	result, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)

	require.Len(t, result.CreditedAncestors, 1)
	require.Equal(t, parent, result.CreditedAncestors[0].AncestorID)
	require.Equal(t, 5.0, store.wallet(parent).TotalEarned)
}

func TestProcessReferralNoReferrer(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	orphan := store.addMember("MBR-OR0001", "", "starter", true)

	svc := newTestService(store, ladder)
	result, err := svc.ProcessReferral(context.Background(), orphan)
	require.NoError(t, err)
	require.Empty(t, result.CreditedAncestors)
	require.Empty(t, result.Transitions)
}

func TestProcessReferralUnknownMember(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, testLadder(t))

	_, err := svc.ProcessReferral(context.Background(), primitive.NewObjectID())
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestProcessReferralMissingWalletIsIntegrityError(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	grandparent := store.addMember("MBR-GP0003", "", "starter", false) // no wallet
	parent := store.addMember("MBR-PA0003", "MBR-GP0003", "starter", true)
	child := store.addMember("MBR-CH0003", "MBR-PA0003", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)

	svc := newTestService(store, ladder)
	result, err := svc.ProcessReferral(context.Background(), child)
	require.ErrorIs(t, err, models.ErrIntegrity)

	// Level 1 committed before level 2 failed and stays committed.
	require.Len(t, result.CreditedAncestors, 1)
	require.Equal(t, 5.0, store.wallet(parent).TotalEarned)
	require.Empty(t, store.earningsFor(grandparent))
}

func TestProcessReferralIdempotent(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0004", "", "starter", true)
	child := store.addMember("MBR-CH0004", "MBR-PA0004", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)

	svc := newTestService(store, ladder)
	first, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)

	second, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 5.0, store.wallet(parent).TotalEarned)
	require.Len(t, store.earningsFor(parent), 1)
	require.Equal(t, 1, store.matrix(parent, "starter").SlotsFilled)
}

func TestProcessReferralCompletesMatrixAndAdvances(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0005", "", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)

	svc := newTestService(store, ladder)

	var transitions []models.StageTransition
	for i := 0; i < 6; i++ {
		child := store.addMember(fmt.Sprintf("MBR-CH%04d", i), "MBR-PA0005", "starter", true)
		result, err := svc.ProcessReferral(context.Background(), child)
		require.NoError(t, err)
		transitions = append(transitions, result.Transitions...)
	}

	// Six starter referrals at bonus 5 fill the matrix and trigger exactly
	// one transition to bronze.
	require.Len(t, transitions, 1)
	require.Equal(t, parent, transitions[0].MemberID)
	require.Equal(t, "starter", transitions[0].FromStage)
	require.Equal(t, "bronze", transitions[0].ToStage)

	require.Equal(t, "bronze", store.stageOf(parent))
	require.Equal(t, 30.0, store.wallet(parent).TotalEarned)
	require.Equal(t, 6, store.matrix(parent, "starter").SlotsFilled)

	// The bronze matrix starts empty.
	bronze := store.matrix(parent, "bronze")
	require.NotNil(t, bronze)
	require.Equal(t, 0, bronze.SlotsFilled)

	// The next referral is credited at the bronze bonus.
	child := store.addMember("MBR-CH9999", "MBR-PA0005", "starter", true)
	result, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)
	require.Equal(t, 10.0, result.CreditedAncestors[0].Amount)
	require.Equal(t, "bronze", result.CreditedAncestors[0].StageAtCredit)
	require.Equal(t, 1, store.matrix(parent, "bronze").SlotsFilled)
}

func TestProcessReferralTerminalStageEarnsWithoutMatrix(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0006", "", "infinity", true)
	child := store.addMember("MBR-CH0006", "MBR-PA0006", "starter", true)

	svc := newTestService(store, ladder)
	result, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)

	require.Len(t, result.CreditedAncestors, 1)
	require.Equal(t, 250.0, result.CreditedAncestors[0].Amount)
	require.Empty(t, result.Transitions)
	require.Equal(t, "infinity", store.stageOf(parent))
	require.Nil(t, store.matrix(parent, "infinity"))
}

func TestProcessReferralRetriesConflicts(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0007", "", "starter", true)
	child := store.addMember("MBR-CH0007", "MBR-PA0007", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)
	store.creditConflicts = 2

	svc := newTestService(store, ladder)
	result, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)
	require.Len(t, result.CreditedAncestors, 1)
	require.Equal(t, 5.0, store.wallet(parent).TotalEarned)
}

func TestProcessReferralRedeliveryAfterFailedDelivery(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0010", "", "starter", true)
	child := store.addMember("MBR-CH0010", "MBR-PA0010", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)
	store.creditConflicts = 100

	svc := newTestService(store, ladder)
	_, err := svc.ProcessReferral(context.Background(), child)
	require.ErrorIs(t, err, models.ErrConcurrencyConflict)
	require.Empty(t, store.earningsFor(parent))

	// Once the contention clears, redelivering the same event must run the
	// compensation for real instead of replaying the failed attempt.
	store.mu.Lock()
	store.creditConflicts = 0
	store.mu.Unlock()

	result, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)
	require.Len(t, result.CreditedAncestors, 1)
	require.Equal(t, 5.0, store.wallet(parent).TotalEarned)
	require.Len(t, store.earningsFor(parent), 1)

	// A third delivery now replays the completed result without paying again.
	replay, err := svc.ProcessReferral(context.Background(), child)
	require.NoError(t, err)
	require.Equal(t, result, replay)
	require.Len(t, store.earningsFor(parent), 1)
}

func TestProcessReferralSurfacesExhaustedConflicts(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0008", "", "starter", true)
	child := store.addMember("MBR-CH0008", "MBR-PA0008", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)
	store.creditConflicts = 100

	svc := newTestService(store, ladder)
	_, err := svc.ProcessReferral(context.Background(), child)
	require.ErrorIs(t, err, models.ErrConcurrencyConflict)
	require.Empty(t, store.earningsFor(parent))
}

func TestProcessReferralConcurrentSharedAncestor(t *testing.T) {
	store := newFakeStore()
	ladder := testLadder(t)

	parent := store.addMember("MBR-PA0009", "", "starter", true)
	store.EnsureMatrix(context.Background(), parent, "starter", 6)

	const referrals = 10
	children := make([]primitive.ObjectID, referrals)
	for i := range children {
		children[i] = store.addMember(fmt.Sprintf("MBR-CC%04d", i), "MBR-PA0009", "starter", true)
	}

	svc := newTestService(store, ladder)

	var wg sync.WaitGroup
	results := make([]*models.CompensationResult, referrals)
	errs := make([]error, referrals)
	for i := range children {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ProcessReferral(context.Background(), children[i])
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// The starter matrix never overfills and exactly one event observes the
	// completing claim.
	starter := store.matrix(parent, "starter")
	require.Equal(t, 6, starter.SlotsFilled)

	var transitions int
	for _, result := range results {
		transitions += len(result.Transitions)
	}
	require.Equal(t, 1, transitions)

	// Every referral is still paid: wallet total reflects all ten credits,
	// split across the stages the parent passed through.
	require.Len(t, store.earningsFor(parent), referrals)
	wallet := store.wallet(parent)
	var expected float64
	for _, earning := range store.earningsFor(parent) {
		expected += earning.Amount
	}
	require.Equal(t, expected, wallet.TotalEarned)
	require.Equal(t, wallet.TotalEarned, wallet.Balance)
}
