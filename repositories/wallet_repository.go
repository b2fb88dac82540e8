package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refermart/refermart_backend/models"
)

// WalletRepository owns the earnings ledger: one wallet document per member
// plus append-only earnings and transactions collections. Every credit or
// debit runs inside a single mongo session transaction so the wallet totals
// and the audit trail can never drift apart.
type WalletRepository struct {
	db           *mongo.Database
	wallets      *mongo.Collection
	earnings     *mongo.Collection
	transactions *mongo.Collection
	withdrawals  *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) *WalletRepository {
	return &WalletRepository{
		db:           db,
		wallets:      db.Collection("wallets"),
		earnings:     db.Collection("earnings"),
		transactions: db.Collection("transactions"),
		withdrawals:  db.Collection("withdrawals"),
	}
}

// Create provisions the wallet for a new member. Called once at registration,
// together with the member insert.
func (r *WalletRepository) Create(ctx context.Context, ownerID primitive.ObjectID) error {
	now := time.Now()
	wallet := models.Wallet{
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.wallets.InsertOne(ctx, wallet); err != nil {
		return fmt.Errorf("failed to create wallet for member %s: %w", ownerID.Hex(), err)
	}
	return nil
}

// Get returns (nil, nil) when the owner has no wallet.
func (r *WalletRepository) Get(ctx context.Context, ownerID primitive.ObjectID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.wallets.FindOne(ctx, bson.M{"ownerId": ownerID}).Decode(&wallet)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find wallet for member %s: %w", ownerID.Hex(), err)
	}
	return &wallet, nil
}

// CreditEarning writes the earning record, its transaction entry, and the
// wallet increment in one transaction. A missing wallet row aborts the whole
// unit with models.ErrWalletNotFound; nothing is synthesized.
func (r *WalletRepository) CreditEarning(ctx context.Context, earning *models.EarningRecord) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start ledger session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		update, err := r.wallets.UpdateOne(sc,
			bson.M{"ownerId": earning.BeneficiaryID},
			bson.M{
				"$inc": bson.M{
					"balance":     earning.Amount,
					"totalEarned": earning.Amount,
				},
				"$set": bson.M{"updatedAt": time.Now()},
			},
		)
		if err != nil {
			return nil, err
		}
		if update.MatchedCount == 0 {
			return nil, models.ErrWalletNotFound
		}

		inserted, err := r.earnings.InsertOne(sc, earning)
		if err != nil {
			return nil, err
		}
		earningID, _ := inserted.InsertedID.(primitive.ObjectID)
		earning.ID = earningID

		txn := models.Transaction{
			OwnerID:     earning.BeneficiaryID,
			Type:        models.TransactionTypeReferralBonus,
			Direction:   models.TransactionDirectionCredit,
			Amount:      earning.Amount,
			Reference:   uuid.NewString(),
			EarningID:   &earningID,
			Description: fmt.Sprintf("level %d referral bonus at stage %s", earning.Level, earning.Stage),
			CreatedAt:   time.Now(),
		}
		if _, err := r.transactions.InsertOne(sc, txn); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return asConflict(err, "credit earning")
	}
	return nil
}

// withdrawalFilter admits the debit only while the balance covers it, so a
// concurrent debit cannot overdraw.
func withdrawalFilter(ownerID primitive.ObjectID, amount float64) bson.M {
	return bson.M{"ownerId": ownerID, "balance": bson.M{"$gte": amount}}
}

// withdrawalUpdate moves the amount from balance to totalWithdrawn. A
// withdrawal never touches totalEarned.
func withdrawalUpdate(amount float64) bson.M {
	return bson.M{
		"$inc": bson.M{
			"balance":        -amount,
			"totalWithdrawn": amount,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}
}

// RequestWithdrawal debits the wallet and records a pending withdrawal plus
// its transaction entry, all in one transaction. The balance guard sits in
// the update filter so a concurrent debit cannot overdraw.
func (r *WalletRepository) RequestWithdrawal(ctx context.Context, memberID primitive.ObjectID, amount float64, note string) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", models.ErrValidation)
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start ledger session: %w", err)
	}
	defer session.EndSession(ctx)

	var withdrawal models.Withdrawal
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		update, err := r.wallets.UpdateOne(sc, withdrawalFilter(memberID, amount), withdrawalUpdate(amount))
		if err != nil {
			return nil, err
		}
		if update.MatchedCount == 0 {
			// Distinguish a missing wallet from an overdraw.
			count, err := r.wallets.CountDocuments(sc, bson.M{"ownerId": memberID})
			if err != nil {
				return nil, err
			}
			if count == 0 {
				return nil, models.ErrWalletNotFound
			}
			return nil, models.ErrInsufficientBalance
		}

		withdrawal = models.Withdrawal{
			MemberID:   memberID,
			Amount:     amount,
			Status:     "pending",
			CreatedAt:  time.Now(),
			MemberNote: note,
		}
		inserted, err := r.withdrawals.InsertOne(sc, withdrawal)
		if err != nil {
			return nil, err
		}
		withdrawalID, _ := inserted.InsertedID.(primitive.ObjectID)
		withdrawal.ID = withdrawalID

		txn := models.Transaction{
			OwnerID:      memberID,
			Type:         models.TransactionTypeWithdrawal,
			Direction:    models.TransactionDirectionDebit,
			Amount:       amount,
			Reference:    uuid.NewString(),
			WithdrawalID: &withdrawalID,
			Description:  "withdrawal request",
			CreatedAt:    time.Now(),
		}
		if _, err := r.transactions.InsertOne(sc, txn); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, asConflict(err, "request withdrawal")
	}
	return &withdrawal, nil
}
