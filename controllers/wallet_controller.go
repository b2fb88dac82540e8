// controllers/wallet_controller.go
package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/repositories"
)

// WalletController exposes the earnings ledger to the UI: balances, per-stage
// summaries, and withdrawal requests.
type WalletController struct {
	members  *repositories.MemberRepository
	wallets  *repositories.WalletRepository
	earnings *repositories.EarningRepository
}

func NewWalletController(members *repositories.MemberRepository, wallets *repositories.WalletRepository, earnings *repositories.EarningRepository) *WalletController {
	return &WalletController{
		members:  members,
		wallets:  wallets,
		earnings: earnings,
	}
}

// GetWallet returns the authenticated member's balance and totals.
func (wc *WalletController) GetWallet(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, wc.members)
	if !ok {
		return nil
	}

	wallet, err := wc.wallets.Get(ctx, member.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}
	if wallet == nil {
		// A member without a wallet means provisioning failed upstream.
		log.Printf("INTEGRITY: member %s has no wallet", member.ID.Hex())
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Wallet missing for member, contact support",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Wallet fetched successfully",
		Data: models.WalletSummary{
			Balance:        wallet.Balance,
			TotalEarned:    wallet.TotalEarned,
			TotalWithdrawn: wallet.TotalWithdrawn,
		},
	})
}

// GetEarningsSummary returns the member's earnings grouped by the stage they
// were credited at.
func (wc *WalletController) GetEarningsSummary(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, wc.members)
	if !ok {
		return nil
	}

	summary, err := wc.earnings.SummaryByStage(ctx, member.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earnings summary fetched successfully",
		Data:    summary,
	})
}

// RequestWithdrawal debits the wallet and files a pending withdrawal.
func (wc *WalletController) RequestWithdrawal(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, wc.members)
	if !ok {
		return nil
	}

	var req models.WithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	withdrawal, err := wc.wallets.RequestWithdrawal(ctx, member.ID, req.Amount, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInsufficientBalance):
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Insufficient balance",
			})
		case errors.Is(err, models.ErrWalletNotFound):
			log.Printf("INTEGRITY: member %s has no wallet", member.ID.Hex())
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Wallet missing for member, contact support",
			})
		default:
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to request withdrawal",
				Data:    err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal requested successfully",
		Data:    withdrawal,
	})
}
