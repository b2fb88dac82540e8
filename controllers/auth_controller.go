// controllers/auth_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/repositories"
	"github.com/refermart/refermart_backend/services"
	"github.com/refermart/refermart_backend/utils"
)

// AuthController handles member registration and login. Registration is the
// single caller of the compensation processor: one referral event per
// successful signup.
type AuthController struct {
	members      *repositories.MemberRepository
	wallets      *repositories.WalletRepository
	matrix       *repositories.MatrixRepository
	compensation *services.CompensationService
	ladder       *models.StageLadder
}

func NewAuthController(members *repositories.MemberRepository, wallets *repositories.WalletRepository, matrix *repositories.MatrixRepository, compensation *services.CompensationService, ladder *models.StageLadder) *AuthController {
	return &AuthController{
		members:      members,
		wallets:      wallets,
		matrix:       matrix,
		compensation: compensation,
		ladder:       ladder,
	}
}

// Signup registers a new member: member + wallet + entry-stage matrix are
// provisioned together, the referral edge is validated before it is
// accepted, and the compensation processor runs exactly once for the event.
func (ac *AuthController) Signup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	existing, err := ac.members.GetByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}
	if existing != nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Email already registered",
		})
	}

	// The member id is allocated up front so the referral edge can be
	// validated for cycles before anything is inserted.
	newID := primitive.NewObjectID()

	if req.ReferralCode != "" {
		if _, err := ac.members.ValidateReferrerEdge(ctx, req.ReferralCode, newID); err != nil {
			switch err {
			case models.ErrReferralCodeNotFound:
				return c.JSON(http.StatusNotFound, models.Response{
					Status:  http.StatusNotFound,
					Message: "Referral code not found",
				})
			case models.ErrSelfReferral, models.ErrReferralCycle:
				return c.JSON(http.StatusBadRequest, models.Response{
					Status:  http.StatusBadRequest,
					Message: "Invalid referral code",
					Data:    err.Error(),
				})
			default:
				return c.JSON(http.StatusInternalServerError, models.Response{
					Status:  http.StatusInternalServerError,
					Message: "Failed to validate referral code",
					Data:    err.Error(),
				})
			}
		}
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	referralCode, err := utils.GenerateReferralCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate referral code",
		})
	}

	member := &models.Member{
		ID:           newID,
		Email:        req.Email,
		Password:     hashedPassword,
		FullName:     req.FullName,
		ReferralCode: referralCode,
		ReferredBy:   req.ReferralCode,
		CurrentStage: ac.ladder.EntryStage(),
		IsActive:     true,
	}

	if err := ac.members.Create(ctx, member); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create member",
			Data:    err.Error(),
		})
	}
	if err := ac.wallets.Create(ctx, member.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to provision wallet",
			Data:    err.Error(),
		})
	}
	entry, _ := ac.ladder.Stage(ac.ladder.EntryStage())
	if entry.SlotsRequired > 0 {
		if err := ac.matrix.EnsureMatrix(ctx, member.ID, entry.Name, entry.SlotsRequired); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to initialize matrix",
				Data:    err.Error(),
			})
		}
	}

	result, err := ac.compensation.ProcessReferral(ctx, member.ID)
	if err != nil {
		// The member exists; the failed compensation must be surfaced, not
		// swallowed, so the upstream operator can repair and redeliver.
		log.Printf("compensation failed for new member %s: %v", member.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Member registered but referral compensation failed",
			Data:    err.Error(),
		})
	}

	token, err := utils.GenerateToken(member)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	member.Password = ""
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Member registered successfully",
		Data: map[string]interface{}{
			"token":        token,
			"member":       member,
			"compensation": result,
		},
	})
}

// Login authenticates a member and returns a JWT.
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
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

	member, err := ac.members.GetByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if member == nil || utils.CheckPassword(member.Password, req.Password) != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	token, err := utils.GenerateToken(member)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	member.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":  token,
			"member": member,
		},
	})
}
