// controllers/referral_controller.go
package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"net/http"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/repositories"
	"github.com/refermart/refermart_backend/services"
	"github.com/refermart/refermart_backend/utils"
)

// ReferralController serves referral data and the ProcessReferral entry
// point consumed by the registration workflow.
type ReferralController struct {
	members      *repositories.MemberRepository
	compensation *services.CompensationService
}

func NewReferralController(members *repositories.MemberRepository, compensation *services.CompensationService) *ReferralController {
	return &ReferralController{
		members:      members,
		compensation: compensation,
	}
}

// ProcessReferral runs the compensation engine for one referral event.
// Idempotent: redelivering the same member id replays the stored result.
func (rc *ReferralController) ProcessReferral(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	memberID, err := primitive.ObjectIDFromHex(req.MemberID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid member ID format",
		})
	}

	result, err := rc.compensation.ProcessReferral(ctx, memberID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unknown member",
				Data:    err.Error(),
			})
		case errors.Is(err, models.ErrIntegrity):
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Data integrity failure",
				Data:    err.Error(),
			})
		case errors.Is(err, models.ErrConcurrencyConflict):
			return c.JSON(http.StatusServiceUnavailable, models.Response{
				Status:  http.StatusServiceUnavailable,
				Message: "Conflicting updates, retry later",
				Data:    err.Error(),
			})
		default:
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to process referral",
				Data:    err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral processed successfully",
		Data:    result,
	})
}

// GetReferralData returns the authenticated member's referral information.
func (rc *ReferralController) GetReferralData(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, rc.members)
	if !ok {
		return nil
	}

	count, err := rc.members.CountByReferrerCode(ctx, member.ReferralCode)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral data fetched successfully",
		Data: models.ReferralData{
			ReferralCode:  member.ReferralCode,
			ReferralCount: int(count),
			CurrentStage:  member.CurrentStage,
			ReferralLink:  utils.ReferralLink(member.ReferralCode),
		},
	})
}

// GetReferralQRCode returns the member's referral link as a base64 PNG QR
// code for embedding in the app.
func (rc *ReferralController) GetReferralQRCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, rc.members)
	if !ok {
		return nil
	}

	qrCode, err := qr.Encode(utils.ReferralLink(member.ReferralCode), qr.M, qr.Auto)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}
	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to scale QR code",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to encode QR code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "QR code generated successfully",
		Data: map[string]string{
			"referralCode": member.ReferralCode,
			"qrCode":       "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		},
	})
}
