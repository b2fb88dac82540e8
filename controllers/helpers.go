package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/middleware"
	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/repositories"
)

// currentMember resolves the authenticated member. On failure it writes the
// error response and returns ok=false; the handler should just return nil.
func currentMember(ctx context.Context, c echo.Context, members *repositories.MemberRepository) (*models.Member, bool) {
	memberID, err := middleware.ExtractMemberID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
		return nil, false
	}

	objID, err := primitive.ObjectIDFromHex(memberID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid member ID format",
		})
		return nil, false
	}

	member, err := members.GetByID(ctx, objID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
		return nil, false
	}
	if member == nil {
		c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Member not found",
		})
		return nil, false
	}
	return member, true
}
