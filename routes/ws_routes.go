// routes/ws_routes.go
package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/middleware"
	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/websocket"
)

// RegisterWebSocketRoutes registers the notification stream endpoint.
func RegisterWebSocketRoutes(e *echo.Echo, hub *websocket.Hub) {
	wsGroup := e.Group("/api/ws")
	wsGroup.Use(middleware.JWTMiddleware())

	wsGroup.GET("", func(c echo.Context) error {
		memberID, err := middleware.ExtractMemberID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Authentication failed",
			})
		}
		objID, err := primitive.ObjectIDFromHex(memberID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid member ID format",
			})
		}
		return websocket.HandleWebSocket(c, hub, objID)
	})
}
