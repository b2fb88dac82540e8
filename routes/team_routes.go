// routes/team_routes.go
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refermart/refermart_backend/controllers"
	"github.com/refermart/refermart_backend/middleware"
)

// RegisterTeamRoutes registers the team listing and stage progress routes.
func RegisterTeamRoutes(e *echo.Echo, teamController *controllers.TeamController) {
	teamGroup := e.Group("/api/team")
	teamGroup.Use(middleware.JWTMiddleware())

	teamGroup.GET("", teamController.GetTeam)
	teamGroup.GET("/progress", teamController.GetStageProgress)
}
