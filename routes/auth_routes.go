// routes/auth_routes.go
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refermart/refermart_backend/controllers"
)

// RegisterAuthRoutes registers the public registration and login routes.
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	authGroup := e.Group("/api/auth")

	authGroup.POST("/signup", authController.Signup)
	authGroup.POST("/login", authController.Login)
}
