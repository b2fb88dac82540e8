// routes/referral_routes.go
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refermart/refermart_backend/controllers"
	"github.com/refermart/refermart_backend/middleware"
)

// RegisterReferralRoutes registers referral data routes and the internal
// compensation entry point.
func RegisterReferralRoutes(e *echo.Echo, referralController *controllers.ReferralController) {
	referralGroup := e.Group("/api/referrals")
	referralGroup.Use(middleware.JWTMiddleware())

	referralGroup.GET("/data", referralController.GetReferralData)
	referralGroup.GET("/qrcode", referralController.GetReferralQRCode)

	// Consumed by the registration workflow; idempotent per member id.
	referralGroup.POST("/process", referralController.ProcessReferral)
}
