// routes/wallet_routes.go
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refermart/refermart_backend/controllers"
	"github.com/refermart/refermart_backend/middleware"
)

// RegisterWalletRoutes registers the ledger read routes and withdrawals.
func RegisterWalletRoutes(e *echo.Echo, walletController *controllers.WalletController) {
	walletGroup := e.Group("/api/wallet")
	walletGroup.Use(middleware.JWTMiddleware())

	walletGroup.GET("", walletController.GetWallet)
	walletGroup.GET("/earnings", walletController.GetEarningsSummary)
	walletGroup.POST("/withdraw", walletController.RequestWithdrawal)
}
