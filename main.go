package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/refermart/refermart_backend/config"
	"github.com/refermart/refermart_backend/controllers"
	"github.com/refermart/refermart_backend/middleware"
	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/repositories"
	"github.com/refermart/refermart_backend/routes"
	"github.com/refermart/refermart_backend/services"
	"github.com/refermart/refermart_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis (optional, engine degrades without it)
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()
	db := client.Database(config.GetDatabaseName())

	// Load the reward stage ladder once; it is immutable afterwards.
	ladder, err := models.LoadStageLadder(os.Getenv("STAGE_LADDER_FILE"))
	if err != nil {
		log.Fatalf("Failed to load stage ladder: %v", err)
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(middleware.SecurityHeaders())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "ReferMart Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	e.Use(httpsRedirect())

	// Initialize repositories
	memberRepo := repositories.NewMemberRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	matrixRepo := repositories.NewMatrixRepository(db)
	earningRepo := repositories.NewEarningRepository(db)
	eventRepo := repositories.NewEventRepository(db, redisClient)

	// Initialize the compensation engine
	compensationService := services.NewCompensationService(
		memberRepo, walletRepo, matrixRepo, eventRepo, ladder,
	).WithNotifier(wsHub)

	// Initialize controllers
	authController := controllers.NewAuthController(memberRepo, walletRepo, matrixRepo, compensationService, ladder)
	referralController := controllers.NewReferralController(memberRepo, compensationService)
	walletController := controllers.NewWalletController(memberRepo, walletRepo, earningRepo)
	teamController := controllers.NewTeamController(memberRepo, matrixRepo, earningRepo, ladder)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterReferralRoutes(e, referralController)
	routes.RegisterWalletRoutes(e, walletController)
	routes.RegisterTeamRoutes(e, teamController)
	routes.RegisterWebSocketRoutes(e, wsHub)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(301, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
