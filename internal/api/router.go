package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/virtushot/photoshoot-api/docs"
	"github.com/virtushot/photoshoot-api/internal/api/handler"
	"github.com/virtushot/photoshoot-api/internal/api/middleware"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const rateWindow = time.Minute

// Deps holds everything the router wires into handlers.
type Deps struct {
	Auth       ports.AuthService
	Generation ports.GenerationService
	Accounts   ports.AccountService
	Admin      ports.AdminService
	// Checks are the readiness pings, keyed by dependency name.
	Checks map[string]handler.PingFunc
	Logger zerolog.Logger

	BodyLimit string
	// Per-minute limits; zero disables the limiter.
	GenerateRateLimit int
	AuthRateLimit     int

	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	if d.BodyLimit != "" {
		e.Use(echomiddleware.BodyLimit(d.BodyLimit))
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "virtushot",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health" || c.Path() == "/health/ready"
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	generationHandler := handler.NewGenerationHandler(d.Generation)
	accountHandler := handler.NewAccountHandler(d.Accounts)
	adminHandler := handler.NewAdminHandler(d.Admin)
	healthHandler := handler.NewHealthHandler(d.Checks)
	authMiddleware := middleware.Auth(d.Auth)

	v1 := e.Group("/v1")

	// --- Auth routes ---
	auth := v1.Group("/auth", middleware.RateLimitByIP(d.AuthRateLimit, rateWindow))
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// --- Generation ---
	v1.POST("/generate", generationHandler.Generate,
		authMiddleware,
		middleware.RateLimitByAccount(d.GenerateRateLimit, rateWindow),
	)

	// --- Client self-service ---
	account := v1.Group("/account", authMiddleware)
	account.GET("", accountHandler.Get)
	account.GET("/usage", accountHandler.Usage)
	account.POST("/credits/purchase", accountHandler.Purchase)

	// --- Admin ---
	admin := v1.Group("/admin", authMiddleware, middleware.RequireRole(domain.RoleAdmin))
	admin.GET("/clients", adminHandler.ListClients)
	admin.POST("/clients", adminHandler.CreateClient)
	admin.PATCH("/clients/:id", adminHandler.UpdateClient)
	admin.POST("/clients/:id/credits", adminHandler.AddCredits)
	admin.POST("/clients/:id/api-key", adminHandler.RotateAPIKey)
	admin.GET("/clients/:id/usage", adminHandler.ClientUsage)
	admin.GET("/overview", adminHandler.Overview)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
