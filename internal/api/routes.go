package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plansync-backend-go/internal/core"
	"plansync-backend-go/internal/middleware"
	"plansync-backend-go/internal/telemetry"
)

// RouteDeps carries everything SetupRoutes wires into handlers.
type RouteDeps struct {
	Logger         *zap.Logger
	Auth           *middleware.AuthMiddleware // nil disables the authenticated routes
	UserService    core.UserService
	BillingService core.BillingService
	EventService   core.BillingEventService
	Metrics        *telemetry.Metrics
	HealthChecks   map[string]HealthCheck
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (request ID, logging, recovery, CORS, metrics) is applied in main.
func SetupRoutes(router *gin.Engine, deps RouteDeps) {
	userHandler := NewUserHandler(deps.UserService, deps.EventService, deps.Logger)
	billingHandler := NewBillingHandler(deps.BillingService, deps.Logger)
	healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)

	apiV1 := router.Group("/api/v1")
	{
		billingRouteGroup := apiV1.Group("/billing")
		{
			// Public: Stripe authenticates deliveries by signature.
			billingRouteGroup.POST("/webhooks/stripe", billingHandler.HandleStripeWebhook)
		}

		if deps.Auth != nil {
			authed := deps.Auth.VerifyToken()

			billingRouteGroup.POST("/create-checkout-session", authed, billingHandler.CreateCheckoutSession)
			billingRouteGroup.POST("/create-portal-session", authed, billingHandler.CreatePortalSession)

			usersRouteGroup := apiV1.Group("/users", authed)
			{
				usersRouteGroup.GET("/me", userHandler.GetCurrentUserProfile)
				usersRouteGroup.GET("/me/billing-events", userHandler.ListBillingEvents)
			}
		} else {
			deps.Logger.Warn("Firebase Auth is not configured; authenticated routes are disabled")
		}
	}

	router.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	deps.Logger.Info("API routes configured successfully under /api/v1, /health and /metrics.")
}
