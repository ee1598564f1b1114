package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/interfaces/http/handlers"
	"github.com/payops/payops/internal/interfaces/http/middleware"
)

type EngineRouteConfig struct {
	RetryHandler         *handlers.RetryHandler
	DunningHandler       *handlers.DunningHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
	RateLimiter          *middleware.RateLimiter
}

// SetupEngineRoutes registers the retry schedule and dunning run endpoints.
// Payment links are redeemed by clients without a token.
func SetupEngineRoutes(api *gin.RouterGroup, config *EngineRouteConfig) {
	perm := config.PermissionMiddleware

	schedules := api.Group("/retry-schedules")
	schedules.Use(config.AuthMiddleware.RequireAuth())
	{
		schedules.POST("/:id/attempts",
			perm.RequirePermission(permission.ResourceRetrySchedule, permission.ActionWrite),
			config.RetryHandler.RecordAttempt)
		schedules.POST("/:id/cancel",
			perm.RequirePermission(permission.ResourceRetrySchedule, permission.ActionCancel),
			config.RetryHandler.CancelSchedule)
		schedules.GET("/:id",
			perm.RequirePermission(permission.ResourceRetrySchedule, permission.ActionRead),
			config.RetryHandler.GetSchedule)
	}

	runs := api.Group("/dunning-runs")
	runs.Use(config.AuthMiddleware.RequireAuth())
	{
		runs.POST("/:id/cancel",
			perm.RequirePermission(permission.ResourceDunningRun, permission.ActionCancel),
			config.DunningHandler.CancelRun)
		runs.GET("/:id",
			perm.RequirePermission(permission.ResourceDunningRun, permission.ActionRead),
			config.DunningHandler.GetRun)
	}

	links := api.Group("/payment-links")
	links.Use(config.RateLimiter.Limit())
	{
		links.POST("/:token/redeem", config.DunningHandler.RedeemLink)
	}
}
