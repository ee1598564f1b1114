package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/interfaces/http/handlers"
	"github.com/payops/payops/internal/interfaces/http/middleware"
)

type PaymentRouteConfig struct {
	PaymentEventHandler  *handlers.PaymentEventHandler
	SuspensionHandler    *handlers.SuspensionHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
	RateLimiter          *middleware.RateLimiter
}

// SetupPaymentRoutes registers the ingestion endpoints. The payment gateway
// authenticates with the webhook key, operators with a token.
func SetupPaymentRoutes(api *gin.RouterGroup, config *PaymentRouteConfig) {
	payments := api.Group("/payments")
	payments.Use(config.AuthMiddleware.RequireAuthOrWebhookKey(), config.RateLimiter.Limit())
	{
		payments.POST("/events",
			config.PermissionMiddleware.RequirePermission(permission.ResourcePaymentEvent, permission.ActionWrite),
			config.PaymentEventHandler.HandleEvent)
		payments.POST("/signals",
			config.PermissionMiddleware.RequirePermission(permission.ResourcePaymentEvent, permission.ActionWrite),
			config.PaymentEventHandler.ApplySignal)
	}

	suspensions := api.Group("/suspensions")
	suspensions.Use(config.AuthMiddleware.RequireAuthOrWebhookKey())
	{
		suspensions.POST("/non-payment",
			config.PermissionMiddleware.RequirePermission(permission.ResourceSuspension, permission.ActionWrite),
			config.SuspensionHandler.HandleNonPayment)
	}
}
