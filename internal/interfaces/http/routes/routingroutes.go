package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/interfaces/http/handlers"
	"github.com/payops/payops/internal/interfaces/http/middleware"
)

type RoutingRouteConfig struct {
	RoutingHandler       *handlers.RoutingHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

func SetupRoutingRoutes(api *gin.RouterGroup, config *RoutingRouteConfig) {
	perm := config.PermissionMiddleware
	routing := api.Group("/routing")
	routing.Use(config.AuthMiddleware.RequireAuth())
	{
		routing.GET("/rules",
			perm.RequirePermission(permission.ResourceRoutingRule, permission.ActionRead),
			config.RoutingHandler.ListRules)
		routing.POST("/rules",
			perm.RequirePermission(permission.ResourceRoutingRule, permission.ActionWrite),
			config.RoutingHandler.CreateRule)
		routing.PUT("/rules/:id",
			perm.RequirePermission(permission.ResourceRoutingRule, permission.ActionWrite),
			config.RoutingHandler.UpdateRule)
		routing.DELETE("/rules/:id",
			perm.RequirePermission(permission.ResourceRoutingRule, permission.ActionWrite),
			config.RoutingHandler.DeleteRule)

		routing.PUT("/overrides/:scope/:scope_id",
			perm.RequirePermission(permission.ResourceProviderOverride, permission.ActionWrite),
			config.RoutingHandler.UpsertOverride)
		routing.DELETE("/overrides/:scope/:scope_id",
			perm.RequirePermission(permission.ResourceProviderOverride, permission.ActionWrite),
			config.RoutingHandler.DeleteOverride)

		routing.POST("/test",
			perm.RequirePermission(permission.ResourceRoutingTest, permission.ActionWrite),
			config.RoutingHandler.TestRouting)
	}
}
