package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/interfaces/http/handlers"
	"github.com/payops/payops/internal/interfaces/http/middleware"
)

type PolicyRouteConfig struct {
	PolicyHandler        *handlers.PolicyHandler
	LedgerHandler        *handlers.LedgerHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

// SetupPolicyRoutes registers policy administration and the ledger views.
func SetupPolicyRoutes(api *gin.RouterGroup, config *PolicyRouteConfig) {
	perm := config.PermissionMiddleware
	h := config.PolicyHandler

	admin := api.Group("")
	admin.Use(config.AuthMiddleware.RequireAuth())
	{
		// /resolve must come before any parameterized policy route
		admin.GET("/retry-policies/resolve",
			perm.RequirePermission(permission.ResourceRetryPolicy, permission.ActionRead),
			h.ResolveRetryPolicy)
		admin.GET("/retry-policies",
			perm.RequirePermission(permission.ResourceRetryPolicy, permission.ActionRead),
			h.ListRetryPolicies)
		admin.PUT("/retry-policies",
			perm.RequirePermission(permission.ResourceRetryPolicy, permission.ActionWrite),
			h.UpsertRetryPolicy)

		admin.GET("/dunning-configs",
			perm.RequirePermission(permission.ResourceDunningConfig, permission.ActionRead),
			h.ListDunningConfigs)
		admin.PUT("/dunning-configs",
			perm.RequirePermission(permission.ResourceDunningConfig, permission.ActionWrite),
			h.UpsertDunningConfig)

		admin.GET("/service-bundles",
			perm.RequirePermission(permission.ResourceServiceBundle, permission.ActionRead),
			h.ListServiceBundles)
		admin.PUT("/service-bundles",
			perm.RequirePermission(permission.ResourceServiceBundle, permission.ActionWrite),
			h.UpsertServiceBundle)

		admin.GET("/alerts",
			perm.RequirePermission(permission.ResourceAlert, permission.ActionRead),
			config.LedgerHandler.ListAlerts)
		admin.GET("/audit/:entity_type/:id",
			perm.RequirePermission(permission.ResourceAlert, permission.ActionRead),
			config.LedgerHandler.History)
	}
}
