package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/payops/payops/internal/interfaces/http/docs"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/interfaces/http/routes"
	"github.com/payops/payops/internal/shared/utils"
	"github.com/payops/payops/internal/shared/version"
)

// SetupRoutes configures all HTTP routes.
func (c *Container) SetupRoutes() {
	c.engine.Use(middleware.RequestID())
	c.engine.Use(middleware.CustomLogger(c.log))
	c.engine.Use(middleware.Recovery(c.log))
	c.engine.Use(middleware.ErrorHandler(c.log))
	c.engine.Use(middleware.CORS(c.cfg.Server.AllowedOrigins))
	c.engine.Use(middleware.SecurityHeaders())

	c.engine.GET("/health", c.healthCheck)
	c.engine.GET("/version", func(ctx *gin.Context) {
		utils.SuccessResponse(ctx, http.StatusOK, "", gin.H{"version": version.Current()})
	})
	c.engine.GET("/metrics", gin.WrapH(c.metrics.Handler()))

	docs.SwaggerInfo.Version = version.Current()
	c.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := c.engine.Group("/api/v1")

	routes.SetupPaymentRoutes(api, &routes.PaymentRouteConfig{
		PaymentEventHandler:  c.hdlrs.paymentEventHandler,
		SuspensionHandler:    c.hdlrs.suspensionHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
		RateLimiter:          c.rateLimiter,
	})

	routes.SetupRoutingRoutes(api, &routes.RoutingRouteConfig{
		RoutingHandler:       c.hdlrs.routingHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})

	routes.SetupEngineRoutes(api, &routes.EngineRouteConfig{
		RetryHandler:         c.hdlrs.retryHandler,
		DunningHandler:       c.hdlrs.dunningHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
		RateLimiter:          c.rateLimiter,
	})

	routes.SetupPolicyRoutes(api, &routes.PolicyRouteConfig{
		PolicyHandler:        c.hdlrs.policyHandler,
		LedgerHandler:        c.hdlrs.ledgerHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})
}

// healthCheck reports whether the database and Redis answer.
func (c *Container) healthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if sqlDB, err := c.db.DB(); err != nil || sqlDB.PingContext(reqCtx) != nil {
		status["database"] = "unavailable"
		healthy = false
	}
	if err := c.redis.Ping(reqCtx).Err(); err != nil {
		status["redis"] = "unavailable"
		healthy = false
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "data": status})
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "healthy", status)
}
