package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/infrastructure/auth"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

// WebhookActor is the actor recorded for calls authenticated by the shared
// webhook key.
const WebhookActor = "webhook"

type AuthMiddleware struct {
	jwtService *auth.JWTService
	webhookKey string
	logger     logger.Interface
}

func NewAuthMiddleware(jwtService *auth.JWTService, webhookKey string, logger logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		webhookKey: webhookKey,
		logger:     logger,
	}
}

// RequireAuth accepts a Bearer operator token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAuthOrWebhookKey also accepts the X-Webhook-Key header used by the
// payment gateway. Webhook callers act with the operator role.
func (m *AuthMiddleware) RequireAuthOrWebhookKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(constants.HeaderWebhookKey); key != "" && m.webhookKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(m.webhookKey)) != 1 {
				m.logger.Warnw("invalid webhook key", "client_ip", c.ClientIP())
				utils.ErrorResponse(c, http.StatusUnauthorized, "invalid webhook key")
				c.Abort()
				return
			}
			c.Set(constants.ContextKeyUserID, WebhookActor)
			c.Set(constants.ContextKeyUserRole, "operator")
			c.Next()
			return
		}

		if !m.authenticate(c) {
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) bool {
	authHeader := c.GetHeader(constants.HeaderAuthorization)
	if authHeader == "" {
		utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
		return false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
		return false
	}

	claims, err := m.jwtService.Verify(parts[1])
	if err != nil {
		m.logger.Warnw("failed to verify token", "error", err, "token_prefix", utils.MaskToken(parts[1], 8))
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
		return false
	}

	c.Set(constants.ContextKeyUserID, claims.Actor())
	c.Set(constants.ContextKeyUserRole, claims.Role)
	if claims.OrganizationID != "" {
		c.Set(constants.ContextKeyOrganizationID, claims.OrganizationID)
	}
	return true
}

// Actor returns the authenticated actor, empty when unauthenticated.
func Actor(c *gin.Context) string {
	return c.GetString(constants.ContextKeyUserID)
}

// OrganizationAllowed reports whether the caller may act on organizationID.
// Tokens without an organization claim are not restricted.
func OrganizationAllowed(c *gin.Context, organizationID string) bool {
	scoped := c.GetString(constants.ContextKeyOrganizationID)
	return scoped == "" || scoped == organizationID
}
