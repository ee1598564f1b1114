package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

// Enforcer decides whether a subject may perform action on resource.
type Enforcer interface {
	Enforce(subject, resource, action string) (bool, error)
}

type PermissionMiddleware struct {
	enforcer Enforcer
	logger   logger.Interface
}

func NewPermissionMiddleware(enforcer Enforcer, logger logger.Interface) *PermissionMiddleware {
	return &PermissionMiddleware{
		enforcer: enforcer,
		logger:   logger,
	}
}

// RequirePermission checks the actor first so per-operator grants apply,
// then the role carried by the token.
func (m *PermissionMiddleware) RequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetString(constants.ContextKeyUserID)
		role := c.GetString(constants.ContextKeyUserRole)
		if actor == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
			c.Abort()
			return
		}

		for _, subject := range []string{actor, role} {
			if subject == "" {
				continue
			}
			allowed, err := m.enforcer.Enforce(subject, resource, action)
			if err != nil {
				m.logger.Errorw("permission check failed", "error", err, "actor", actor, "resource", resource, "action", action)
				utils.ErrorResponse(c, http.StatusInternalServerError, "permission check failed")
				c.Abort()
				return
			}
			if allowed {
				c.Next()
				return
			}
		}

		m.logger.Warnw("permission denied", "actor", actor, "role", role, "resource", resource, "action", action)
		utils.ErrorResponse(c, http.StatusForbidden, "insufficient permissions")
		c.Abort()
	}
}
