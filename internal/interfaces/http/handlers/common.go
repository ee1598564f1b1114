package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/errors"
)

// checkOrganization rejects calls on an organization other than the one
// pinned in the caller's token.
func checkOrganization(c *gin.Context, organizationID string) error {
	if organizationID == "" {
		return errors.NewValidationError("organization_id is required")
	}
	if !middleware.OrganizationAllowed(c, organizationID) {
		return errors.NewForbiddenError("organization not accessible with this token")
	}
	return nil
}

// bindError wraps gin binding errors so they render as validation errors.
func bindError(err error) error {
	return errors.NewValidationError("invalid request body", err.Error())
}
