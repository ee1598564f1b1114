package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/id"
)

// ParseIDParam reads a prefixed id ("rs_...", "dr_...") from the route
// parameter and rejects ids of another entity.
func ParseIDParam(c *gin.Context, paramName, prefix, entityName string) (string, error) {
	raw := c.Param(paramName)
	if raw == "" {
		return "", errors.NewValidationError(entityName + " id is required")
	}
	if err := id.ValidatePrefix(raw, prefix); err != nil {
		return "", errors.NewValidationError(fmt.Sprintf("invalid %s id, expected %s_xxxxx", entityName, prefix))
	}
	return raw, nil
}
