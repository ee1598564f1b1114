package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/application/suspension/usecases"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

type SuspensionHandler struct {
	nonPaymentUC handleServiceNonPaymentUseCase
	logger       logger.Interface
}

func NewSuspensionHandler(nonPaymentUC handleServiceNonPaymentUseCase, logger logger.Interface) *SuspensionHandler {
	return &SuspensionHandler{nonPaymentUC: nonPaymentUC, logger: logger}
}

type ServiceNonPaymentRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	ClientID       string `json:"client_id" binding:"required"`
	ContractID     string `json:"contract_id"`
	ServiceCode    string `json:"service_code" binding:"required"`
	Reason         string `json:"reason" binding:"max=255"`
}

// HandleNonPayment removes the bundle discount when the anchor service is
// unpaid, or suspends the service otherwise.
func (h *SuspensionHandler) HandleNonPayment(c *gin.Context) {
	var req ServiceNonPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for service non-payment", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.nonPaymentUC.Execute(c.Request.Context(), usecases.HandleServiceNonPaymentCommand{
		OrganizationID: req.OrganizationID,
		ClientID:       req.ClientID,
		ContractID:     req.ContractID,
		ServiceCode:    req.ServiceCode,
		Reason:         req.Reason,
		Actor:          middleware.Actor(c),
		IdempotencyKey: c.GetHeader(constants.HeaderIdempotencyKey),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
