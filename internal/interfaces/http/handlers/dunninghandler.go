package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/application/dunning/usecases"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/id"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

type DunningHandler struct {
	getRunUC     getDunningRunUseCase
	cancelRunUC  cancelDunningRunUseCase
	redeemLinkUC redeemPaymentLinkUseCase
	logger       logger.Interface
}

func NewDunningHandler(getRunUC getDunningRunUseCase, cancelRunUC cancelDunningRunUseCase, redeemLinkUC redeemPaymentLinkUseCase, logger logger.Interface) *DunningHandler {
	return &DunningHandler{
		getRunUC:     getRunUC,
		cancelRunUC:  cancelRunUC,
		redeemLinkUC: redeemLinkUC,
		logger:       logger,
	}
}

// GetRun returns the run with its config, next due step and reminders.
func (h *DunningHandler) GetRun(c *gin.Context) {
	runID, err := utils.ParseIDParam(c, "id", id.PrefixDunningRun, "dunning run")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.getRunUC.Execute(c.Request.Context(), usecases.GetDunningRunQuery{RunID: runID})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if !middleware.OrganizationAllowed(c, result.Run.OrganizationID) {
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("dunning run not found"))
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *DunningHandler) CancelRun(c *gin.Context) {
	runID, err := utils.ParseIDParam(c, "id", id.PrefixDunningRun, "dunning run")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if c.GetString(constants.ContextKeyOrganizationID) != "" {
		detail, err := h.getRunUC.Execute(c.Request.Context(), usecases.GetDunningRunQuery{RunID: runID})
		if err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
		if !middleware.OrganizationAllowed(c, detail.Run.OrganizationID) {
			utils.ErrorResponseWithError(c, errors.NewNotFoundError("dunning run not found"))
			return
		}
	}

	result, err := h.cancelRunUC.Execute(c.Request.Context(), usecases.CancelDunningRunCommand{
		RunID: runID,
		Actor: middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("dunning run cancelled", "run_id", runID, "actor", middleware.Actor(c))
	utils.SuccessResponse(c, http.StatusOK, "Dunning run cancelled", result)
}

// RedeemLink is public: the token in the path is the credential.
func (h *DunningHandler) RedeemLink(c *gin.Context) {
	result, err := h.redeemLinkUC.Execute(c.Request.Context(), usecases.RedeemPaymentLinkCommand{
		Token: c.Param("token"),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
