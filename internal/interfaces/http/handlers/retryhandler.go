package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/application/retry/usecases"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/id"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

type RetryHandler struct {
	getScheduleUC     getRetryScheduleUseCase
	recordAttemptUC   recordAttemptUseCase
	resolveScheduleUC resolveRetryScheduleUseCase
	logger            logger.Interface
}

func NewRetryHandler(
	getScheduleUC getRetryScheduleUseCase,
	recordAttemptUC recordAttemptUseCase,
	resolveScheduleUC resolveRetryScheduleUseCase,
	logger logger.Interface,
) *RetryHandler {
	return &RetryHandler{
		getScheduleUC:     getScheduleUC,
		recordAttemptUC:   recordAttemptUC,
		resolveScheduleUC: resolveScheduleUC,
		logger:            logger,
	}
}

func (h *RetryHandler) GetSchedule(c *gin.Context) {
	scheduleID, err := utils.ParseIDParam(c, "id", id.PrefixRetrySchedule, "retry schedule")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.getScheduleUC.Execute(c.Request.Context(), usecases.GetRetryScheduleQuery{ScheduleID: scheduleID})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if !middleware.OrganizationAllowed(c, result.OrganizationID) {
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("retry schedule not found"))
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type RecordAttemptRequest struct {
	Outcome       string    `json:"outcome" binding:"required,oneof=SUCCEEDED REJECTED EXECUTION_ERROR"`
	RejectionCode string    `json:"rejection_code"`
	ProviderRef   string    `json:"provider_ref"`
	ErrorMessage  string    `json:"error_message" binding:"max=512"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// RecordAttempt reports the outcome of a submitted retry. The
// Idempotency-Key header makes redelivered outcomes no-ops.
func (h *RetryHandler) RecordAttempt(c *gin.Context) {
	scheduleID, err := h.accessibleSchedule(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req RecordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for record attempt", "schedule_id", scheduleID, "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}

	result, err := h.recordAttemptUC.Execute(c.Request.Context(), usecases.RecordAttemptCommand{
		ScheduleID:     scheduleID,
		Kind:           retry.OutcomeKind(req.Outcome),
		RejectionCode:  req.RejectionCode,
		ProviderRef:    req.ProviderRef,
		ErrorMessage:   req.ErrorMessage,
		AttemptedAt:    req.AttemptedAt,
		IdempotencyKey: c.GetHeader(constants.HeaderIdempotencyKey),
		Actor:          middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// CancelSchedule resolves a schedule as MANUAL_CANCEL on behalf of the
// calling operator.
func (h *RetryHandler) CancelSchedule(c *gin.Context) {
	scheduleID, err := h.accessibleSchedule(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.resolveScheduleUC.Execute(c.Request.Context(), usecases.ResolveRetryScheduleCommand{
		ScheduleID: scheduleID,
		Reason:     retry.ResolutionManualCancel,
		Actor:      middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("retry schedule cancelled", "schedule_id", scheduleID, "actor", middleware.Actor(c))
	utils.SuccessResponse(c, http.StatusOK, "Retry schedule cancelled", result)
}

// accessibleSchedule parses the path id and, for organization-pinned
// tokens, checks the schedule belongs to that organization.
func (h *RetryHandler) accessibleSchedule(c *gin.Context) (string, error) {
	scheduleID, err := utils.ParseIDParam(c, "id", id.PrefixRetrySchedule, "retry schedule")
	if err != nil {
		return "", err
	}
	if c.GetString(constants.ContextKeyOrganizationID) == "" {
		return scheduleID, nil
	}
	detail, err := h.getScheduleUC.Execute(c.Request.Context(), usecases.GetRetryScheduleQuery{ScheduleID: scheduleID})
	if err != nil {
		return "", err
	}
	if !middleware.OrganizationAllowed(c, detail.OrganizationID) {
		return "", errors.NewNotFoundError("retry schedule not found")
	}
	return scheduleID, nil
}
