package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/application/ingest/usecases"
	retryusecases "github.com/payops/payops/internal/application/retry/usecases"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

type PaymentEventHandler struct {
	handleEventUC handlePaymentEventUseCase
	applySignalUC applySignalUseCase
	logger        logger.Interface
}

func NewPaymentEventHandler(handleEventUC handlePaymentEventUseCase, applySignalUC applySignalUseCase, logger logger.Interface) *PaymentEventHandler {
	return &PaymentEventHandler{
		handleEventUC: handleEventUC,
		applySignalUC: applySignalUC,
		logger:        logger,
	}
}

type PaymentEventRequest struct {
	EventID           string    `json:"event_id"`
	Type              string    `json:"type" binding:"required"`
	OrganizationID    string    `json:"organization_id" binding:"required"`
	CompanyID         string    `json:"company_id"`
	PaymentID         string    `json:"payment_id" binding:"required"`
	ClientID          string    `json:"client_id"`
	ContractID        string    `json:"contract_id"`
	SubscriptionID    string    `json:"subscription_id"`
	PaymentScheduleID string    `json:"payment_schedule_id"`
	ProductCode       string    `json:"product_code"`
	Channel           string    `json:"channel"`
	AmountCents       int64     `json:"amount_cents" binding:"gte=0"`
	Currency          string    `json:"currency" binding:"omitempty,len=3"`
	RejectionCode     string    `json:"rejection_code"`
	RawRejectionCode  string    `json:"raw_rejection_code"`
	ProviderRef       string    `json:"provider_ref"`
	OccurredAt        time.Time `json:"occurred_at"`
	ContactEmail      string    `json:"contact_email" binding:"omitempty,email"`
	ContactPhone      string    `json:"contact_phone"`
}

// HandleEvent ingests payment.failed and payment.succeeded. The event id
// falls back to the Idempotency-Key header; redelivery is answered with the
// same 200 and duplicate set.
func (h *PaymentEventHandler) HandleEvent(c *gin.Context) {
	var req PaymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for payment event", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if req.EventID == "" {
		req.EventID = c.GetHeader(constants.HeaderIdempotencyKey)
	}

	result, err := h.handleEventUC.Execute(c.Request.Context(), usecases.HandlePaymentEventCommand{
		EventID:           req.EventID,
		Type:              req.Type,
		OrganizationID:    req.OrganizationID,
		CompanyID:         req.CompanyID,
		PaymentID:         req.PaymentID,
		ClientID:          req.ClientID,
		ContractID:        req.ContractID,
		SubscriptionID:    req.SubscriptionID,
		PaymentScheduleID: req.PaymentScheduleID,
		ProductCode:       req.ProductCode,
		Channel:           req.Channel,
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
		RejectionCode:     req.RejectionCode,
		RawRejectionCode:  req.RawRejectionCode,
		ProviderRef:       req.ProviderRef,
		OccurredAt:        req.OccurredAt,
		ContactEmail:      req.ContactEmail,
		ContactPhone:      req.ContactPhone,
		Actor:             middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("payment event ingested",
		"event_id", req.EventID,
		"type", req.Type,
		"payment_id", req.PaymentID,
		"duplicate", result.Duplicate,
	)
	if result.ScheduleOpened {
		utils.CreatedResponse(c, result, "Retry schedule opened")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type SignalRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	Signal         string `json:"signal" binding:"required,oneof=PAYMENT_SETTLED CONTRACT_CANCELLED MANDATE_REVOKED CLIENT_BLOCKED"`
	PaymentID      string `json:"payment_id"`
	ContractID     string `json:"contract_id"`
	ClientID       string `json:"client_id"`
}

// ApplySignal revises the eligibility of every open schedule the signal
// addresses.
func (h *PaymentEventHandler) ApplySignal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for signal", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.applySignalUC.Execute(c.Request.Context(), retryusecases.ApplySignalCommand{
		OrganizationID: req.OrganizationID,
		Signal:         retry.Signal(req.Signal),
		PaymentID:      req.PaymentID,
		ContractID:     req.ContractID,
		ClientID:       req.ClientID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
