package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/mapper"
	"github.com/payops/payops/internal/shared/utils"
)

type AlertResponse struct {
	ID        string            `json:"id"`
	CompanyID string            `json:"company_id,omitempty"`
	Code      string            `json:"code"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type AuditEntryResponse struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	Actor          string    `json:"actor"`
	Before         any       `json:"before,omitempty"`
	After          any       `json:"after,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// LedgerHandler exposes raised alerts and the audit trail of an entity.
type LedgerHandler struct {
	ledger LedgerReader
	logger logger.Interface
}

func NewLedgerHandler(ledger LedgerReader, logger logger.Interface) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

func (h *LedgerHandler) ListAlerts(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	pagination := utils.ParsePaginationWithLimits(c, constants.DefaultPageSize, constants.MaxPageSize)

	alerts, err := h.ledger.Alerts(c.Request.Context(), organizationID, c.Query("company_id"), pagination.PageSize)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", mapper.MapSlice(alerts, toAlertResponse))
}

var auditableEntities = map[string]audit.EntityType{
	string(audit.EntityRetrySchedule):   audit.EntityRetrySchedule,
	string(audit.EntityRetryPolicy):     audit.EntityRetryPolicy,
	string(audit.EntityDunningRun):      audit.EntityDunningRun,
	string(audit.EntityDunningConfig):   audit.EntityDunningConfig,
	string(audit.EntityRoutingRule):     audit.EntityRoutingRule,
	string(audit.EntityOverride):        audit.EntityOverride,
	string(audit.EntityPaymentSchedule): audit.EntityPaymentSchedule,
	string(audit.EntityBillingLine):     audit.EntityBillingLine,
	string(audit.EntityInvoice):         audit.EntityInvoice,
}

// History returns the transitions of one entity, oldest first.
func (h *LedgerHandler) History(c *gin.Context) {
	entityType, ok := auditableEntities[c.Param("entity_type")]
	if !ok {
		utils.ErrorResponseWithError(c, errors.NewValidationError("unknown entity type", c.Param("entity_type")))
		return
	}

	entries, err := h.ledger.History(c.Request.Context(), entityType, c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	scoped := c.GetString(constants.ContextKeyOrganizationID)
	visible := make([]*audit.Entry, 0, len(entries))
	for _, e := range entries {
		if scoped == "" || e.OrganizationID == scoped {
			visible = append(visible, e)
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "", mapper.MapSlice(visible, toAuditEntryResponse))
}

func toAlertResponse(a *alert.Alert) *AlertResponse {
	return &AlertResponse{
		ID:        a.ID,
		CompanyID: a.CompanyID,
		Code:      a.Code,
		Severity:  string(a.Severity),
		Message:   a.Message,
		Context:   a.Context,
		CreatedAt: a.CreatedAt,
	}
}

func toAuditEntryResponse(e *audit.Entry) *AuditEntryResponse {
	r := &AuditEntryResponse{
		ID:             e.ID,
		Action:         e.Action,
		Actor:          e.Actor,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
	if len(e.Before) > 0 {
		r.Before = e.Before
	}
	if len(e.After) > 0 {
		r.After = e.After
	}
	return r
}
