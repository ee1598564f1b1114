package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/application/routing/usecases"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/id"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

type RoutingHandler struct {
	createRuleUC     createRoutingRuleUseCase
	updateRuleUC     updateRoutingRuleUseCase
	deleteRuleUC     deleteRoutingRuleUseCase
	listRulesUC      listRoutingRulesUseCase
	upsertOverrideUC upsertProviderOverrideUseCase
	deleteOverrideUC deleteProviderOverrideUseCase
	testRoutingUC    testRoutingUseCase
	logger           logger.Interface
}

func NewRoutingHandler(
	createRuleUC createRoutingRuleUseCase,
	updateRuleUC updateRoutingRuleUseCase,
	deleteRuleUC deleteRoutingRuleUseCase,
	listRulesUC listRoutingRulesUseCase,
	upsertOverrideUC upsertProviderOverrideUseCase,
	deleteOverrideUC deleteProviderOverrideUseCase,
	testRoutingUC testRoutingUseCase,
	logger logger.Interface,
) *RoutingHandler {
	return &RoutingHandler{
		createRuleUC:     createRuleUC,
		updateRuleUC:     updateRuleUC,
		deleteRuleUC:     deleteRuleUC,
		listRulesUC:      listRulesUC,
		upsertOverrideUC: upsertOverrideUC,
		deleteOverrideUC: deleteOverrideUC,
		testRoutingUC:    testRoutingUC,
		logger:           logger,
	}
}

type CreateRoutingRuleRequest struct {
	OrganizationID    string             `json:"organization_id" binding:"required"`
	CompanyID         string             `json:"company_id" binding:"required"`
	Name              string             `json:"name" binding:"required,max=128"`
	Priority          int                `json:"priority"`
	Conditions        routing.Conditions `json:"conditions"`
	ProviderAccountID string             `json:"provider_account_id" binding:"required"`
	Fallback          bool               `json:"fallback"`
}

type UpdateRoutingRuleRequest struct {
	Name              *string             `json:"name" binding:"omitempty,max=128"`
	Priority          *int                `json:"priority"`
	Conditions        *routing.Conditions `json:"conditions"`
	ProviderAccountID *string             `json:"provider_account_id"`
	Enabled           *bool               `json:"enabled"`
}

func (h *RoutingHandler) CreateRule(c *gin.Context) {
	var req CreateRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create routing rule", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.createRuleUC.Execute(c.Request.Context(), usecases.CreateRoutingRuleCommand{
		OrganizationID:    req.OrganizationID,
		CompanyID:         req.CompanyID,
		Name:              req.Name,
		Priority:          req.Priority,
		Conditions:        req.Conditions,
		ProviderAccountID: req.ProviderAccountID,
		Fallback:          req.Fallback,
		Actor:             middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Routing rule created successfully")
}

func (h *RoutingHandler) UpdateRule(c *gin.Context) {
	ruleID, err := utils.ParseIDParam(c, "id", id.PrefixRoutingRule, "routing rule")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req UpdateRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for update routing rule", "rule_id", ruleID, "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}

	result, err := h.updateRuleUC.Execute(c.Request.Context(), usecases.UpdateRoutingRuleCommand{
		RuleID:            ruleID,
		Name:              req.Name,
		Priority:          req.Priority,
		Conditions:        req.Conditions,
		ProviderAccountID: req.ProviderAccountID,
		Enabled:           req.Enabled,
		Actor:             middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Routing rule updated successfully", result)
}

func (h *RoutingHandler) DeleteRule(c *gin.Context) {
	ruleID, err := utils.ParseIDParam(c, "id", id.PrefixRoutingRule, "routing rule")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := h.deleteRuleUC.Execute(c.Request.Context(), usecases.DeleteRoutingRuleCommand{
		RuleID: ruleID,
		Actor:  middleware.Actor(c),
	}); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.NoContentResponse(c)
}

// ListRules lists the rules of an organization, optionally one company, in
// evaluation order.
func (h *RoutingHandler) ListRules(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	pagination := utils.ParsePagination(c)

	rules, err := h.listRulesUC.Execute(c.Request.Context(), usecases.ListRoutingRulesQuery{
		OrganizationID: organizationID,
		CompanyID:      c.Query("company_id"),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	start, end := utils.ApplyPagination(len(rules), pagination.Page, pagination.PageSize)
	utils.ListSuccessResponse(c, rules[start:end], int64(len(rules)), pagination.Page, pagination.PageSize)
}

type ProviderOverrideRequest struct {
	OrganizationID    string `json:"organization_id" binding:"required"`
	ProviderAccountID string `json:"provider_account_id" binding:"required"`
	Reason            string `json:"reason" binding:"max=255"`
}

// UpsertOverride pins a provider account for a client or contract.
func (h *RoutingHandler) UpsertOverride(c *gin.Context) {
	scope := routing.OverrideScope(strings.ToUpper(c.Param("scope")))
	var req ProviderOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for provider override", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.upsertOverrideUC.Execute(c.Request.Context(), usecases.UpsertProviderOverrideCommand{
		OrganizationID:    req.OrganizationID,
		Scope:             scope,
		ScopeID:           c.Param("scope_id"),
		ProviderAccountID: req.ProviderAccountID,
		Reason:            req.Reason,
		Actor:             middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Provider override saved", result)
}

func (h *RoutingHandler) DeleteOverride(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := h.deleteOverrideUC.Execute(c.Request.Context(), usecases.DeleteProviderOverrideCommand{
		OrganizationID: organizationID,
		Scope:          routing.OverrideScope(strings.ToUpper(c.Param("scope"))),
		ScopeID:        c.Param("scope_id"),
		Actor:          middleware.Actor(c),
	}); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.NoContentResponse(c)
}

type TestRoutingRequest struct {
	OrganizationID string          `json:"organization_id" binding:"required"`
	CompanyID      string          `json:"company_id" binding:"required"`
	Payment        routing.Payment `json:"payment"`
}

// TestRouting evaluates a hypothetical payment and returns the full trace
// without logging a decision.
func (h *RoutingHandler) TestRouting(c *gin.Context) {
	var req TestRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.testRoutingUC.Execute(c.Request.Context(), usecases.TestRoutingCommand{
		OrganizationID: req.OrganizationID,
		CompanyID:      req.CompanyID,
		Payment:        req.Payment,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
