package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/application/policy/usecases"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

// PolicyHandler administers retry policies, dunning configs and service
// bundles. Upserts are keyed by name within their scope.
type PolicyHandler struct {
	upsertPolicyUC  upsertRetryPolicyUseCase
	listPoliciesUC  listRetryPoliciesUseCase
	resolvePolicyUC resolveRetryPolicyUseCase
	upsertConfigUC  upsertDunningConfigUseCase
	listConfigsUC   listDunningConfigsUseCase
	upsertBundleUC  upsertServiceBundleUseCase
	listBundlesUC   listServiceBundlesUseCase
	logger          logger.Interface
}

func NewPolicyHandler(
	upsertPolicyUC upsertRetryPolicyUseCase,
	listPoliciesUC listRetryPoliciesUseCase,
	resolvePolicyUC resolveRetryPolicyUseCase,
	upsertConfigUC upsertDunningConfigUseCase,
	listConfigsUC listDunningConfigsUseCase,
	upsertBundleUC upsertServiceBundleUseCase,
	listBundlesUC listServiceBundlesUseCase,
	logger logger.Interface,
) *PolicyHandler {
	return &PolicyHandler{
		upsertPolicyUC:  upsertPolicyUC,
		listPoliciesUC:  listPoliciesUC,
		resolvePolicyUC: resolvePolicyUC,
		upsertConfigUC:  upsertConfigUC,
		listConfigsUC:   listConfigsUC,
		upsertBundleUC:  upsertBundleUC,
		listBundlesUC:   listBundlesUC,
		logger:          logger,
	}
}

type RetryPolicyRequest struct {
	OrganizationID string     `json:"organization_id" binding:"required"`
	CompanyID      string     `json:"company_id"`
	ProductCode    string     `json:"product_code"`
	Channel        string     `json:"channel"`
	Name           string     `json:"name" binding:"required,max=128"`
	Plan           retry.Plan `json:"plan"`
	IsDefault      bool       `json:"is_default"`
	Enabled        *bool      `json:"enabled"`
}

func (h *PolicyHandler) UpsertRetryPolicy(c *gin.Context) {
	var req RetryPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for retry policy", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.upsertPolicyUC.Execute(c.Request.Context(), usecases.UpsertRetryPolicyCommand{
		Scope: retry.Scope{
			OrganizationID: req.OrganizationID,
			CompanyID:      req.CompanyID,
			ProductCode:    req.ProductCode,
			Channel:        req.Channel,
		},
		Name:      req.Name,
		Plan:      req.Plan,
		IsDefault: req.IsDefault,
		Enabled:   req.Enabled == nil || *req.Enabled,
		Actor:     middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if result.Created {
		utils.CreatedResponse(c, result.Policy, "Retry policy created successfully")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Retry policy updated successfully", result.Policy)
}

func (h *PolicyHandler) ListRetryPolicies(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.listPoliciesUC.Execute(c.Request.Context(), usecases.ListRetryPoliciesQuery{OrganizationID: organizationID})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// ResolveRetryPolicy answers which policy a failure with the given scope
// would use.
func (h *PolicyHandler) ResolveRetryPolicy(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.resolvePolicyUC.Execute(c.Request.Context(), usecases.ResolveRetryPolicyQuery{
		Scope: retry.Scope{
			OrganizationID: organizationID,
			CompanyID:      c.Query("company_id"),
			ProductCode:    c.Query("product_code"),
			Channel:        c.Query("channel"),
		},
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type DunningConfigRequest struct {
	OrganizationID string                 `json:"organization_id" binding:"required"`
	CompanyID      string                 `json:"company_id"`
	Name           string                 `json:"name" binding:"required,max=128"`
	Steps          []dunningdto.StepInput `json:"steps" binding:"required,min=1,dive"`
	IsDefault      bool                   `json:"is_default"`
	Enabled        *bool                  `json:"enabled"`
}

func (h *PolicyHandler) UpsertDunningConfig(c *gin.Context) {
	var req DunningConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for dunning config", "error", err)
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.upsertConfigUC.Execute(c.Request.Context(), usecases.UpsertDunningConfigCommand{
		OrganizationID: req.OrganizationID,
		CompanyID:      req.CompanyID,
		Name:           req.Name,
		Steps:          req.Steps,
		IsDefault:      req.IsDefault,
		Enabled:        req.Enabled == nil || *req.Enabled,
		Actor:          middleware.Actor(c),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if result.Created {
		utils.CreatedResponse(c, result.Config, "Dunning config created successfully")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Dunning config updated successfully", result.Config)
}

func (h *PolicyHandler) ListDunningConfigs(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.listConfigsUC.Execute(c.Request.Context(), usecases.ListDunningConfigsQuery{OrganizationID: organizationID})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

type ServiceBundleRequest struct {
	OrganizationID    string   `json:"organization_id" binding:"required"`
	Name              string   `json:"name" binding:"required,max=128"`
	AnchorServiceCode string   `json:"anchor_service_code" binding:"required"`
	MemberCodes       []string `json:"member_codes" binding:"required,min=1"`
}

func (h *PolicyHandler) UpsertServiceBundle(c *gin.Context) {
	var req ServiceBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, bindError(err))
		return
	}
	if err := checkOrganization(c, req.OrganizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.upsertBundleUC.Execute(c.Request.Context(), usecases.UpsertServiceBundleCommand{
		OrganizationID:    req.OrganizationID,
		Name:              req.Name,
		AnchorServiceCode: req.AnchorServiceCode,
		MemberCodes:       req.MemberCodes,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Service bundle saved", result)
}

func (h *PolicyHandler) ListServiceBundles(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if err := checkOrganization(c, organizationID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.listBundlesUC.Execute(c.Request.Context(), organizationID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
