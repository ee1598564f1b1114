// Package seeds loads the externally managed default configuration of an
// organization (retry policies, dunning configs, routing rules and service
// bundles) and applies it through the admin use cases.
package seeds

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/shared/utils"
)

// File is the root of a seeds document.
type File struct {
	RetryPolicies  []RetryPolicySeed   `yaml:"retry_policies" json:"retry_policies" validate:"dive"`
	DunningConfigs []DunningConfigSeed `yaml:"dunning_configs" json:"dunning_configs" validate:"dive"`
	RoutingRules   []RoutingRuleSeed   `yaml:"routing_rules" json:"routing_rules" validate:"dive"`
	ServiceBundles []ServiceBundleSeed `yaml:"service_bundles" json:"service_bundles" validate:"dive"`
}

type RetryPolicySeed struct {
	OrganizationID    string   `yaml:"organization_id" json:"organization_id" validate:"required"`
	CompanyID         string   `yaml:"company_id" json:"company_id"`
	ProductCode       string   `yaml:"product_code" json:"product_code"`
	Channel           string   `yaml:"channel" json:"channel"`
	Name              string   `yaml:"name" json:"name" validate:"required,max=120"`
	RetryDelaysDays   []int    `yaml:"retry_delays_days" json:"retry_delays_days" validate:"required,min=1,dive,gt=0"`
	MaxAttempts       int      `yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`
	MaxTotalDays      int      `yaml:"max_total_days" json:"max_total_days" validate:"gte=1"`
	RetryableCodes    []string `yaml:"retryable_codes" json:"retryable_codes"`
	NonRetryableCodes []string `yaml:"non_retryable_codes" json:"non_retryable_codes"`
	StopOnSettlement  *bool    `yaml:"stop_on_settlement" json:"stop_on_settlement"`
	StopOnCancel      *bool    `yaml:"stop_on_contract_cancel" json:"stop_on_contract_cancel"`
	StopOnRevocation  *bool    `yaml:"stop_on_mandate_revocation" json:"stop_on_mandate_revocation"`
	IsDefault         bool     `yaml:"is_default" json:"is_default"`
	Disabled          bool     `yaml:"disabled" json:"disabled"`
}

type DunningConfigSeed struct {
	OrganizationID string                 `yaml:"organization_id" json:"organization_id" validate:"required"`
	CompanyID      string                 `yaml:"company_id" json:"company_id"`
	Name           string                 `yaml:"name" json:"name" validate:"required,max=120"`
	Steps          []dunningdto.StepInput `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
	IsDefault      bool                   `yaml:"is_default" json:"is_default"`
	Disabled       bool                   `yaml:"disabled" json:"disabled"`
}

type RoutingRuleSeed struct {
	OrganizationID       string   `yaml:"organization_id" json:"organization_id" validate:"required"`
	CompanyID            string   `yaml:"company_id" json:"company_id" validate:"required"`
	Name                 string   `yaml:"name" json:"name" validate:"required,max=120"`
	Priority             int      `yaml:"priority" json:"priority" validate:"gte=0"`
	ProviderAccountID    string   `yaml:"provider_account_id" json:"provider_account_id" validate:"required"`
	Fallback             bool     `yaml:"fallback" json:"fallback"`
	SourceChannels       []string `yaml:"source_channels" json:"source_channels"`
	ProductCodes         []string `yaml:"product_codes" json:"product_codes"`
	MinContractAgeMonths *int     `yaml:"min_contract_age_months" json:"min_contract_age_months" validate:"omitempty,gte=0"`
	DebitLotCodes        []string `yaml:"debit_lot_codes" json:"debit_lot_codes"`
	PreferredDebitDays   []int    `yaml:"preferred_debit_days" json:"preferred_debit_days" validate:"dive,gte=1,lte=31"`
	RiskTiers            []string `yaml:"risk_tiers" json:"risk_tiers"`
}

type ServiceBundleSeed struct {
	OrganizationID    string   `yaml:"organization_id" json:"organization_id" validate:"required"`
	Name              string   `yaml:"name" json:"name" validate:"required,max=120"`
	AnchorServiceCode string   `yaml:"anchor_service_code" json:"anchor_service_code" validate:"required"`
	MemberCodes       []string `yaml:"member_codes" json:"member_codes" validate:"required,min=1"`
}

// LoadFile reads and validates a seeds document.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a seeds document. Unknown keys are rejected so a typo never
// silently drops a setting.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seeds: %w", err)
	}
	if err := utils.ValidateStruct(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
