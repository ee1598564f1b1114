package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/payops/payops/internal/shared/constants"
)

// RoutingRuleModel is the persistence model of a provider routing rule.
type RoutingRuleModel struct {
	ID                string         `gorm:"primaryKey;size:32"`
	OrganizationID    string         `gorm:"not null;size:64;index:idx_routing_rule_company,priority:1"`
	CompanyID         string         `gorm:"not null;size:64;index:idx_routing_rule_company,priority:2"`
	Name              string         `gorm:"not null;size:120"`
	Priority          int            `gorm:"not null"`
	Conditions        datatypes.JSON `gorm:"not null"`
	ProviderAccountID string         `gorm:"not null;size:64"`
	IsFallback        bool           `gorm:"not null;default:false"`
	Enabled           bool           `gorm:"not null"`
	Version           int            `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (RoutingRuleModel) TableName() string {
	return constants.TableRoutingRules
}

// ProviderOverrideModel pins a provider for one client or contract.
type ProviderOverrideModel struct {
	ID                string `gorm:"primaryKey;size:32"`
	OrganizationID    string `gorm:"not null;size:64;uniqueIndex:uk_override_scope,priority:1"`
	Scope             string `gorm:"not null;size:16;uniqueIndex:uk_override_scope,priority:2"`
	ScopeID           string `gorm:"not null;size:64;uniqueIndex:uk_override_scope,priority:3"`
	ProviderAccountID string `gorm:"not null;size:64"`
	Reason            string `gorm:"size:500"`
	CreatedBy         string `gorm:"size:64"`
	Version           int    `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ProviderOverrideModel) TableName() string {
	return constants.TableProviderOverrides
}

// RoutingDecisionModel stores the trace of one evaluation.
type RoutingDecisionModel struct {
	ID                string         `gorm:"primaryKey;size:32"`
	OrganizationID    string         `gorm:"not null;size:64;index:idx_routing_decision_payment,priority:1"`
	PaymentID         string         `gorm:"not null;size:64;index:idx_routing_decision_payment,priority:2"`
	CompanyID         string         `gorm:"size:64"`
	MatchedBy         string         `gorm:"not null;size:16"`
	ProviderAccountID string         `gorm:"size:64"`
	Input             datatypes.JSON `gorm:"not null"`
	Decision          datatypes.JSON `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"index"`
}

func (RoutingDecisionModel) TableName() string {
	return constants.TableRoutingDecisions
}
