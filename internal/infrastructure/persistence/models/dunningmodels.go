package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/payops/payops/internal/shared/constants"
)

type DunningConfigModel struct {
	ID             string         `gorm:"primaryKey;size:32"`
	OrganizationID string         `gorm:"not null;size:64;index"`
	CompanyID      string         `gorm:"size:64"`
	Name           string         `gorm:"not null;size:120"`
	Steps          datatypes.JSON `gorm:"not null"`
	IsDefault      bool           `gorm:"not null;default:false"`
	Enabled        bool           `gorm:"not null"`
	Version        int            `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DunningConfigModel) TableName() string {
	return constants.TableDunningConfigs
}

// DunningRunModel is the durable state of a dunning run. ActiveKey is set
// while the run is open, so a subscription holds at most one open run.
type DunningRunModel struct {
	ID                string  `gorm:"primaryKey;size:32"`
	OrganizationID    string  `gorm:"not null;size:64;index:idx_dunning_run_subscription,priority:1"`
	SubscriptionID    string  `gorm:"not null;size:64;index:idx_dunning_run_subscription,priority:2"`
	ActiveKey         *string `gorm:"size:140;uniqueIndex:uk_dunning_run_active"`
	CompanyID         string  `gorm:"size:64"`
	ClientID          string  `gorm:"size:64"`
	ContractID        string  `gorm:"size:64"`
	PaymentScheduleID string  `gorm:"size:64"`
	RetryScheduleID   string  `gorm:"size:32"`
	ConfigID          string  `gorm:"size:32"`
	ContactEmail      string  `gorm:"size:255"`
	ContactPhone      string  `gorm:"size:32"`
	LastCompletedStep int     `gorm:"not null"`
	FailureDate       time.Time
	TotalAttempts     int    `gorm:"not null;default:0"`
	LastError         string `gorm:"size:1000"`
	IsResolved        bool   `gorm:"not null;default:false;index"`
	ResolutionReason  string `gorm:"size:40"`
	ResolvedAt        *time.Time
	ResolvedBy        string `gorm:"size:64"`
	Version           int    `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (DunningRunModel) TableName() string {
	return constants.TableDunningRuns
}
