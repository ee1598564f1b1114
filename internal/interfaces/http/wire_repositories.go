package http

import (
	"gorm.io/gorm"

	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/paymentlink"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/repository"
	"github.com/payops/payops/internal/shared/logger"
)

// repositories holds all repository instances used by the container.
// Policy, config and rule repositories are replaced by their cached
// decorators once Redis is available.
type repositories struct {
	ruleRepo     routing.RuleRepository
	overrideRepo routing.OverrideRepository
	decisionRepo routing.DecisionLogRepository

	policyRepo   retry.PolicyRepository
	scheduleRepo retry.ScheduleRepository
	attemptRepo  retry.AttemptRepository
	reminderRepo retry.ReminderRepository

	configRepo dunning.ConfigRepository
	runRepo    dunning.RunRepository

	paymentScheduleRepo billing.PaymentScheduleRepository
	lineRepo            billing.LineRepository
	invoiceRepo         billing.InvoiceRepository
	bundleRepo          billing.BundleRepository

	auditRepo       audit.Repository
	idempotencyRepo audit.IdempotencyRepository
	alertRepo       alert.Repository
	outboxRepo      outbox.Repository
	linkRepo        paymentlink.Repository
}

// newRepositories creates all repository instances from the database connection.
func newRepositories(db *gorm.DB, log logger.Interface) *repositories {
	return &repositories{
		ruleRepo:     repository.NewRoutingRuleRepository(db, log),
		overrideRepo: repository.NewProviderOverrideRepository(db, log),
		decisionRepo: repository.NewRoutingDecisionRepository(db),

		policyRepo:   repository.NewRetryPolicyRepository(db, log),
		scheduleRepo: repository.NewRetryScheduleRepository(db, log),
		attemptRepo:  repository.NewRetryAttemptRepository(db),
		reminderRepo: repository.NewReminderRepository(db),

		configRepo: repository.NewDunningConfigRepository(db, log),
		runRepo:    repository.NewDunningRunRepository(db, log),

		paymentScheduleRepo: repository.NewPaymentScheduleRepository(db),
		lineRepo:            repository.NewBillingLineRepository(db),
		invoiceRepo:         repository.NewInvoiceRepository(db),
		bundleRepo:          repository.NewServiceBundleRepository(db),

		auditRepo:       repository.NewAuditRepository(db),
		idempotencyRepo: repository.NewIdempotencyRepository(db),
		alertRepo:       repository.NewAlertRepository(db),
		outboxRepo:      repository.NewSideEffectRepository(db),
		linkRepo:        repository.NewPaymentLinkRepository(db),
	}
}
