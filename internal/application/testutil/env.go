// Package testutil wires the application layer against an in-memory sqlite
// database so use cases run against real repositories in tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/paymentlink"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/infrastructure/lock"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/infrastructure/repository"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

// Day0 is the reference failure date of scenario tests.
var Day0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Env holds one database and every repository built on it.
type Env struct {
	DB      *gorm.DB
	Tx      *db.TransactionManager
	Clock   *biztime.ManualClock
	Logger  logger.Interface
	Metrics *metrics.Engine
	Locker  lock.Locker
	Ledger  *ledger.Service

	Rules     routing.RuleRepository
	Overrides routing.OverrideRepository
	Decisions routing.DecisionLogRepository

	Policies  retry.PolicyRepository
	Schedules retry.ScheduleRepository
	Attempts  retry.AttemptRepository
	Reminders retry.ReminderRepository

	Configs dunning.ConfigRepository
	Runs    dunning.RunRepository

	PaymentSchedules billing.PaymentScheduleRepository
	Lines            billing.LineRepository
	Invoices         billing.InvoiceRepository
	Bundles          billing.BundleRepository

	Audit       audit.Repository
	Idempotency audit.IdempotencyRepository
	Alerts      alert.Repository
	Outbox      outbox.Repository
	Links       paymentlink.Repository
}

// NewEnv opens a fresh database with the clock set to Day0.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	gdb, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(models.All()...))

	log := logger.NewNop()
	clock := biztime.NewManualClock(Day0)
	e := &Env{
		DB:      gdb,
		Tx:      db.NewTransactionManager(gdb),
		Clock:   clock,
		Logger:  log,
		Metrics: metrics.New(),
		Locker:  lock.NewLocalLocker(),

		Rules:     repository.NewRoutingRuleRepository(gdb, log),
		Overrides: repository.NewProviderOverrideRepository(gdb, log),
		Decisions: repository.NewRoutingDecisionRepository(gdb),

		Policies:  repository.NewRetryPolicyRepository(gdb, log),
		Schedules: repository.NewRetryScheduleRepository(gdb, log),
		Attempts:  repository.NewRetryAttemptRepository(gdb),
		Reminders: repository.NewReminderRepository(gdb),

		Configs: repository.NewDunningConfigRepository(gdb, log),
		Runs:    repository.NewDunningRunRepository(gdb, log),

		PaymentSchedules: repository.NewPaymentScheduleRepository(gdb),
		Lines:            repository.NewBillingLineRepository(gdb),
		Invoices:         repository.NewInvoiceRepository(gdb),
		Bundles:          repository.NewServiceBundleRepository(gdb),

		Audit:       repository.NewAuditRepository(gdb),
		Idempotency: repository.NewIdempotencyRepository(gdb),
		Alerts:      repository.NewAlertRepository(gdb),
		Outbox:      repository.NewSideEffectRepository(gdb),
		Links:       repository.NewPaymentLinkRepository(gdb),
	}
	e.Ledger = ledger.NewService(e.Audit, e.Idempotency, e.Alerts, clock, log)
	return e
}

// Ctx is a background context for tests.
func (e *Env) Ctx() context.Context {
	return context.Background()
}

// SeedPolicy stores an organization-wide default retry policy.
func (e *Env) SeedPolicy(t *testing.T, organizationID string, plan retry.Plan) *retry.Policy {
	t.Helper()
	p, err := retry.NewPolicy(retry.Scope{OrganizationID: organizationID}, "standard", plan, true)
	require.NoError(t, err)
	require.NoError(t, e.Policies.Create(e.Ctx(), p))
	return p
}

// SeedConfig stores an organization-wide default dunning config.
func (e *Env) SeedConfig(t *testing.T, organizationID string, steps ...dunning.Step) *dunning.Config {
	t.Helper()
	cfg, err := dunning.NewConfig(organizationID, "", "standard", steps, true)
	require.NoError(t, err)
	require.NoError(t, e.Configs.Create(e.Ctx(), cfg))
	return cfg
}

// Step builds a dunning step or fails the test.
func Step(t *testing.T, delayDays int, kind dunning.ActionKind, channels []dunning.Channel, includeLink bool, label string) dunning.Step {
	t.Helper()
	s, err := dunning.NewStep(delayDays, kind, channels, includeLink, label)
	require.NoError(t, err)
	return s
}

// SeedPaymentSchedule stores an active billing schedule for a subscription.
func (e *Env) SeedPaymentSchedule(t *testing.T, scheduleID, organizationID, clientID, contractID, subscriptionID, serviceCode string) *billing.PaymentSchedule {
	t.Helper()
	ps, err := billing.NewPaymentSchedule(scheduleID, organizationID, clientID, contractID, subscriptionID, serviceCode, e.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.PaymentSchedules.Create(e.Ctx(), ps))
	return ps
}

// PendingTasks returns the outbox tasks whose dedup key starts with prefix.
func (e *Env) PendingTasks(t *testing.T, prefix string) []*outbox.Task {
	t.Helper()
	tasks, err := e.Outbox.ListByDedupPrefix(e.Ctx(), prefix)
	require.NoError(t, err)
	return tasks
}
