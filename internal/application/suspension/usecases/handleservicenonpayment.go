package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/suspension/dto"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

const nonPaymentPauseReason = "service_non_payment"

// Locker serializes billing changes of one client.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type HandleServiceNonPaymentCommand struct {
	OrganizationID string
	ClientID       string
	ContractID     string
	ServiceCode    string
	Reason         string
	Actor          string
	IdempotencyKey string
}

// HandleServiceNonPaymentUseCase reacts to one unpaid service of a client.
// An unpaid bundle anchor costs the other services their bundle discount and
// suspends nothing. Any other unpaid service pauses only its own schedules.
type HandleServiceNonPaymentUseCase struct {
	bundleRepo   billing.BundleRepository
	lineRepo     billing.LineRepository
	invoiceRepo  billing.InvoiceRepository
	scheduleRepo billing.PaymentScheduleRepository
	outboxRepo   outbox.Repository
	txMgr        db.Transactor
	locker       Locker
	ledger       *ledger.Service
	clock        biztime.Clock
	logger       logger.Interface
}

func NewHandleServiceNonPaymentUseCase(
	bundleRepo billing.BundleRepository,
	lineRepo billing.LineRepository,
	invoiceRepo billing.InvoiceRepository,
	scheduleRepo billing.PaymentScheduleRepository,
	outboxRepo outbox.Repository,
	txMgr db.Transactor,
	locker Locker,
	ledgerService *ledger.Service,
	clock biztime.Clock,
	logger logger.Interface,
) *HandleServiceNonPaymentUseCase {
	return &HandleServiceNonPaymentUseCase{
		bundleRepo:   bundleRepo,
		lineRepo:     lineRepo,
		invoiceRepo:  invoiceRepo,
		scheduleRepo: scheduleRepo,
		outboxRepo:   outboxRepo,
		txMgr:        txMgr,
		locker:       locker,
		ledger:       ledgerService,
		clock:        clock,
		logger:       logger.With("component", "suspension"),
	}
}

func (uc *HandleServiceNonPaymentUseCase) Execute(ctx context.Context, cmd HandleServiceNonPaymentCommand) (*dto.NonPaymentResultDTO, error) {
	cmd.ServiceCode = strings.TrimSpace(cmd.ServiceCode)
	if cmd.OrganizationID == "" || cmd.ClientID == "" || cmd.ServiceCode == "" {
		return nil, apperrors.NewValidationError("organization, client and service code are required")
	}
	if cmd.Actor == "" {
		cmd.Actor = audit.SystemActor
	}

	release, err := uc.locker.Acquire(ctx, "client:"+cmd.OrganizationID+":"+cmd.ClientID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &dto.NonPaymentResultDTO{
		Action:               dto.ActionNoAction,
		ServiceCode:          cmd.ServiceCode,
		UpdatedLines:         []*dto.BillingLineDTO{},
		SuspendedScheduleIDs: []string{},
	}
	err = uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		claimed, err := uc.ledger.Claim(ctx, cmd.IdempotencyKey, "service_non_payment")
		if err != nil {
			return err
		}
		if !claimed {
			return apperrors.ErrAlreadyProcessed
		}

		bundle, err := uc.bundleRepo.FindByAnchor(ctx, cmd.OrganizationID, cmd.ServiceCode)
		if err != nil {
			return fmt.Errorf("failed to resolve service bundle: %w", err)
		}
		scope := billing.ClientScope{
			OrganizationID: cmd.OrganizationID,
			ClientID:       cmd.ClientID,
			ContractID:     cmd.ContractID,
		}
		now := uc.clock.Now()
		if bundle != nil {
			return uc.removeBundleDiscount(ctx, cmd, bundle, scope, now, result)
		}
		return uc.suspendService(ctx, cmd, scope, now, result)
	})
	if errors.Is(err, apperrors.ErrAlreadyProcessed) {
		uc.logger.Infow("service non-payment already handled",
			"client_id", cmd.ClientID,
			"service_code", cmd.ServiceCode,
		)
		return &dto.NonPaymentResultDTO{
			Action:               dto.ActionNoAction,
			ServiceCode:          cmd.ServiceCode,
			UpdatedLines:         []*dto.BillingLineDTO{},
			SuspendedScheduleIDs: []string{},
			Duplicate:            true,
		}, nil
	}
	if err != nil {
		uc.logger.Errorw("failed to handle service non-payment",
			"client_id", cmd.ClientID,
			"service_code", cmd.ServiceCode,
			"error", err,
		)
		return nil, fmt.Errorf("failed to handle service non-payment: %w", err)
	}

	uc.logger.Infow("service non-payment handled",
		"client_id", cmd.ClientID,
		"service_code", cmd.ServiceCode,
		"action", result.Action,
		"updated_lines", len(result.UpdatedLines),
		"suspended_schedules", len(result.SuspendedScheduleIDs),
	)
	return result, nil
}

// removeBundleDiscount reverts the client's other discounted lines to catalog
// price and recomputes the open invoices they belong to.
func (uc *HandleServiceNonPaymentUseCase) removeBundleDiscount(ctx context.Context, cmd HandleServiceNonPaymentCommand, bundle *billing.Bundle, scope billing.ClientScope, now time.Time, result *dto.NonPaymentResultDTO) error {
	lines, err := uc.lineRepo.ListActiveByClient(ctx, scope)
	if err != nil {
		return err
	}

	var updated []*billing.Line
	invoiceIDs := map[string]struct{}{}
	for _, l := range lines {
		if bundle.IsAnchor(l.ServiceCode()) || !bundle.Covers(l.ServiceCode()) {
			continue
		}
		before := dto.ToBillingLineDTO(l)
		if !l.RemoveBundleDiscount(now) {
			continue
		}
		if err := uc.lineRepo.Update(ctx, l); err != nil {
			return fmt.Errorf("failed to reprice line %s: %w", l.ID(), err)
		}
		if err := uc.record(ctx, cmd, audit.EntityBillingLine, l.ID(), "remove_bundle_discount", before, dto.ToBillingLineDTO(l)); err != nil {
			return err
		}
		updated = append(updated, l)
		if l.InvoiceID() != "" {
			invoiceIDs[l.InvoiceID()] = struct{}{}
		}
	}
	if len(updated) == 0 {
		return nil
	}

	invoices, err := uc.recomputeInvoices(ctx, cmd, invoiceIDs, now)
	if err != nil {
		return err
	}
	result.Action = dto.ActionBundleDiscountRemoved
	result.UpdatedLines = dto.ToBillingLineDTOs(updated)
	result.RecomputedInvoices = dto.ToInvoiceDTOs(invoices)
	return nil
}

func (uc *HandleServiceNonPaymentUseCase) recomputeInvoices(ctx context.Context, cmd HandleServiceNonPaymentCommand, ids map[string]struct{}, now time.Time) ([]*billing.Invoice, error) {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	out := make([]*billing.Invoice, 0, len(sorted))
	for _, id := range sorted {
		inv, err := uc.invoiceRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if inv.Status() != billing.InvoiceOpen {
			// Settled invoices keep the price they were issued with.
			continue
		}
		lines, err := uc.lineRepo.ListByInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		before := dto.ToInvoiceDTO(inv)
		if err := inv.Recompute(lines, now); err != nil {
			return nil, err
		}
		if err := uc.invoiceRepo.Update(ctx, inv); err != nil {
			return nil, fmt.Errorf("failed to update invoice %s: %w", id, err)
		}
		if err := uc.record(ctx, cmd, audit.EntityInvoice, id, "recompute", before, dto.ToInvoiceDTO(inv)); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// suspendService pauses the client's active schedules of the unpaid service.
// Schedules of other services stay active.
func (uc *HandleServiceNonPaymentUseCase) suspendService(ctx context.Context, cmd HandleServiceNonPaymentCommand, scope billing.ClientScope, now time.Time, result *dto.NonPaymentResultDTO) error {
	schedules, err := uc.scheduleRepo.ListActiveByClient(ctx, scope)
	if err != nil {
		return err
	}
	reason := cmd.Reason
	if reason == "" {
		reason = nonPaymentPauseReason
	}

	for _, s := range schedules {
		if !strings.EqualFold(s.ServiceCode(), cmd.ServiceCode) {
			continue
		}
		before := dto.ToPaymentScheduleDTO(s)
		if !s.Pause(reason, now) {
			continue
		}
		if err := uc.scheduleRepo.Update(ctx, s); err != nil {
			return fmt.Errorf("failed to pause payment schedule %s: %w", s.ID(), err)
		}
		if err := uc.record(ctx, cmd, audit.EntityPaymentSchedule, s.ID(), "pause", before, dto.ToPaymentScheduleDTO(s)); err != nil {
			return err
		}
		if s.SubscriptionID() != "" {
			ev := events.New(events.SubscriptionSuspended, s.OrganizationID(), s.SubscriptionID(), s.ClientID(), reason, now)
			ev.Attributes = map[string]string{"service_code": s.ServiceCode(), "payment_schedule_id": s.ID()}
			task, err := outbox.NewEventTask(fmt.Sprintf("nonpayment:%s:%d", s.ID(), now.Unix()), ev, now)
			if err != nil {
				return err
			}
			if _, err := uc.outboxRepo.Enqueue(ctx, task); err != nil {
				return fmt.Errorf("failed to enqueue suspension event: %w", err)
			}
		}
		result.SuspendedScheduleIDs = append(result.SuspendedScheduleIDs, s.ID())
	}
	if len(result.SuspendedScheduleIDs) > 0 {
		result.Action = dto.ActionSchedulesSuspended
	}
	return nil
}

func (uc *HandleServiceNonPaymentUseCase) record(ctx context.Context, cmd HandleServiceNonPaymentCommand, entity audit.EntityType, entityID, action string, before, after any) error {
	return uc.ledger.Record(ctx, ledger.Transition{
		OrganizationID: cmd.OrganizationID,
		EntityType:     entity,
		EntityID:       entityID,
		Action:         action,
		Actor:          cmd.Actor,
		Before:         before,
		After:          after,
		IdempotencyKey: cmd.IdempotencyKey,
	})
}
