package usecases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/shared/logger"
)

const suspensionPauseReason = "dunning_suspended"

// stepDeps are the collaborators a step touches inside its transaction.
type stepDeps struct {
	paymentScheduleRepo billing.PaymentScheduleRepository
	retryScheduleRepo   retry.ScheduleRepository
	outboxRepo          outbox.Repository
	links               LinkIssuer
	contactText         string
	logger              logger.Interface
}

// stepExecution applies one step to a run. It only changes persisted state
// and enqueues outbox tasks; messages and events leave after commit. Every
// task key is derived from run, step and kind, so re-running a failed step
// never duplicates a side effect.
type stepExecution struct {
	ctx   context.Context
	deps  *stepDeps
	run   *dunning.Run
	step  dunning.Step
	index int
	now   time.Time

	schedule     *billing.PaymentSchedule
	scheduleRead bool
	resolution   dunning.ResolutionReason
}

var _ dunning.ActionVisitor = (*stepExecution)(nil)

func (e *stepExecution) VisitRetryPayment(a dunning.RetryPayment) error {
	if err := e.countAttempt(); err != nil {
		return err
	}
	if a.NotifyEmail {
		return e.enqueueEmail(outbox.TemplateRetryNotice, nil)
	}
	return nil
}

func (e *stepExecution) VisitRetryPaymentAndNotify(a dunning.RetryPaymentAndNotify) error {
	if err := e.countAttempt(); err != nil {
		return err
	}
	if e.step.HasChannel(dunning.ChannelEmail) {
		if err := e.enqueueEmail(outbox.TemplateRetryNotice, nil); err != nil {
			return err
		}
	}

	template := outbox.TemplateContactSMS
	var extra map[string]string
	if a.IncludePaymentLink {
		if link := e.issueLink(); link != nil {
			template = outbox.TemplatePaymentLinkSMS
			extra = map[string]string{"payment_link": link.URL}
		}
	}
	return e.enqueueSMS(template, extra)
}

func (e *stepExecution) VisitSuspend(dunning.Suspend) error {
	ps, err := e.paymentSchedule()
	if err != nil {
		return err
	}
	if ps != nil {
		if !ps.Pause(suspensionPauseReason, e.now) {
			e.deps.logger.Warnw("payment schedule not active at suspension",
				"payment_schedule_id", ps.ID(),
				"status", ps.Status(),
			)
		}
		e.markStep(ps)
		if err := e.deps.paymentScheduleRepo.Update(e.ctx, ps); err != nil {
			return fmt.Errorf("failed to pause payment schedule: %w", err)
		}
	}

	if err := e.enqueue(outbox.KindNotifySuspension, "suspension", outbox.Suspension{
		SubscriptionID: e.run.SubscriptionID(),
		Reason:         string(dunning.ResolutionSuspended),
		EffectiveDate:  e.now,
	}); err != nil {
		return err
	}
	for _, t := range []events.Type{events.SubscriptionSuspended, events.CommissionCancelRecurring} {
		if err := e.enqueueEvent(t, string(dunning.ResolutionSuspended)); err != nil {
			return err
		}
	}

	var extra map[string]string
	if e.step.IncludesPaymentLink() {
		if link := e.issueLink(); link != nil {
			extra = map[string]string{"payment_link": link.URL}
		}
	}
	if e.step.HasChannel(dunning.ChannelEmail) {
		if err := e.enqueueEmail(outbox.TemplateSuspensionNotice, extra); err != nil {
			return err
		}
	}
	if e.step.HasChannel(dunning.ChannelSMS) {
		if err := e.enqueueSMS(outbox.TemplateSuspensionNotice, extra); err != nil {
			return err
		}
	}

	e.resolution = dunning.ResolutionSuspended
	return nil
}

// countAttempt bumps the run counter and stamps the backing schedule with the
// step that ran.
func (e *stepExecution) countAttempt() error {
	e.run.IncrementAttempts()
	ps, err := e.paymentSchedule()
	if err != nil || ps == nil {
		return err
	}
	ps.IncrementRetryCount(e.now)
	e.markStep(ps)
	if err := e.deps.paymentScheduleRepo.Update(e.ctx, ps); err != nil {
		return fmt.Errorf("failed to update payment schedule: %w", err)
	}
	return nil
}

func (e *stepExecution) markStep(ps *billing.PaymentSchedule) {
	ps.SetMetadata(billing.MetaDunningLastStep, strconv.Itoa(e.index), e.now)
	ps.SetMetadata(billing.MetaDunningStepLabel, e.step.Label(), e.now)
	ps.SetMetadata(billing.MetaDunningRunID, e.run.ID(), e.now)
}

// paymentSchedule loads the backing schedule once. A subscription without one
// is not an error; the run still progresses.
func (e *stepExecution) paymentSchedule() (*billing.PaymentSchedule, error) {
	if e.scheduleRead {
		return e.schedule, nil
	}
	e.scheduleRead = true
	var (
		ps  *billing.PaymentSchedule
		err error
	)
	if e.run.PaymentScheduleID() != "" {
		ps, err = e.deps.paymentScheduleRepo.GetByID(e.ctx, e.run.PaymentScheduleID())
	} else {
		ps, err = e.deps.paymentScheduleRepo.FindBySubscription(e.ctx, e.run.OrganizationID(), e.run.SubscriptionID())
	}
	if err != nil {
		return nil, err
	}
	if ps == nil {
		e.deps.logger.Warnw("no payment schedule backs the dunning run",
			"run_id", e.run.ID(),
			"subscription_id", e.run.SubscriptionID(),
		)
	}
	e.schedule = ps
	return ps, nil
}

// issueLink returns nil when the link could not be minted; callers fall back
// to the contact message.
func (e *stepExecution) issueLink() *IssuedLink {
	if e.deps.links == nil {
		return nil
	}
	scheduleID := e.run.PaymentScheduleID()
	if scheduleID == "" {
		scheduleID = e.run.RetryScheduleID()
	}
	link, err := e.deps.links.Issue(e.ctx, e.run.OrganizationID(), e.run.ClientID(), scheduleID)
	if err != nil {
		e.deps.logger.Warnw("payment link creation failed, sending contact message",
			"run_id", e.run.ID(),
			"client_id", e.run.ClientID(),
			"error", err,
		)
		return nil
	}
	return link
}

func (e *stepExecution) enqueueEmail(template string, extra map[string]string) error {
	if e.run.ContactEmail() == "" {
		e.deps.logger.Infow("email skipped, client has no email address", "run_id", e.run.ID(), "step", e.index)
		return nil
	}
	return e.enqueue(outbox.KindEmail, "email", e.message(e.run.ContactEmail(), template, extra))
}

func (e *stepExecution) enqueueSMS(template string, extra map[string]string) error {
	if e.run.ContactPhone() == "" {
		e.deps.logger.Infow("sms skipped, client has no phone number", "run_id", e.run.ID(), "step", e.index)
		return nil
	}
	return e.enqueue(outbox.KindSMS, "sms", e.message(e.run.ContactPhone(), template, extra))
}

func (e *stepExecution) enqueue(kind outbox.Kind, suffix string, payload any) error {
	key := fmt.Sprintf("%s:%d:%s", e.run.ID(), e.index, suffix)
	task, err := outbox.NewTask(e.run.OrganizationID(), kind, key, payload, e.now)
	if err != nil {
		return err
	}
	if _, err := e.deps.outboxRepo.Enqueue(e.ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}
	return nil
}

func (e *stepExecution) enqueueEvent(t events.Type, reason string) error {
	ev := events.New(t, e.run.OrganizationID(), e.run.SubscriptionID(), e.run.ClientID(), reason, e.now)
	ev.Attributes = map[string]string{"dunning_run_id": e.run.ID(), "contract_id": e.run.ContractID()}
	task, err := outbox.NewEventTask(fmt.Sprintf("%s:%d", e.run.ID(), e.index), ev, e.now)
	if err != nil {
		return err
	}
	if _, err := e.deps.outboxRepo.Enqueue(e.ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", t, err)
	}
	return nil
}

func (e *stepExecution) message(recipient, template string, extra map[string]string) outbox.Message {
	data := e.messageData()
	for k, v := range extra {
		data[k] = v
	}
	return outbox.Message{
		Recipient:    recipient,
		TemplateKey:  template,
		Data:         data,
		ClientID:     e.run.ClientID(),
		ScheduleID:   e.run.RetryScheduleID(),
		DunningRunID: e.run.ID(),
		StepIndex:    e.index,
	}
}

func (e *stepExecution) messageData() map[string]string {
	data := map[string]string{
		"subscription_id": e.run.SubscriptionID(),
		"step_label":      e.step.Label(),
		"contact_text":    e.deps.contactText,
	}
	if e.run.RetryScheduleID() == "" {
		return data
	}
	s, err := e.deps.retryScheduleRepo.GetByID(e.ctx, e.run.RetryScheduleID())
	if err != nil {
		e.deps.logger.Warnw("retry schedule unavailable for message", "schedule_id", e.run.RetryScheduleID(), "error", err)
		return data
	}
	data["amount"] = FormatAmount(s.AmountCents(), s.Currency())
	if next := s.NextRetryDate(); next != nil {
		data["next_retry_date"] = next.Format("2006-01-02")
	}
	return data
}

// FormatAmount renders minor units as "12.34 EUR".
func FormatAmount(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}
