package dunning

import (
	"fmt"
	"time"

	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/id"
)

type ResolutionReason string

const (
	ResolutionPaymentSucceeded ResolutionReason = "PAYMENT_SUCCEEDED"
	// ResolutionSuspended is the reason name downstream consumers already know.
	ResolutionSuspended      ResolutionReason = "ABONNEMENT_SUSPENDED"
	ResolutionConfigNotFound ResolutionReason = "CONFIG_NOT_FOUND"
	ResolutionStepsExhausted ResolutionReason = "STEPS_EXHAUSTED"
	ResolutionManualCancel   ResolutionReason = "MANUAL_CANCEL"
)

// NotStarted is the lastCompletedStep of a run that executed nothing yet.
const NotStarted = -1

// Failure is a subscription payment-failure event.
type Failure struct {
	OrganizationID    string
	CompanyID         string
	SubscriptionID    string
	ClientID          string
	ContractID        string
	PaymentScheduleID string
	RetryScheduleID   string
	ContactEmail      string
	ContactPhone      string
	FailedAt          time.Time
}

func (f Failure) validate() error {
	if f.OrganizationID == "" || f.SubscriptionID == "" {
		return fmt.Errorf("organization and subscription are required")
	}
	return nil
}

// Run is the durable dunning state of one subscription.
type Run struct {
	id                string
	organizationID    string
	companyID         string
	subscriptionID    string
	clientID          string
	contractID        string
	paymentScheduleID string
	retryScheduleID   string
	configID          string
	contactEmail      string
	contactPhone      string
	lastCompletedStep int
	failureDate       time.Time
	totalAttempts     int
	lastError         string
	isResolved        bool
	resolutionReason  ResolutionReason
	resolvedAt        *time.Time
	resolvedBy        string
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

// OpenRun starts a run at J0 = now for cfg.
func OpenRun(f Failure, cfg *Config, now time.Time) (*Run, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("dunning config is required")
	}
	r := newRun(f, now)
	r.configID = cfg.ID()
	return r, nil
}

// OpenAbandonedRun records a failure that no config covers. The run is
// resolved immediately so the event stays traceable.
func OpenAbandonedRun(f Failure, now time.Time) (*Run, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	r := newRun(f, now)
	r.resolve(ResolutionConfigNotFound, "", now)
	return r, nil
}

func newRun(f Failure, now time.Time) *Run {
	return &Run{
		id:                id.New(id.PrefixDunningRun),
		organizationID:    f.OrganizationID,
		companyID:         f.CompanyID,
		subscriptionID:    f.SubscriptionID,
		clientID:          f.ClientID,
		contractID:        f.ContractID,
		paymentScheduleID: f.PaymentScheduleID,
		retryScheduleID:   f.RetryScheduleID,
		contactEmail:      f.ContactEmail,
		contactPhone:      f.ContactPhone,
		lastCompletedStep: NotStarted,
		failureDate:       now,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}
}

func ReconstructRun(
	runID, organizationID, companyID, subscriptionID, clientID, contractID string,
	paymentScheduleID, retryScheduleID, configID string,
	contactEmail, contactPhone string,
	lastCompletedStep int,
	failureDate time.Time,
	totalAttempts int,
	lastError string,
	isResolved bool,
	resolutionReason ResolutionReason,
	resolvedAt *time.Time,
	resolvedBy string,
	version int,
	createdAt, updatedAt time.Time,
) *Run {
	return &Run{
		id:                runID,
		organizationID:    organizationID,
		companyID:         companyID,
		subscriptionID:    subscriptionID,
		clientID:          clientID,
		contractID:        contractID,
		paymentScheduleID: paymentScheduleID,
		retryScheduleID:   retryScheduleID,
		configID:          configID,
		contactEmail:      contactEmail,
		contactPhone:      contactPhone,
		lastCompletedStep: lastCompletedStep,
		failureDate:       failureDate,
		totalAttempts:     totalAttempts,
		lastError:         lastError,
		isResolved:        isResolved,
		resolutionReason:  resolutionReason,
		resolvedAt:        resolvedAt,
		resolvedBy:        resolvedBy,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the dunning run ID.
func (r *Run) ID() string {
	return r.id
}

// OrganizationID returns the organization ID.
func (r *Run) OrganizationID() string {
	return r.organizationID
}

// CompanyID returns the company ID.
func (r *Run) CompanyID() string {
	return r.companyID
}

// SubscriptionID returns the subscription ID.
func (r *Run) SubscriptionID() string {
	return r.subscriptionID
}

// ClientID returns the client ID.
func (r *Run) ClientID() string {
	return r.clientID
}

// ContractID returns the contract ID.
func (r *Run) ContractID() string {
	return r.contractID
}

// PaymentScheduleID returns the payment schedule ID.
func (r *Run) PaymentScheduleID() string {
	return r.paymentScheduleID
}

// RetryScheduleID returns the retry schedule ID.
func (r *Run) RetryScheduleID() string {
	return r.retryScheduleID
}

// ConfigID returns the config ID.
func (r *Run) ConfigID() string {
	return r.configID
}

// ContactEmail returns the contact email.
func (r *Run) ContactEmail() string {
	return r.contactEmail
}

// ContactPhone returns the contact phone.
func (r *Run) ContactPhone() string {
	return r.contactPhone
}

// LastCompletedStep returns the index of the last executed step, -1 before the first.
func (r *Run) LastCompletedStep() int {
	return r.lastCompletedStep
}

// FailureDate returns the failure date.
func (r *Run) FailureDate() time.Time {
	return r.failureDate
}

// TotalAttempts returns the total attempts.
func (r *Run) TotalAttempts() int {
	return r.totalAttempts
}

// LastError returns the last error.
func (r *Run) LastError() string {
	return r.lastError
}

// IsResolved reports whether the dunning run is resolved.
func (r *Run) IsResolved() bool {
	return r.isResolved
}

// ResolutionReason returns the resolution reason.
func (r *Run) ResolutionReason() ResolutionReason {
	return r.resolutionReason
}

// ResolvedAt returns when the dunning run was resolved, or nil.
func (r *Run) ResolvedAt() *time.Time {
	return r.resolvedAt
}

// ResolvedBy returns the resolved by.
func (r *Run) ResolvedBy() string {
	return r.resolvedBy
}

// Version returns the optimistic lock version.
func (r *Run) Version() int {
	return r.version
}

// CreatedAt returns when the dunning run was created.
func (r *Run) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt returns when the dunning run was last updated.
func (r *Run) UpdatedAt() time.Time {
	return r.updatedAt
}

// NextStepIndex is the only step the run may execute next.
func (r *Run) NextStepIndex() int {
	return r.lastCompletedStep + 1
}

// DueDate returns when step index of cfg becomes due for this run.
func (r *Run) DueDate(cfg *Config, index int) (time.Time, bool) {
	step, ok := cfg.Step(index)
	if !ok {
		return time.Time{}, false
	}
	return biztime.AddDays(r.failureDate, step.DelayDays()), true
}

// PendingStep returns the next step and whether it is due at now.
func (r *Run) PendingStep(cfg *Config, now time.Time) (Step, int, bool) {
	idx := r.NextStepIndex()
	step, ok := cfg.Step(idx)
	if !ok || r.isResolved {
		return Step{}, idx, false
	}
	due, _ := r.DueDate(cfg, idx)
	return step, idx, !due.After(now)
}

// StepsExhausted reports that every step ran without closing the run.
func (r *Run) StepsExhausted(cfg *Config) bool {
	return !r.isResolved && r.NextStepIndex() >= cfg.StepCount()
}

// CompleteStep advances the run by exactly one step.
func (r *Run) CompleteStep(index int, now time.Time) error {
	if r.isResolved {
		return apperrors.ErrRunResolved
	}
	if index != r.lastCompletedStep+1 {
		return fmt.Errorf("step %d cannot complete after step %d", index, r.lastCompletedStep)
	}
	r.lastCompletedStep = index
	r.lastError = ""
	r.updatedAt = now
	return nil
}

func (r *Run) IncrementAttempts() {
	r.totalAttempts++
}

// RecordFailure keeps the last execution error for operators. The step index
// does not move.
func (r *Run) RecordFailure(err error, now time.Time) {
	r.lastError = err.Error()
	r.updatedAt = now
}

// AttachRetrySchedule links the latest rejected payment's schedule.
func (r *Run) AttachRetrySchedule(scheduleID string, now time.Time) {
	if scheduleID != "" && scheduleID != r.retryScheduleID {
		r.retryScheduleID = scheduleID
		r.updatedAt = now
	}
}

func (r *Run) Resolve(reason ResolutionReason, actor string, now time.Time) error {
	if r.isResolved {
		return apperrors.ErrRunResolved
	}
	r.resolve(reason, actor, now)
	return nil
}

func (r *Run) resolve(reason ResolutionReason, actor string, now time.Time) {
	r.isResolved = true
	r.resolutionReason = reason
	r.resolvedAt = &now
	r.resolvedBy = actor
	r.updatedAt = now
}

// SetVersion is called by the repository after an optimistic update.
func (r *Run) SetVersion(v int) { r.version = v }
