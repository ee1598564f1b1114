package retry

import (
	"fmt"
	"time"

	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/id"
)

// RejectedPayment is the input that opens a schedule.
type RejectedPayment struct {
	OrganizationID   string
	CompanyID        string
	PaymentID        string
	ClientID         string
	ContractID       string
	SubscriptionID   string
	AmountCents      int64
	Currency         string
	RejectionCode    string
	RawRejectionCode string
	RejectedAt       time.Time
	AlreadySettled   bool
}

// Schedule is the retry plan of one rejected payment. It is immutable once
// resolved.
type Schedule struct {
	id                string
	organizationID    string
	companyID         string
	paymentID         string
	clientID          string
	contractID        string
	subscriptionID    string
	policyID          string
	plan              Plan
	amountCents       int64
	currency          string
	rejectionCode     string
	rawRejectionCode  string
	rejectedAt        time.Time
	currentAttempt    int
	nextRetryDate     *time.Time
	eligibility       Eligibility
	awaitingOutcome   bool
	submittedAt       *time.Time
	providerAccountID string
	isResolved        bool
	resolutionReason  ResolutionReason
	resolvedAt        *time.Time
	resolvedBy        string
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

// OpenSchedule classifies the rejection against policy and plans the first
// retry. An ineligible payment yields an already resolved schedule.
func OpenSchedule(in RejectedPayment, policy *Policy, now time.Time) (*Schedule, error) {
	if in.OrganizationID == "" || in.PaymentID == "" {
		return nil, fmt.Errorf("organization and payment are required")
	}
	if policy == nil {
		return nil, fmt.Errorf("retry policy is required")
	}
	rejectedAt := in.RejectedAt
	if rejectedAt.IsZero() {
		rejectedAt = now
	}

	s := &Schedule{
		id:               id.New(id.PrefixRetrySchedule),
		organizationID:   in.OrganizationID,
		companyID:        in.CompanyID,
		paymentID:        in.PaymentID,
		clientID:         in.ClientID,
		contractID:       in.ContractID,
		subscriptionID:   in.SubscriptionID,
		policyID:         policy.ID(),
		plan:             policy.Plan(),
		amountCents:      in.AmountCents,
		currency:         in.Currency,
		rejectionCode:    in.RejectionCode,
		rawRejectionCode: in.RawRejectionCode,
		rejectedAt:       rejectedAt.UTC(),
		eligibility:      policy.Plan().Classify(in.RejectionCode),
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}

	switch {
	case in.AlreadySettled:
		s.eligibility = NotEligiblePaymentSettled
		s.resolve(ResolutionPaymentSettled, "", now)
	case s.eligibility == NotEligibleReasonCode:
		s.resolve(ResolutionNonRetryable, "", now)
	default:
		s.planNext(now)
	}
	return s, nil
}

// ReconstructSchedule rebuilds a schedule from persistence.
func ReconstructSchedule(
	scheduleID, organizationID, companyID, paymentID, clientID, contractID, subscriptionID, policyID string,
	plan Plan,
	amountCents int64, currency string,
	rejectionCode, rawRejectionCode string,
	rejectedAt time.Time,
	currentAttempt int,
	nextRetryDate *time.Time,
	eligibility Eligibility,
	awaitingOutcome bool,
	submittedAt *time.Time,
	providerAccountID string,
	isResolved bool,
	resolutionReason ResolutionReason,
	resolvedAt *time.Time,
	resolvedBy string,
	version int,
	createdAt, updatedAt time.Time,
) *Schedule {
	return &Schedule{
		id:                scheduleID,
		organizationID:    organizationID,
		companyID:         companyID,
		paymentID:         paymentID,
		clientID:          clientID,
		contractID:        contractID,
		subscriptionID:    subscriptionID,
		policyID:          policyID,
		plan:              plan,
		amountCents:       amountCents,
		currency:          currency,
		rejectionCode:     rejectionCode,
		rawRejectionCode:  rawRejectionCode,
		rejectedAt:        rejectedAt,
		currentAttempt:    currentAttempt,
		nextRetryDate:     nextRetryDate,
		eligibility:       eligibility,
		awaitingOutcome:   awaitingOutcome,
		submittedAt:       submittedAt,
		providerAccountID: providerAccountID,
		isResolved:        isResolved,
		resolutionReason:  resolutionReason,
		resolvedAt:        resolvedAt,
		resolvedBy:        resolvedBy,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the retry schedule ID.
func (s *Schedule) ID() string {
	return s.id
}

// OrganizationID returns the organization ID.
func (s *Schedule) OrganizationID() string {
	return s.organizationID
}

// CompanyID returns the company ID.
func (s *Schedule) CompanyID() string {
	return s.companyID
}

// PaymentID returns the payment ID.
func (s *Schedule) PaymentID() string {
	return s.paymentID
}

// ClientID returns the client ID.
func (s *Schedule) ClientID() string {
	return s.clientID
}

// ContractID returns the contract ID.
func (s *Schedule) ContractID() string {
	return s.contractID
}

// SubscriptionID returns the subscription ID.
func (s *Schedule) SubscriptionID() string {
	return s.subscriptionID
}

// PolicyID returns the policy ID.
func (s *Schedule) PolicyID() string {
	return s.policyID
}

// Plan returns the retry schedule plan.
func (s *Schedule) Plan() Plan {
	return s.plan
}

// AmountCents returns the amount in cents.
func (s *Schedule) AmountCents() int64 {
	return s.amountCents
}

// Currency returns the retry schedule currency.
func (s *Schedule) Currency() string {
	return s.currency
}

// RejectionCode returns the rejection code.
func (s *Schedule) RejectionCode() string {
	return s.rejectionCode
}

// RawRejectionCode returns the raw rejection code.
func (s *Schedule) RawRejectionCode() string {
	return s.rawRejectionCode
}

// RejectedAt returns when the original payment was rejected.
func (s *Schedule) RejectedAt() time.Time {
	return s.rejectedAt
}

// CurrentAttempt returns the current attempt.
func (s *Schedule) CurrentAttempt() int {
	return s.currentAttempt
}

// MaxAttempts returns the max attempts.
func (s *Schedule) MaxAttempts() int {
	return s.plan.MaxAttempts
}

// NextRetryDate returns the date the next retry is due, or nil when none is planned.
func (s *Schedule) NextRetryDate() *time.Time {
	return s.nextRetryDate
}

// Eligibility returns the retry schedule eligibility.
func (s *Schedule) Eligibility() Eligibility {
	return s.eligibility
}

// AwaitingOutcome reports whether a submitted retry has no outcome yet.
func (s *Schedule) AwaitingOutcome() bool {
	return s.awaitingOutcome
}

// SubmittedAt returns when the retry schedule was submitted, or nil.
func (s *Schedule) SubmittedAt() *time.Time {
	return s.submittedAt
}

// ProviderAccountID returns the provider account ID.
func (s *Schedule) ProviderAccountID() string {
	return s.providerAccountID
}

// IsResolved reports whether the retry schedule is resolved.
func (s *Schedule) IsResolved() bool {
	return s.isResolved
}

// ResolutionReason returns the resolution reason.
func (s *Schedule) ResolutionReason() ResolutionReason {
	return s.resolutionReason
}

// ResolvedAt returns when the retry schedule was resolved, or nil.
func (s *Schedule) ResolvedAt() *time.Time {
	return s.resolvedAt
}

// ResolvedBy returns the resolved by.
func (s *Schedule) ResolvedBy() string {
	return s.resolvedBy
}

// Version returns the optimistic lock version.
func (s *Schedule) Version() int {
	return s.version
}

// CreatedAt returns when the retry schedule was created.
func (s *Schedule) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the retry schedule was last updated.
func (s *Schedule) UpdatedAt() time.Time {
	return s.updatedAt
}

// IsDue reports whether the sweep should submit a retry now.
func (s *Schedule) IsDue(now time.Time) bool {
	return !s.isResolved &&
		s.eligibility == Eligible &&
		!s.awaitingOutcome &&
		s.nextRetryDate != nil &&
		!s.nextRetryDate.After(now)
}

// MarkSubmitted records that a retry was handed to a provider and an outcome
// is pending. No other submission happens until the outcome is recorded.
func (s *Schedule) MarkSubmitted(providerAccountID string, now time.Time) error {
	if s.isResolved {
		return apperrors.ErrScheduleResolved
	}
	if !s.IsDue(now) {
		return fmt.Errorf("schedule %s is not due", s.id)
	}
	s.awaitingOutcome = true
	s.submittedAt = &now
	s.providerAccountID = providerAccountID
	s.touch(now)
	return nil
}

// OutcomeKind classifies the result of a retry execution.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "SUCCEEDED"
	OutcomeRejected  OutcomeKind = "REJECTED"
	// OutcomeExecutionError means the retry could not even be submitted.
	OutcomeExecutionError OutcomeKind = "EXECUTION_ERROR"
)

type Outcome struct {
	Kind          OutcomeKind
	RejectionCode string
	ProviderRef   string
	ErrorMessage  string
	AttemptedAt   time.Time
}

// RecordOutcome applies one execution result and returns the attempt to
// persist. Execution errors are recorded without consuming an attempt.
func (s *Schedule) RecordOutcome(o Outcome, now time.Time) (*Attempt, error) {
	if s.isResolved {
		return nil, apperrors.ErrScheduleResolved
	}
	attemptedAt := o.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = now
	}

	a := &Attempt{
		id:                id.New(id.PrefixRetryAttempt),
		scheduleID:        s.id,
		attemptNumber:     s.currentAttempt + 1,
		providerAccountID: s.providerAccountID,
		providerRef:       o.ProviderRef,
		rejectionCode:     o.RejectionCode,
		errorMessage:      o.ErrorMessage,
		attemptedAt:       attemptedAt,
	}
	s.awaitingOutcome = false
	s.submittedAt = nil

	switch o.Kind {
	case OutcomeSucceeded:
		a.status = AttemptSucceeded
		s.resolve(ResolutionPaymentSucceeded, "", now)
	case OutcomeRejected:
		a.status = AttemptFailed
		s.currentAttempt++
		if o.RejectionCode != "" {
			s.rejectionCode = o.RejectionCode
		}
		s.advanceAfterFailure(now)
	case OutcomeExecutionError:
		a.status = AttemptExecutionError
		s.touch(now)
	default:
		return nil, fmt.Errorf("unknown outcome kind: %s", o.Kind)
	}
	return a, nil
}

func (s *Schedule) advanceAfterFailure(now time.Time) {
	if s.plan.Classify(s.rejectionCode) == NotEligibleReasonCode {
		s.eligibility = NotEligibleReasonCode
		s.resolve(ResolutionNonRetryable, "", now)
		return
	}
	if s.currentAttempt >= s.plan.MaxAttempts {
		s.eligibility = NotEligibleMaxAttempts
		s.resolve(ResolutionMaxAttempts, "", now)
		return
	}
	s.planNext(now)
}

// planNext schedules the retry indexed by currentAttempt or resolves the
// schedule as exhausted.
func (s *Schedule) planNext(now time.Time) {
	days, ok := s.plan.DelayFor(s.currentAttempt)
	if !ok {
		s.eligibility = NotEligibleMaxAttempts
		s.resolve(ResolutionExhausted, "", now)
		return
	}
	next := biztime.AddDays(s.rejectedAt, days)
	s.nextRetryDate = &next
	s.touch(now)
}

// ApplySignal revises eligibility for an external event. It returns false when
// the policy does not stop on that signal.
func (s *Schedule) ApplySignal(sig Signal, now time.Time) (bool, error) {
	if s.isResolved {
		return false, apperrors.ErrScheduleResolved
	}
	if !sig.Valid() {
		return false, fmt.Errorf("unknown signal: %s", sig)
	}
	if !s.plan.Stop.stops(sig) {
		return false, nil
	}
	eligibility, reason := sig.outcome()
	s.eligibility = eligibility
	s.resolve(reason, "", now)
	return true, nil
}

// Cancel is the operator's manual stop.
func (s *Schedule) Cancel(actor string, now time.Time) error {
	if s.isResolved {
		return apperrors.ErrScheduleResolved
	}
	s.eligibility = NotEligibleManualCancel
	s.resolve(ResolutionManualCancel, actor, now)
	return nil
}

// Resolve ends the schedule with reason.
func (s *Schedule) Resolve(reason ResolutionReason, actor string, now time.Time) error {
	if s.isResolved {
		return apperrors.ErrScheduleResolved
	}
	s.resolve(reason, actor, now)
	return nil
}

func (s *Schedule) resolve(reason ResolutionReason, actor string, now time.Time) {
	s.isResolved = true
	s.resolutionReason = reason
	s.resolvedAt = &now
	s.resolvedBy = actor
	s.nextRetryDate = nil
	s.awaitingOutcome = false
	s.submittedAt = nil
	s.touch(now)
}

func (s *Schedule) touch(now time.Time) {
	s.updatedAt = now
}

// SetVersion is called by the repository after an optimistic update.
func (s *Schedule) SetVersion(v int) { s.version = v }
