package retry

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

var day0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestPolicy(t *testing.T, plan Plan) *Policy {
	t.Helper()
	p, err := NewPolicy(Scope{OrganizationID: "org_1"}, "default", plan, true)
	require.NoError(t, err)
	return p
}

func standardPlan() Plan {
	return Plan{
		RetryDelaysDays:   []int{2, 5, 10},
		MaxAttempts:       3,
		MaxTotalDays:      30,
		NonRetryableCodes: []string{"AC04", "MD07"},
		Stop:              StopConditions{OnSettlement: true, OnContractCancel: true, OnMandateRevocation: true},
	}
}

func rejected(code string) RejectedPayment {
	return RejectedPayment{
		OrganizationID: "org_1",
		CompanyID:      "co_1",
		PaymentID:      "pay_1",
		ClientID:       "cl_1",
		SubscriptionID: "sub_1",
		RejectionCode:  code,
		RejectedAt:     day0,
	}
}

func at(days int) time.Time { return biztime.AddDays(day0, days) }

func TestSchedule_ScenarioA(t *testing.T) {
	require.NoError(t, biztime.Init("UTC"))
	s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)

	assert.Equal(t, Eligible, s.Eligibility())
	assert.Equal(t, 0, s.CurrentAttempt())
	require.NotNil(t, s.NextRetryDate())
	assert.Equal(t, at(2), *s.NextRetryDate())
	assert.False(t, s.IsDue(at(1)))
	assert.True(t, s.IsDue(at(2)))

	require.NoError(t, s.MarkSubmitted("acct_1", at(2)))
	assert.False(t, s.IsDue(at(3)), "awaiting outcome must not be resubmitted")

	a, err := s.RecordOutcome(Outcome{Kind: OutcomeRejected, RejectionCode: "AM04"}, at(2))
	require.NoError(t, err)
	assert.Equal(t, AttemptFailed, a.Status())
	assert.Equal(t, 1, a.AttemptNumber())
	assert.Equal(t, 1, s.CurrentAttempt())
	assert.Equal(t, at(5), *s.NextRetryDate())

	require.NoError(t, s.MarkSubmitted("acct_1", at(5)))
	a, err = s.RecordOutcome(Outcome{Kind: OutcomeSucceeded, ProviderRef: "tx_9"}, at(5))
	require.NoError(t, err)
	assert.Equal(t, AttemptSucceeded, a.Status())
	assert.True(t, s.IsResolved())
	assert.Equal(t, ResolutionPaymentSucceeded, s.ResolutionReason())
	assert.Nil(t, s.NextRetryDate())
}

func TestSchedule_NonRetryableCodeResolvesAtOpen(t *testing.T) {
	s, err := OpenSchedule(rejected("md07"), newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)
	assert.Equal(t, NotEligibleReasonCode, s.Eligibility())
	assert.True(t, s.IsResolved())
	assert.Equal(t, ResolutionNonRetryable, s.ResolutionReason())
	assert.Nil(t, s.NextRetryDate())
}

func TestSchedule_RetryableAllowList(t *testing.T) {
	plan := standardPlan()
	plan.RetryableCodes = []string{"AM04"}
	s, err := OpenSchedule(rejected("MS03"), newTestPolicy(t, plan), day0)
	require.NoError(t, err)
	assert.Equal(t, NotEligibleReasonCode, s.Eligibility())
}

func TestSchedule_SettledAtOpen(t *testing.T) {
	in := rejected("AM04")
	in.AlreadySettled = true
	s, err := OpenSchedule(in, newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)
	assert.Equal(t, NotEligiblePaymentSettled, s.Eligibility())
	assert.True(t, s.IsResolved())
}

func TestSchedule_ExecutionErrorDoesNotAdvance(t *testing.T) {
	s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)
	next := *s.NextRetryDate()

	require.NoError(t, s.MarkSubmitted("acct_1", at(2)))
	a, err := s.RecordOutcome(Outcome{Kind: OutcomeExecutionError, ErrorMessage: "provider timeout"}, at(2))
	require.NoError(t, err)

	assert.Equal(t, AttemptExecutionError, a.Status())
	assert.Equal(t, 0, s.CurrentAttempt())
	assert.Equal(t, next, *s.NextRetryDate())
	assert.True(t, s.IsDue(at(2)), "next sweep retries the same attempt")
}

func TestSchedule_MaxAttemptsResolves(t *testing.T) {
	s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)

	for i, d := range []int{2, 5, 10} {
		require.NoError(t, s.MarkSubmitted("acct_1", at(d)), "attempt %d", i)
		_, err := s.RecordOutcome(Outcome{Kind: OutcomeRejected, RejectionCode: "AM04"}, at(d))
		require.NoError(t, err)
	}

	assert.True(t, s.IsResolved())
	assert.Equal(t, 3, s.CurrentAttempt())
	assert.Equal(t, NotEligibleMaxAttempts, s.Eligibility())
	assert.Equal(t, ResolutionMaxAttempts, s.ResolutionReason())
	assert.Nil(t, s.NextRetryDate())
}

func TestSchedule_MaxTotalDaysExhausts(t *testing.T) {
	plan := standardPlan()
	plan.MaxTotalDays = 6
	s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, plan), day0)
	require.NoError(t, err)

	for _, d := range []int{2, 5} {
		require.NoError(t, s.MarkSubmitted("acct_1", at(d)))
		_, err := s.RecordOutcome(Outcome{Kind: OutcomeRejected}, at(d))
		require.NoError(t, err)
	}
	assert.True(t, s.IsResolved())
	assert.Equal(t, ResolutionExhausted, s.ResolutionReason())
	assert.Equal(t, 2, s.CurrentAttempt())
}

func TestSchedule_NewNonRetryableCodeOnRetry(t *testing.T) {
	s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)
	require.NoError(t, s.MarkSubmitted("acct_1", at(2)))
	_, err = s.RecordOutcome(Outcome{Kind: OutcomeRejected, RejectionCode: "AC04"}, at(2))
	require.NoError(t, err)
	assert.Equal(t, ResolutionNonRetryable, s.ResolutionReason())
	assert.Equal(t, "AC04", s.RejectionCode())
}

func TestSchedule_Signals(t *testing.T) {
	tests := []struct {
		name       string
		stop       StopConditions
		signal     Signal
		wantStop   bool
		wantReason ResolutionReason
	}{
		{"settlement stops", StopConditions{OnSettlement: true}, SignalPaymentSettled, true, ResolutionPaymentSettled},
		{"settlement ignored", StopConditions{}, SignalPaymentSettled, false, ""},
		{"contract cancel", StopConditions{OnContractCancel: true}, SignalContractCancelled, true, ResolutionContractCancelled},
		{"mandate revoked ignored", StopConditions{OnSettlement: true}, SignalMandateRevoked, false, ""},
		{"client blocked always stops", StopConditions{}, SignalClientBlocked, true, ResolutionClientBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := standardPlan()
			plan.Stop = tt.stop
			s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, plan), day0)
			require.NoError(t, err)

			stopped, err := s.ApplySignal(tt.signal, at(1))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStop, stopped)
			assert.Equal(t, tt.wantStop, s.IsResolved())
			if tt.wantStop {
				assert.Equal(t, tt.wantReason, s.ResolutionReason())
				assert.Nil(t, s.NextRetryDate())
			}
		})
	}
}

func TestSchedule_ResolvedIsImmutable(t *testing.T) {
	s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, standardPlan()), day0)
	require.NoError(t, err)
	require.NoError(t, s.Cancel("ops@example.com", at(1)))
	assert.Equal(t, NotEligibleManualCancel, s.Eligibility())
	assert.Equal(t, "ops@example.com", s.ResolvedBy())

	_, err = s.RecordOutcome(Outcome{Kind: OutcomeSucceeded}, at(2))
	assert.ErrorIs(t, err, apperrors.ErrScheduleResolved)
	assert.ErrorIs(t, s.Cancel("x", at(2)), apperrors.ErrScheduleResolved)
	assert.ErrorIs(t, s.MarkSubmitted("acct", at(2)), apperrors.ErrScheduleResolved)
	_, err = s.ApplySignal(SignalClientBlocked, at(2))
	assert.ErrorIs(t, err, apperrors.ErrScheduleResolved)
	assert.Equal(t, ResolutionManualCancel, s.ResolutionReason())
}

func TestSchedule_InvariantsUnderRandomOutcomes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	kinds := []OutcomeKind{OutcomeRejected, OutcomeRejected, OutcomeExecutionError, OutcomeSucceeded}

	for i := range 300 {
		n := 1 + rng.IntN(5)
		delays := make([]int, n)
		prev := 0
		for j := range delays {
			prev += 1 + rng.IntN(6)
			delays[j] = prev
		}
		plan := Plan{RetryDelaysDays: delays, MaxAttempts: 1 + rng.IntN(6), MaxTotalDays: rng.IntN(40)}
		s, err := OpenSchedule(rejected("AM04"), newTestPolicy(t, plan), day0)
		require.NoError(t, err)

		for step := 0; step < 20 && !s.IsResolved(); step++ {
			_, err := s.RecordOutcome(Outcome{Kind: kinds[rng.IntN(len(kinds))]}, at(step))
			require.NoError(t, err)
			assert.LessOrEqual(t, s.CurrentAttempt(), s.MaxAttempts(), "iteration %d", i)
			if s.IsResolved() {
				assert.Nil(t, s.NextRetryDate(), "iteration %d", i)
			} else {
				assert.NotNil(t, s.NextRetryDate(), "iteration %d", i)
			}
		}
	}
}
