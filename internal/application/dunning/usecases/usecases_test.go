package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/application/testutil"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/domain/shared/services"
	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

const (
	org     = "org_1"
	company = "co_1"
	sub     = "sub_1"
)

// stepLog records the dunning step stamped on every schedule update.
type stepLog struct {
	billing.PaymentScheduleRepository
	mu    sync.Mutex
	steps []string
}

func (r *stepLog) Update(ctx context.Context, s *billing.PaymentSchedule) error {
	if err := r.PaymentScheduleRepository.Update(ctx, s); err != nil {
		return err
	}
	r.mu.Lock()
	r.steps = append(r.steps, s.Metadata()[billing.MetaDunningLastStep])
	r.mu.Unlock()
	return nil
}

// flakyOutbox fails every enqueue while fail is set.
type flakyOutbox struct {
	outbox.Repository
	mu   sync.Mutex
	fail bool
}

func (o *flakyOutbox) Enqueue(ctx context.Context, t *outbox.Task) (bool, error) {
	o.mu.Lock()
	fail := o.fail
	o.mu.Unlock()
	if fail {
		return false, errors.New("outbox unavailable")
	}
	return o.Repository.Enqueue(ctx, t)
}

func (o *flakyOutbox) setFail(v bool) {
	o.mu.Lock()
	o.fail = v
	o.mu.Unlock()
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, string, string, string) (*IssuedLink, error) {
	return nil, errors.New("link service down")
}

type harness struct {
	env       *testutil.Env
	schedules *stepLog
	outbox    *flakyOutbox
	orch      *Orchestrator
	failure   *HandlePaymentFailureUseCase
	success   *HandlePaymentSuccessUseCase
	sweep     *SweepDunningUseCase
	cancel    *CancelDunningRunUseCase
	get       *GetDunningRunUseCase
}

func newHarness(t *testing.T, links func(env *testutil.Env) LinkIssuer) *harness {
	t.Helper()
	env := testutil.NewEnv(t)
	h := &harness{
		env:       env,
		schedules: &stepLog{PaymentScheduleRepository: env.PaymentSchedules},
		outbox:    &flakyOutbox{Repository: env.Outbox},
	}
	var issuer LinkIssuer = NewPaymentLinkIssuer(env.Links, services.NewTokenGenerator(), "https://pay.example.test/l/", 0, env.Clock, env.Logger)
	if links != nil {
		issuer = links(env)
	}
	h.orch = NewOrchestrator(env.Configs, env.Runs, h.schedules, env.Schedules, h.outbox, issuer,
		env.Tx, env.Locker, env.Ledger, env.Metrics, env.Clock, "Call us on 01 23 45 67 89", env.Logger)
	h.failure = NewHandlePaymentFailureUseCase(h.orch)
	h.success = NewHandlePaymentSuccessUseCase(h.orch)
	h.sweep = NewSweepDunningUseCase(h.orch, SweepDunningConfig{BatchSize: 2, Parallelism: 2})
	h.cancel = NewCancelDunningRunUseCase(h.orch)
	h.get = NewGetDunningRunUseCase(env.Runs, env.Configs, env.Reminders, env.Logger)
	return h
}

// seedStandard stores the four-step escalation and the subscription's
// payment schedule.
func (h *harness) seedStandard(t *testing.T) *dunning.Config {
	t.Helper()
	h.env.SeedPaymentSchedule(t, "ps_1", org, "cl_1", "ct_1", sub, "JUSTI_PLUS")
	return h.env.SeedConfig(t, org,
		testutil.Step(t, 0, dunning.ActionRetryPayment, []dunning.Channel{dunning.ChannelEmail}, false, "J0 email"),
		testutil.Step(t, 2, dunning.ActionRetryPayment, nil, false, "J+2 retry"),
		testutil.Step(t, 5, dunning.ActionRetryPaymentAndNotify, []dunning.Channel{dunning.ChannelSMS}, true, "J+5 retry + sms"),
		testutil.Step(t, 10, dunning.ActionSuspend, []dunning.Channel{dunning.ChannelEmail, dunning.ChannelSMS}, false, "J+10 suspend"),
	)
}

func (h *harness) fail(t *testing.T, key string) *HandlePaymentFailureResult {
	t.Helper()
	out, err := h.failure.Execute(h.env.Ctx(), HandlePaymentFailureCommand{
		OrganizationID:    org,
		CompanyID:         company,
		SubscriptionID:    sub,
		ClientID:          "cl_1",
		ContractID:        "ct_1",
		PaymentScheduleID: "ps_1",
		ContactEmail:      "client@example.test",
		ContactPhone:      "+33600000000",
		IdempotencyKey:    key,
	})
	require.NoError(t, err)
	return out
}

func (h *harness) runAt(t *testing.T, n int) (*SweepDunningResult, *dunning.Run) {
	t.Helper()
	h.env.Clock.Set(biztime.AddDays(testutil.Day0, n))
	res, err := h.sweep.Execute(h.env.Ctx())
	require.NoError(t, err)
	runs, err := h.env.Runs.ListActive(h.env.Ctx(), "", 10)
	require.NoError(t, err)
	if len(runs) == 0 {
		return res, nil
	}
	return res, runs[0]
}

func decodeMessage(t *testing.T, task *outbox.Task) outbox.Message {
	t.Helper()
	var msg outbox.Message
	require.NoError(t, task.Decode(&msg))
	return msg
}

func kinds(tasks []*outbox.Task) map[outbox.Kind]int {
	out := map[outbox.Kind]int{}
	for _, task := range tasks {
		out[task.Kind()]++
	}
	return out
}

func TestDunning_FullEscalationSuspends(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	ctx := h.env.Ctx()

	opened := h.fail(t, "evt_1")
	require.True(t, opened.Opened)
	assert.False(t, opened.Abandoned)
	assert.Equal(t, 1, opened.StepsExecuted, "J0 runs immediately")
	assert.Equal(t, 0, opened.Run.LastCompletedStep)
	runID := opened.Run.ID

	j0 := h.env.PendingTasks(t, runID+":0:")
	require.Len(t, j0, 1)
	assert.Equal(t, outbox.KindEmail, j0[0].Kind())
	msg := decodeMessage(t, j0[0])
	assert.Equal(t, outbox.TemplateRetryNotice, msg.TemplateKey)
	assert.Equal(t, "client@example.test", msg.Recipient)

	res, run := h.runAt(t, 1)
	assert.Zero(t, res.Executed)
	assert.Equal(t, 0, run.LastCompletedStep())

	res, run = h.runAt(t, 2)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 1, run.LastCompletedStep())
	assert.Empty(t, h.env.PendingTasks(t, runID+":1:"), "J+2 retries silently")

	res, run = h.runAt(t, 5)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 2, run.LastCompletedStep())
	assert.Equal(t, 3, run.TotalAttempts())
	sms := h.env.PendingTasks(t, runID+":2:")
	require.Len(t, sms, 1)
	msg = decodeMessage(t, sms[0])
	assert.Equal(t, outbox.TemplatePaymentLinkSMS, msg.TemplateKey)
	assert.True(t, strings.HasPrefix(msg.Data["payment_link"], "https://pay.example.test/l/pl_"))

	res, run = h.runAt(t, 10)
	assert.Equal(t, 1, res.Executed)
	assert.Nil(t, run, "the run is closed")

	closed, err := h.env.Runs.GetByID(ctx, runID)
	require.NoError(t, err)
	assert.True(t, closed.IsResolved())
	assert.Equal(t, dunning.ResolutionSuspended, closed.ResolutionReason())
	assert.Equal(t, 3, closed.LastCompletedStep())

	ps, err := h.env.PaymentSchedules.GetByID(ctx, "ps_1")
	require.NoError(t, err)
	assert.True(t, ps.IsPaused())
	assert.Equal(t, 3, ps.RetryCount())
	assert.Equal(t, "J+10 suspend", ps.Metadata()[billing.MetaDunningStepLabel])

	final := h.env.PendingTasks(t, runID+":3:")
	assert.Equal(t, map[outbox.Kind]int{
		outbox.KindNotifySuspension: 1,
		outbox.KindPublishEvent:     2,
		outbox.KindEmail:            1,
		outbox.KindSMS:              1,
	}, kinds(final))
	var published []events.Type
	for _, task := range final {
		if task.Kind() == outbox.KindPublishEvent {
			var ev events.Event
			require.NoError(t, task.Decode(&ev))
			published = append(published, ev.Type)
			assert.Equal(t, sub, ev.SubscriptionID)
		}
	}
	assert.ElementsMatch(t, []events.Type{events.SubscriptionSuspended, events.CommissionCancelRecurring}, published)

	assert.Equal(t, []string{"0", "1", "2", "3"}, h.schedules.steps)
}

func TestDunning_LateSweepCatchesUpInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)

	opened := h.fail(t, "")
	require.Equal(t, 0, opened.Run.LastCompletedStep)

	res, run := h.runAt(t, 7)
	assert.Equal(t, 2, res.Executed)
	require.NotNil(t, run)
	assert.Equal(t, 2, run.LastCompletedStep(), "SUSPEND is not due before J+10")

	assert.Equal(t, []string{"0", "1", "2"}, h.schedules.steps)
}

func TestDunning_FailedStepIsRetriedNotSkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	ctx := h.env.Ctx()

	h.outbox.setFail(true)
	opened := h.fail(t, "")
	assert.True(t, opened.Opened)
	assert.Zero(t, opened.StepsExecuted)
	assert.Equal(t, dunning.NotStarted, opened.Run.LastCompletedStep)
	assert.Contains(t, opened.Run.LastError, "outbox unavailable")

	ps, err := h.env.PaymentSchedules.GetByID(ctx, "ps_1")
	require.NoError(t, err)
	assert.Zero(t, ps.RetryCount(), "a failed step leaves no partial effect")

	res, run := h.runAt(t, 0)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, dunning.NotStarted, run.LastCompletedStep())

	h.outbox.setFail(false)
	res, run = h.runAt(t, 0)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 0, run.LastCompletedStep())
	assert.Empty(t, run.LastError())
	assert.Len(t, h.env.PendingTasks(t, run.ID()+":0:"), 1)
}

func TestDunning_SweepOnResolvedRunIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	opened := h.fail(t, "")

	_, run := h.runAt(t, 10)
	require.Nil(t, run)
	before := len(h.env.PendingTasks(t, opened.Run.ID))

	res, _ := h.runAt(t, 11)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Executed)
	assert.Len(t, h.env.PendingTasks(t, opened.Run.ID), before)

	// Driving the closed run directly changes nothing either.
	n, err := h.orch.advance(h.env.Ctx(), opened.Run.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDunning_StepsExhaustedWithoutSuspend(t *testing.T) {
	h := newHarness(t, nil)
	h.env.SeedPaymentSchedule(t, "ps_1", org, "cl_1", "ct_1", sub, "JUSTI_PLUS")
	h.env.SeedConfig(t, org,
		testutil.Step(t, 0, dunning.ActionRetryPayment, nil, false, "J0"),
		testutil.Step(t, 3, dunning.ActionRetryPayment, nil, false, "J+3"),
	)
	opened := h.fail(t, "")

	h.runAt(t, 3)
	run, err := h.env.Runs.GetByID(h.env.Ctx(), opened.Run.ID)
	require.NoError(t, err)
	assert.True(t, run.IsResolved())
	assert.Equal(t, dunning.ResolutionStepsExhausted, run.ResolutionReason())
	assert.Equal(t, 1, run.LastCompletedStep())
}

func TestDunning_NoConfigAbandonsAndAlerts(t *testing.T) {
	h := newHarness(t, nil)
	out := h.fail(t, "")
	assert.True(t, out.Opened)
	assert.True(t, out.Abandoned)
	assert.True(t, out.Run.IsResolved)
	assert.Equal(t, string(dunning.ResolutionConfigNotFound), out.Run.ResolutionReason)
	assert.Zero(t, out.StepsExecuted)

	count, err := h.env.Alerts.CountByCode(h.env.Ctx(), org, company, alert.CodeDunningConfigMissing)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// The abandoned run does not block a later failure once a config exists.
	h.seedStandard(t)
	again := h.fail(t, "")
	assert.True(t, again.Opened)
	assert.False(t, again.Abandoned)
	assert.NotEqual(t, out.Run.ID, again.Run.ID)
}

func TestDunning_RepeatedFailureKeepsOneRun(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)

	first := h.fail(t, "evt_1")
	dup := h.fail(t, "evt_1")
	assert.True(t, dup.Duplicate)
	assert.Equal(t, first.Run.ID, dup.Run.ID)

	h.env.Clock.Set(biztime.AddDays(testutil.Day0, 1))
	second, err := h.failure.Execute(h.env.Ctx(), HandlePaymentFailureCommand{
		OrganizationID:  org,
		CompanyID:       company,
		SubscriptionID:  sub,
		RetryScheduleID: "rs_next",
		IdempotencyKey:  "evt_2",
	})
	require.NoError(t, err)
	assert.False(t, second.Opened)
	assert.Equal(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, "rs_next", second.Run.RetryScheduleID)
	assert.Equal(t, 0, second.Run.LastCompletedStep)
}

func TestDunning_PaymentLinkFailureFallsBackToContact(t *testing.T) {
	h := newHarness(t, func(*testutil.Env) LinkIssuer { return failingIssuer{} })
	h.seedStandard(t)
	opened := h.fail(t, "")

	_, run := h.runAt(t, 5)
	require.NotNil(t, run)
	assert.Equal(t, 2, run.LastCompletedStep())

	sms := h.env.PendingTasks(t, opened.Run.ID+":2:")
	require.Len(t, sms, 1)
	msg := decodeMessage(t, sms[0])
	assert.Equal(t, outbox.TemplateContactSMS, msg.TemplateKey)
	assert.Equal(t, "Call us on 01 23 45 67 89", msg.Data["contact_text"])
	assert.Empty(t, msg.Data["payment_link"])
}

func TestDunning_SuccessAfterSuspensionRestores(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	ctx := h.env.Ctx()
	h.fail(t, "")
	h.runAt(t, 10)

	out, err := h.success.Execute(ctx, HandlePaymentSuccessCommand{
		OrganizationID: org,
		SubscriptionID: sub,
		PaymentID:      "pay_9",
		IdempotencyKey: "evt_ok",
	})
	require.NoError(t, err)
	assert.False(t, out.Resolved, "the suspended run is already closed")
	assert.True(t, out.Restored)

	ps, err := h.env.PaymentSchedules.GetByID(ctx, "ps_1")
	require.NoError(t, err)
	assert.True(t, ps.IsActive())
	assert.Zero(t, ps.RetryCount())

	restored := h.env.PendingTasks(t, "success:"+org+":pay_9")
	assert.Equal(t, map[outbox.Kind]int{outbox.KindPublishEvent: 2}, kinds(restored))

	dup, err := h.success.Execute(ctx, HandlePaymentSuccessCommand{
		OrganizationID: org,
		SubscriptionID: sub,
		PaymentID:      "pay_9",
		IdempotencyKey: "evt_ok",
	})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Len(t, h.env.PendingTasks(t, "success:"), 2)
}

func TestDunning_SuccessMidRunResolves(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	ctx := h.env.Ctx()
	opened := h.fail(t, "")
	h.runAt(t, 2)

	out, err := h.success.Execute(ctx, HandlePaymentSuccessCommand{OrganizationID: org, SubscriptionID: sub})
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.False(t, out.Restored)
	assert.Equal(t, string(dunning.ResolutionPaymentSucceeded), out.Run.ResolutionReason)

	ps, err := h.env.PaymentSchedules.GetByID(ctx, "ps_1")
	require.NoError(t, err)
	assert.Zero(t, ps.RetryCount())

	res, run := h.runAt(t, 10)
	assert.Zero(t, res.Executed)
	assert.Nil(t, run)
	assert.Empty(t, h.env.PendingTasks(t, opened.Run.ID+":3:"))
}

func TestDunning_ManualCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	ctx := h.env.Ctx()
	opened := h.fail(t, "")

	_, err := h.cancel.Execute(ctx, CancelDunningRunCommand{RunID: opened.Run.ID})
	assert.True(t, apperrors.IsValidationError(err))

	cancelled, err := h.cancel.Execute(ctx, CancelDunningRunCommand{RunID: opened.Run.ID, Actor: "ops@example.test"})
	require.NoError(t, err)
	assert.Equal(t, string(dunning.ResolutionManualCancel), cancelled.ResolutionReason)
	assert.Equal(t, "ops@example.test", cancelled.ResolvedBy)

	_, err = h.cancel.Execute(ctx, CancelDunningRunCommand{RunID: opened.Run.ID, Actor: "ops@example.test"})
	assert.True(t, apperrors.IsConflictError(err))

	res, _ := h.runAt(t, 10)
	assert.Zero(t, res.Executed)
	history, err := h.env.Ledger.History(ctx, "dunning_run", opened.Run.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3, "open, J0 step, cancel")
}

func TestDunning_GetRunShowsNextStep(t *testing.T) {
	h := newHarness(t, nil)
	h.seedStandard(t)
	opened := h.fail(t, "")

	detail, err := h.get.Execute(h.env.Ctx(), GetDunningRunQuery{RunID: opened.Run.ID})
	require.NoError(t, err)
	require.NotNil(t, detail.NextStep)
	assert.Equal(t, 1, detail.NextStep.Index)
	require.NotNil(t, detail.NextDueDate)
	assert.True(t, detail.NextDueDate.Equal(biztime.AddDays(testutil.Day0, 2)))
	assert.NotNil(t, detail.Config)
}

func TestPaymentLink_SingleUseAndReplaced(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	tokens := services.NewTokenGenerator()
	issuer := NewPaymentLinkIssuer(env.Links, tokens, "https://pay.example.test/l", 0, env.Clock, env.Logger)
	redeem := NewRedeemPaymentLinkUseCase(env.Links, tokens, env.Tx, env.Clock, env.Logger)

	first, err := issuer.Issue(ctx, org, "cl_1", "ps_1")
	require.NoError(t, err)
	assert.True(t, first.ExpiresAt.Equal(testutil.Day0.Add(24*time.Hour)))

	second, err := issuer.Issue(ctx, org, "cl_1", "ps_1")
	require.NoError(t, err)

	_, err = redeem.Execute(ctx, RedeemPaymentLinkCommand{Token: first.Token})
	assert.True(t, apperrors.IsConflictError(err), "issuing a new link revokes the previous one")

	out, err := redeem.Execute(ctx, RedeemPaymentLinkCommand{Token: second.Token})
	require.NoError(t, err)
	assert.Equal(t, "cl_1", out.ClientID)
	assert.Equal(t, "ps_1", out.ScheduleID)

	_, err = redeem.Execute(ctx, RedeemPaymentLinkCommand{Token: second.Token})
	assert.True(t, apperrors.IsConflictError(err))

	third, err := issuer.Issue(ctx, org, "cl_1", "ps_1")
	require.NoError(t, err)
	env.Clock.Set(testutil.Day0.Add(25 * time.Hour))
	_, err = redeem.Execute(ctx, RedeemPaymentLinkCommand{Token: third.Token})
	assert.True(t, apperrors.IsConflictError(err), "links expire after 24h")

	_, err = redeem.Execute(ctx, RedeemPaymentLinkCommand{Token: "nope"})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "49.90 EUR", FormatAmount(4990, "EUR"))
	assert.Equal(t, "0.05", FormatAmount(5, ""))
}
