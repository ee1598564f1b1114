package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/application/testutil"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/infrastructure/pubsub"
)

const org = "org_1"

type fakeSender struct {
	mu   sync.Mutex
	sent []outbox.Message
	err  error
}

func (s *fakeSender) send(msg outbox.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "msg_" + msg.Recipient, nil
}

func (s *fakeSender) SendEmail(_ context.Context, msg outbox.Message) (string, error) {
	return s.send(msg)
}
func (s *fakeSender) SendSMS(_ context.Context, msg outbox.Message) (string, error) {
	return s.send(msg)
}

type fakeNotifier struct {
	keys []string
	err  error
}

func (n *fakeNotifier) NotifySuspension(_ context.Context, key, _ string, _ outbox.Suspension) error {
	if n.err != nil {
		return n.err
	}
	n.keys = append(n.keys, key)
	return nil
}

type dispatchFixture struct {
	env      *testutil.Env
	email    *fakeSender
	sms      *fakeSender
	notifier *fakeNotifier
	bus      *pubsub.MemoryEventBus
	uc       *DispatchSideEffectsUseCase
}

func newDispatchFixture(t *testing.T, maxAttempts int) *dispatchFixture {
	t.Helper()
	env := testutil.NewEnv(t)
	f := &dispatchFixture{
		env:      env,
		email:    &fakeSender{},
		sms:      &fakeSender{},
		notifier: &fakeNotifier{},
		bus:      pubsub.NewMemoryEventBus(),
	}
	f.uc = NewDispatchSideEffectsUseCase(env.Outbox, env.Reminders, env.Tx, f.email, f.sms, f.notifier, f.bus,
		env.Ledger, env.Metrics, env.Clock,
		DispatchConfig{MaxAttempts: maxAttempts, InitialDelay: time.Minute, MaxDelay: 10 * time.Minute, Timeout: time.Second},
		env.Logger)
	return f
}

func (f *dispatchFixture) enqueue(t *testing.T, kind outbox.Kind, key string, payload any) {
	t.Helper()
	task, err := outbox.NewTask(org, kind, key, payload, f.env.Clock.Now())
	require.NoError(t, err)
	ok, err := f.env.Outbox.Enqueue(f.env.Ctx(), task)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *dispatchFixture) task(t *testing.T, key string) *outbox.Task {
	t.Helper()
	tasks := f.env.PendingTasks(t, key)
	require.Len(t, tasks, 1)
	return tasks[0]
}

func TestDispatch_DeliversEveryKind(t *testing.T) {
	f := newDispatchFixture(t, 3)
	ctx := f.env.Ctx()

	f.enqueue(t, outbox.KindEmail, "dr_1:0:email", outbox.Message{Recipient: "a@example.test", TemplateKey: outbox.TemplateRetryNotice, ScheduleID: "rs_1", DunningRunID: "dr_1"})
	f.enqueue(t, outbox.KindSMS, "dr_1:2:sms", outbox.Message{Recipient: "+33600000000", TemplateKey: outbox.TemplateContactSMS, DunningRunID: "dr_1", StepIndex: 2})
	f.enqueue(t, outbox.KindNotifySuspension, "dr_1:3:suspension", outbox.Suspension{SubscriptionID: "sub_1", Reason: "ABONNEMENT_SUSPENDED", EffectiveDate: testutil.Day0})
	ev := events.New(events.SubscriptionSuspended, org, "sub_1", "cl_1", "ABONNEMENT_SUSPENDED", testutil.Day0)
	task, err := outbox.NewEventTask("dr_1:3", ev, testutil.Day0)
	require.NoError(t, err)
	_, err = f.env.Outbox.Enqueue(ctx, task)
	require.NoError(t, err)

	out, err := f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, &DispatchResult{Due: 4, Delivered: 4}, out)

	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.sms.sent, 1)
	assert.Equal(t, []string{"dr_1:3:suspension"}, f.notifier.keys)
	published := f.bus.OfType(events.SubscriptionSuspended)
	require.Len(t, published, 1)
	assert.Equal(t, ev.ID, published[0].ID)

	reminders, err := f.env.Reminders.ListByRun(ctx, "dr_1")
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	for _, r := range reminders {
		assert.Equal(t, retry.ReminderSent, r.Status())
		assert.Equal(t, "msg_"+r.Recipient(), r.MessageID())
	}

	again, err := f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Due, "delivered tasks are not redelivered")
}

func TestDispatch_BacksOffThenDeadLetters(t *testing.T) {
	f := newDispatchFixture(t, 2)
	ctx := f.env.Ctx()
	f.sms.err = errors.New("gateway 503")
	f.enqueue(t, outbox.KindSMS, "dr_1:1:sms", outbox.Message{Recipient: "+33600000000", TemplateKey: outbox.TemplateContactSMS, DunningRunID: "dr_1", StepIndex: 1})

	out, err := f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Retrying)
	task := f.task(t, "dr_1:1:sms")
	assert.Equal(t, outbox.StatusPending, task.Status())
	assert.Equal(t, f.env.Clock.Now().Add(time.Minute), task.NextAttemptAt().UTC())

	out, err = f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Due, "not due before the backoff elapses")

	f.env.Clock.Set(f.env.Clock.Now().Add(time.Minute))
	out, err = f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Dead)
	assert.Equal(t, outbox.StatusDead, f.task(t, "dr_1:1:sms").Status())

	reminders, err := f.env.Reminders.ListByRun(ctx, "dr_1")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, retry.ReminderFailed, reminders[0].Status())

	alerts, err := f.env.Ledger.Alerts(ctx, org, "", 10)
	require.NoError(t, err)
	codes := map[string]alert.Severity{}
	for _, a := range alerts {
		codes[a.Code] = a.Severity
	}
	assert.Equal(t, alert.SeverityInfo, codes[alert.CodeReminderFailed])
	assert.Equal(t, alert.SeverityWarning, codes[alert.CodeSideEffectDead])
}

func TestDispatch_PermanentFailuresDieAtOnce(t *testing.T) {
	f := newDispatchFixture(t, 5)
	f.enqueue(t, outbox.KindEmail, "dr_1:0:email", outbox.Message{TemplateKey: outbox.TemplateRetryNotice})

	out, err := f.uc.Execute(f.env.Ctx())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Dead)
	task := f.task(t, "dr_1:0:email")
	assert.Equal(t, 1, task.Attempts())
	assert.Contains(t, task.LastError(), "no recipient")
}

func TestDispatch_PublishFailureKeepsTaskPending(t *testing.T) {
	f := newDispatchFixture(t, 3)
	ctx := f.env.Ctx()
	f.bus.FailWith(errors.New("bus down"))
	ev := events.New(events.SubscriptionRestored, org, "sub_1", "cl_1", "PAYMENT_SUCCEEDED", testutil.Day0)
	task, err := outbox.NewEventTask("success:pay_1", ev, testutil.Day0)
	require.NoError(t, err)
	_, err = f.env.Outbox.Enqueue(ctx, task)
	require.NoError(t, err)

	out, err := f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Retrying)

	f.bus.FailWith(nil)
	f.env.Clock.Set(f.env.Clock.Now().Add(time.Hour))
	out, err = f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Delivered)
	assert.Len(t, f.bus.OfType(events.SubscriptionRestored), 1)

	alerts, err := f.env.Ledger.Alerts(ctx, org, "", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts, "event retries are not reminder failures")
}

// listedRepository replays a listing taken before another dispatcher drained
// the same tasks.
type listedRepository struct {
	outbox.Repository
	listed []*outbox.Task
}

func (r *listedRepository) ListDue(context.Context, time.Time, int) ([]*outbox.Task, error) {
	return r.listed, nil
}

func TestDispatch_ConcurrentDrainsDeliverOnce(t *testing.T) {
	f := newDispatchFixture(t, 3)
	ctx := f.env.Ctx()
	f.enqueue(t, outbox.KindEmail, "dr_1:0:email", outbox.Message{Recipient: "a@example.test", TemplateKey: outbox.TemplateRetryNotice, DunningRunID: "dr_1"})

	listed, err := f.env.Outbox.ListDue(ctx, f.env.Clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	out, err := f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Delivered)

	other := NewDispatchSideEffectsUseCase(&listedRepository{Repository: f.env.Outbox, listed: listed},
		f.env.Reminders, f.env.Tx, f.email, f.sms, f.notifier, f.bus, f.env.Ledger, f.env.Metrics, f.env.Clock,
		DispatchConfig{MaxAttempts: 3, Timeout: time.Second}, f.env.Logger)
	out, err = other.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, &DispatchResult{Due: 1, Skipped: 1}, out)
	assert.Len(t, f.email.sent, 1)

	reminders, err := f.env.Reminders.ListByRun(ctx, "dr_1")
	require.NoError(t, err)
	assert.Len(t, reminders, 1)
}

func TestDispatch_LeasedTaskIsNotRedelivered(t *testing.T) {
	f := newDispatchFixture(t, 3)
	ctx := f.env.Ctx()
	f.enqueue(t, outbox.KindSMS, "dr_1:1:sms", outbox.Message{Recipient: "+33600000000", TemplateKey: outbox.TemplateContactSMS, DunningRunID: "dr_1"})

	task := f.task(t, "dr_1:1:sms")
	now := f.env.Clock.Now()
	task.Claim(now.Add(time.Minute), now)
	claimed, err := f.env.Outbox.Claim(ctx, task, now)
	require.NoError(t, err)
	require.True(t, claimed)

	out, err := f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Due, "hidden while another dispatcher holds the lease")
	assert.Empty(t, f.sms.sent)

	// The holder died; the task is delivered once the lease lapses.
	f.env.Clock.Set(now.Add(2 * time.Minute))
	out, err = f.uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Delivered)
	assert.Len(t, f.sms.sent, 1)
}

func TestDelayFor(t *testing.T) {
	f := newDispatchFixture(t, 3)
	assert.Equal(t, time.Minute, f.uc.delayFor(0))
	assert.Equal(t, 2*time.Minute, f.uc.delayFor(1))
	assert.Equal(t, 4*time.Minute, f.uc.delayFor(2))
	assert.Equal(t, 10*time.Minute, f.uc.delayFor(6))
}
