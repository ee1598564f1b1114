package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

type EmailSender interface {
	SendEmail(ctx context.Context, msg outbox.Message) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, msg outbox.Message) (string, error)
}

// SuspensionNotifier tells the subscription system a subscription was
// suspended. The idempotency key is stable across redeliveries.
type SuspensionNotifier interface {
	NotifySuspension(ctx context.Context, idempotencyKey, organizationID string, s outbox.Suspension) error
}

type DispatchConfig struct {
	BatchSize    int
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Timeout bounds a single delivery.
	Timeout time.Duration
	// LeaseTTL is how long a claimed task is hidden from other dispatchers.
	LeaseTTL time.Duration
}

func (c DispatchConfig) normalized() DispatchConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 30 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Hour
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.LeaseTTL < 2*c.Timeout {
		c.LeaseTTL = 2*c.Timeout + time.Minute
	}
	return c
}

type DispatchResult struct {
	Due       int `json:"due"`
	Delivered int `json:"delivered"`
	Retrying  int `json:"retrying"`
	Dead      int `json:"dead"`
	// Skipped counts due tasks another dispatcher claimed first.
	Skipped int `json:"skipped"`
}

// DispatchSideEffectsUseCase delivers committed side effects. A failed
// delivery is retried with exponential backoff until MaxAttempts, then
// dead-lettered and surfaced as an alert. Delivery never touches the state
// that enqueued the task. Each task is claimed with a lease before delivery so
// concurrent drains never send it twice.
type DispatchSideEffectsUseCase struct {
	outboxRepo   outbox.Repository
	reminderRepo retry.ReminderRepository
	txMgr        db.Transactor
	email        EmailSender
	sms          SMSSender
	notifier     SuspensionNotifier
	publisher    events.Publisher
	ledger       *ledger.Service
	metrics      *metrics.Engine
	clock        biztime.Clock
	cfg          DispatchConfig
	logger       logger.Interface
}

func NewDispatchSideEffectsUseCase(
	outboxRepo outbox.Repository,
	reminderRepo retry.ReminderRepository,
	txMgr db.Transactor,
	email EmailSender,
	sms SMSSender,
	notifier SuspensionNotifier,
	publisher events.Publisher,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	cfg DispatchConfig,
	logger logger.Interface,
) *DispatchSideEffectsUseCase {
	return &DispatchSideEffectsUseCase{
		outboxRepo:   outboxRepo,
		reminderRepo: reminderRepo,
		txMgr:        txMgr,
		email:        email,
		sms:          sms,
		notifier:     notifier,
		publisher:    publisher,
		ledger:       ledgerService,
		metrics:      metricsEngine,
		clock:        clock,
		cfg:          cfg.normalized(),
		logger:       logger.With("component", "outbox_dispatcher"),
	}
}

func (uc *DispatchSideEffectsUseCase) Execute(ctx context.Context) (*DispatchResult, error) {
	start := time.Now()
	tasks, err := uc.outboxRepo.ListDue(ctx, uc.clock.Now(), uc.cfg.BatchSize)
	if err != nil {
		uc.logger.Errorw("failed to list due side effects", "error", err)
		return nil, err
	}

	result := &DispatchResult{Due: len(tasks)}
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		claimed, err := uc.claim(ctx, task)
		if err != nil {
			uc.logger.Errorw("failed to claim side effect", "error", err, "task_id", task.ID())
			result.Retrying++
			continue
		}
		if !claimed {
			result.Skipped++
			continue
		}
		switch uc.dispatch(ctx, task) {
		case outbox.StatusDone:
			result.Delivered++
		case outbox.StatusDead:
			result.Dead++
		default:
			result.Retrying++
		}
	}

	uc.metrics.ObserveSweep("outbox", start, result.Delivered, result.Retrying+result.Dead, result.Skipped)
	if result.Due > 0 {
		uc.logger.Infow("side effects dispatched",
			"due", result.Due,
			"delivered", result.Delivered,
			"retrying", result.Retrying,
			"dead", result.Dead,
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

func (uc *DispatchSideEffectsUseCase) claim(ctx context.Context, task *outbox.Task) (bool, error) {
	now := uc.clock.Now()
	task.Claim(now.Add(uc.cfg.LeaseTTL), now)
	return uc.outboxRepo.Claim(ctx, task, now)
}

// dispatch delivers one task and persists its new state.
func (uc *DispatchSideEffectsUseCase) dispatch(ctx context.Context, task *outbox.Task) outbox.Status {
	messageID, err := uc.deliver(ctx, task)
	now := uc.clock.Now()
	uc.metrics.SideEffect(string(task.Kind()), err == nil)

	dead := false
	if err == nil {
		task.MarkDone(now)
	} else {
		maxAttempts := uc.cfg.MaxAttempts
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			maxAttempts = task.Attempts() + 1
		}
		dead = task.MarkFailed(err, now.Add(uc.delayFor(task.Attempts())), maxAttempts, now)
	}

	saveErr := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := uc.outboxRepo.Update(ctx, task); err != nil {
			return err
		}
		return uc.recordReminder(ctx, task, messageID, err, dead, now)
	})
	if saveErr != nil {
		// The lease lapses and a later drain delivers the task again.
		uc.logger.Errorw("failed to save side effect state", "error", saveErr, "task_id", task.ID(), "dedup_key", task.DedupKey())
	}

	if err != nil {
		uc.logger.Warnw("side effect delivery failed",
			"task_id", task.ID(),
			"kind", task.Kind(),
			"attempts", task.Attempts(),
			"dead", dead,
			"error", err,
		)
		uc.raiseFailure(ctx, task, err, dead, now)
	}
	return task.Status()
}

func (uc *DispatchSideEffectsUseCase) deliver(ctx context.Context, task *outbox.Task) (messageID string, err error) {
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Errorw("side effect delivery panicked", "task_id", task.ID(), "panic", fmt.Sprint(r))
			err = backoff.Permanent(fmt.Errorf("delivery panicked: %v", r))
		}
	}()

	switch task.Kind() {
	case outbox.KindEmail, outbox.KindSMS:
		var msg outbox.Message
		if err := task.Decode(&msg); err != nil {
			return "", backoff.Permanent(err)
		}
		if msg.Recipient == "" {
			return "", backoff.Permanent(fmt.Errorf("message has no recipient"))
		}
		if task.Kind() == outbox.KindEmail {
			return uc.email.SendEmail(ctx, msg)
		}
		return uc.sms.SendSMS(ctx, msg)
	case outbox.KindNotifySuspension:
		var s outbox.Suspension
		if err := task.Decode(&s); err != nil {
			return "", backoff.Permanent(err)
		}
		return "", uc.notifier.NotifySuspension(ctx, task.DedupKey(), task.OrganizationID(), s)
	case outbox.KindPublishEvent:
		var e events.Event
		if err := task.Decode(&e); err != nil {
			return "", backoff.Permanent(err)
		}
		return "", uc.publisher.Publish(ctx, e)
	}
	return "", backoff.Permanent(fmt.Errorf("unknown side effect kind %q", task.Kind()))
}

// delayFor is the wait after a failure when attempts deliveries already
// failed before it.
func (uc *DispatchSideEffectsUseCase) delayFor(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = uc.cfg.InitialDelay
	b.MaxInterval = uc.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

// recordReminder keeps one reminder per notification: SENT on delivery and
// FAILED once the message is dead-lettered.
func (uc *DispatchSideEffectsUseCase) recordReminder(ctx context.Context, task *outbox.Task, messageID string, deliveryErr error, dead bool, now time.Time) error {
	if task.Kind() != outbox.KindEmail && task.Kind() != outbox.KindSMS {
		return nil
	}
	if deliveryErr != nil && !dead {
		return nil
	}
	var msg outbox.Message
	if err := task.Decode(&msg); err != nil {
		return nil
	}

	channel := "EMAIL"
	if task.Kind() == outbox.KindSMS {
		channel = "SMS"
	}
	status, errorCode := retry.ReminderSent, ""
	if deliveryErr != nil {
		status, errorCode = retry.ReminderFailed, truncate(deliveryErr.Error(), 64)
	}
	r := retry.NewReminder(task.OrganizationID(), msg.ScheduleID, msg.DunningRunID, msg.StepIndex,
		channel, msg.Recipient, messageID, status, errorCode, now)
	return uc.reminderRepo.Create(ctx, r)
}

func (uc *DispatchSideEffectsUseCase) raiseFailure(ctx context.Context, task *outbox.Task, deliveryErr error, dead bool, now time.Time) {
	info := map[string]string{
		"task_id":   task.ID(),
		"kind":      string(task.Kind()),
		"dedup_key": task.DedupKey(),
		"attempts":  fmt.Sprint(task.Attempts()),
		"error":     deliveryErr.Error(),
	}

	var a *alert.Alert
	switch {
	case dead:
		a = alert.New(task.OrganizationID(), "", alert.CodeSideEffectDead, alert.SeverityWarning,
			fmt.Sprintf("%s side effect abandoned after %d attempts", task.Kind(), task.Attempts()), info, now)
	case task.Kind() == outbox.KindEmail || task.Kind() == outbox.KindSMS:
		a = alert.New(task.OrganizationID(), "", alert.CodeReminderFailed, alert.SeverityInfo,
			"reminder delivery failed, will retry", info, now)
	default:
		return
	}
	if _, err := uc.ledger.Raise(ctx, a, task.DedupKey()); err != nil {
		uc.logger.Errorw("failed to raise side effect alert", "error", err, "task_id", task.ID())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
