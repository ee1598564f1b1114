package dunning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

var j0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func mustStep(t *testing.T, delay int, kind ActionKind, channels []Channel, link bool, label string) Step {
	t.Helper()
	s, err := NewStep(delay, kind, channels, link, label)
	require.NoError(t, err)
	return s
}

func scenarioBConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewConfig("org_1", "co_1", "standard", []Step{
		mustStep(t, 0, ActionRetryPayment, []Channel{ChannelEmail}, false, "J0 email"),
		mustStep(t, 2, ActionRetryPayment, nil, false, "J+2 retry"),
		mustStep(t, 5, ActionRetryPaymentAndNotify, []Channel{ChannelSMS}, true, "J+5 retry + sms"),
		mustStep(t, 10, ActionSuspend, []Channel{ChannelEmail, ChannelSMS}, false, "J+10 suspend"),
	}, true)
	require.NoError(t, err)
	return cfg
}

func TestConfigValidation(t *testing.T) {
	_, err := NewConfig("org_1", "", "empty", nil, false)
	assert.Error(t, err)

	_, err = NewConfig("org_1", "", "decreasing", []Step{
		mustStep(t, 5, ActionRetryPayment, nil, false, ""),
		mustStep(t, 2, ActionRetryPayment, nil, false, ""),
	}, false)
	assert.ErrorContains(t, err, "non-decreasing")

	_, err = NewConfig("org_1", "", "suspend first", []Step{
		mustStep(t, 0, ActionSuspend, nil, false, ""),
		mustStep(t, 2, ActionRetryPayment, nil, false, ""),
	}, false)
	assert.ErrorContains(t, err, "last step")

	_, err = NewConfig("org_1", "", "equal delays", []Step{
		mustStep(t, 2, ActionRetryPayment, nil, false, ""),
		mustStep(t, 2, ActionRetryPaymentAndNotify, []Channel{ChannelSMS}, false, ""),
	}, false)
	assert.NoError(t, err)

	_, err = NewStep(0, ActionKind("CALL_CLIENT"), nil, false, "")
	assert.Error(t, err)
	_, err = NewStep(0, ActionRetryPayment, []Channel{"FAX"}, false, "")
	assert.Error(t, err)
}

type recordingVisitor struct{ visited []ActionKind }

func (v *recordingVisitor) VisitRetryPayment(a RetryPayment) error {
	v.visited = append(v.visited, a.Kind())
	return nil
}

func (v *recordingVisitor) VisitRetryPaymentAndNotify(a RetryPaymentAndNotify) error {
	v.visited = append(v.visited, a.Kind())
	if !a.IncludePaymentLink {
		return errors.New("expected payment link")
	}
	return nil
}

func (v *recordingVisitor) VisitSuspend(a Suspend) error {
	v.visited = append(v.visited, a.Kind())
	return nil
}

func TestActionDispatch(t *testing.T) {
	cfg := scenarioBConfig(t)
	v := &recordingVisitor{}
	for _, s := range cfg.Steps() {
		require.NoError(t, s.Action().Accept(v))
	}
	assert.Equal(t, []ActionKind{ActionRetryPayment, ActionRetryPayment, ActionRetryPaymentAndNotify, ActionSuspend}, v.visited)

	first, _ := cfg.Step(0)
	assert.True(t, first.Action().(RetryPayment).NotifyEmail)
	second, _ := cfg.Step(1)
	assert.False(t, second.Action().(RetryPayment).NotifyEmail)
}

func TestRunProgression(t *testing.T) {
	require.NoError(t, biztime.Init("UTC"))
	cfg := scenarioBConfig(t)
	run, err := OpenRun(Failure{OrganizationID: "org_1", SubscriptionID: "sub_1"}, cfg, j0)
	require.NoError(t, err)
	assert.Equal(t, NotStarted, run.LastCompletedStep())

	step, idx, due := run.PendingStep(cfg, j0)
	assert.True(t, due)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "J0 email", step.Label())
	require.NoError(t, run.CompleteStep(0, j0))

	_, _, due = run.PendingStep(cfg, biztime.AddDays(j0, 1))
	assert.False(t, due)
	_, idx, due = run.PendingStep(cfg, biztime.AddDays(j0, 2))
	assert.True(t, due)
	assert.Equal(t, 1, idx)

	assert.Error(t, run.CompleteStep(2, j0), "steps cannot be skipped")
	assert.Error(t, run.CompleteStep(0, j0), "steps cannot go backwards")

	for i := 1; i < cfg.StepCount(); i++ {
		require.NoError(t, run.CompleteStep(i, j0))
	}
	assert.True(t, run.StepsExhausted(cfg))

	require.NoError(t, run.Resolve(ResolutionSuspended, "", j0))
	assert.ErrorIs(t, run.Resolve(ResolutionPaymentSucceeded, "", j0), apperrors.ErrRunResolved)
	assert.ErrorIs(t, run.CompleteStep(4, j0), apperrors.ErrRunResolved)
	_, _, due = run.PendingStep(cfg, biztime.AddDays(j0, 30))
	assert.False(t, due)
}

func TestRunRecordFailureKeepsStep(t *testing.T) {
	cfg := scenarioBConfig(t)
	run, err := OpenRun(Failure{OrganizationID: "org_1", SubscriptionID: "sub_1"}, cfg, j0)
	require.NoError(t, err)

	run.RecordFailure(errors.New("smtp down"), j0)
	assert.Equal(t, NotStarted, run.LastCompletedStep())
	assert.Equal(t, "smtp down", run.LastError())

	require.NoError(t, run.CompleteStep(0, j0))
	assert.Empty(t, run.LastError())
}

func TestOpenAbandonedRun(t *testing.T) {
	run, err := OpenAbandonedRun(Failure{OrganizationID: "org_1", SubscriptionID: "sub_1"}, j0)
	require.NoError(t, err)
	assert.True(t, run.IsResolved())
	assert.Equal(t, ResolutionConfigNotFound, run.ResolutionReason())

	_, err = OpenAbandonedRun(Failure{OrganizationID: "org_1"}, j0)
	assert.Error(t, err)
}

func TestSelectConfig(t *testing.T) {
	steps := []Step{mustStep(t, 0, ActionRetryPayment, nil, false, "")}
	orgWide := ReconstructConfig("dc_org", "org_1", "", "org", steps, true, true, 1, j0, j0)
	company := ReconstructConfig("dc_co", "org_1", "co_1", "co", steps, false, true, 1, j0, j0)
	companyDefault := ReconstructConfig("dc_co_def", "org_1", "co_1", "co default", steps, true, true, 1, j0, j0)
	disabled := ReconstructConfig("dc_dis", "org_1", "co_2", "off", steps, true, false, 1, j0, j0)

	all := []*Config{orgWide, company, companyDefault, disabled}
	assert.Equal(t, "dc_co_def", SelectConfig(all, "org_1", "co_1").ID())
	assert.Equal(t, "dc_org", SelectConfig(all, "org_1", "co_2").ID())
	assert.Nil(t, SelectConfig(all, "org_9", "co_1"))
}
