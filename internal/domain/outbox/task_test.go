package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/domain/shared/events"
)

func TestTaskLifecycle(t *testing.T) {
	now := time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC)
	task, err := NewTask("org_1", KindSMS, "dr_1:2:sms", Message{Recipient: "+33600000000", TemplateKey: "dunning_sms"}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status())
	assert.Equal(t, now, task.NextAttemptAt())

	var msg Message
	require.NoError(t, task.Decode(&msg))
	assert.Equal(t, "+33600000000", msg.Recipient)

	dead := task.MarkFailed(errors.New("gateway 503"), now.Add(time.Minute), 2, now)
	assert.False(t, dead)
	assert.Equal(t, now.Add(time.Minute), task.NextAttemptAt())
	assert.Equal(t, "gateway 503", task.LastError())

	dead = task.MarkFailed(errors.New("gateway 503"), now.Add(2*time.Minute), 2, now)
	assert.True(t, dead)
	assert.Equal(t, StatusDead, task.Status())
	assert.NotNil(t, task.CompletedAt())
}

func TestNewEventTaskKey(t *testing.T) {
	now := time.Now().UTC()
	e := events.New(events.SubscriptionSuspended, "org_1", "sub_1", "cl_1", "ABONNEMENT_SUSPENDED", now)
	task, err := NewEventTask("dr_1:3", e, now)
	require.NoError(t, err)
	assert.Equal(t, "dr_1:3:subscription.suspended", task.DedupKey())
	assert.Equal(t, KindPublishEvent, task.Kind())

	_, err = NewTask("org_1", KindEmail, "", nil, now)
	assert.Error(t, err)
}
