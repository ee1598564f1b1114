package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/shared/logger"
)

func TestSchedulerManager_RunsSweepsInOrder(t *testing.T) {
	m, err := NewSchedulerManager(Intervals{Sweep: time.Hour, Outbox: time.Hour}, logger.NewNop())
	require.NoError(t, err)

	var order []string
	done := make(chan struct{})
	retry := BatchJobFunc(func(context.Context) (int, error) {
		order = append(order, "retry")
		return 2, nil
	})
	dunning := BatchJobFunc(func(context.Context) (int, error) {
		order = append(order, "dunning")
		close(done)
		return 1, nil
	})
	var drained atomic.Int32
	drain := BatchJobFunc(func(context.Context) (int, error) {
		drained.Add(1)
		return 0, nil
	})

	require.NoError(t, m.RegisterSweepJobs(retry, dunning))
	require.NoError(t, m.RegisterOutboxJob(drain))
	require.NoError(t, m.RegisterMaintenanceJobs(BatchJobFunc(func(context.Context) (int, error) { return 0, nil })))

	names := make([]string, 0, 3)
	for _, j := range m.Jobs() {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{"engine-sweep", "outbox-drain", "payment-link-purge"}, names)

	m.Start()
	assert.True(t, m.IsStarted())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep job did not run")
	}
	assert.Eventually(t, func() bool { return drained.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Stop())
	assert.False(t, m.IsStarted())

	assert.Equal(t, []string{"retry", "dunning"}, order)
}
