package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEngine_Counters(t *testing.T) {
	m := New()
	m.RoutingDecision("RULE")
	m.RoutingDecision("RULE")
	m.StepExecuted("SUSPEND", true)
	m.ObserveSweep("dunning", time.Now(), 3, 1, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.routingOutcomes.WithLabelValues("RULE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepsExecuted.WithLabelValues("SUSPEND", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepUnits.WithLabelValues("dunning", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "payops_routing_decisions_total")
}

func TestEngine_NilIsNoop(t *testing.T) {
	var m *Engine
	assert.NotPanics(t, func() {
		m.RoutingDecision("NONE")
		m.Resolved("retry_schedule", "MANUAL_CANCEL")
		m.ObserveSweep("retry", time.Now(), 1, 0, 0)
	})
}
