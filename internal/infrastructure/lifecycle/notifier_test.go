package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/domain/outbox"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
)

func TestHTTPNotifier_NotifySuspension(t *testing.T) {
	effective := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	var path, key string
	var got suspendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get(constants.HeaderIdempotencyKey)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(sharedConfig.LifecycleConfig{BaseURL: srv.URL + "/api", Timeout: time.Second}, logger.NewNop())
	err := n.NotifySuspension(context.Background(), "dr_1:3:NOTIFY_SUSPENSION", "org_1", outbox.Suspension{
		SubscriptionID: "sub_1",
		Reason:         "ABONNEMENT_SUSPENDED",
		EffectiveDate:  effective,
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/subscriptions/sub_1/suspend", path)
	assert.Equal(t, "dr_1:3:NOTIFY_SUSPENSION", key)
	assert.Equal(t, "org_1", got.OrganizationID)
	assert.True(t, effective.Equal(got.EffectiveDate))
}

func TestHTTPNotifier_StatusHandling(t *testing.T) {
	status := http.StatusConflict
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(sharedConfig.LifecycleConfig{BaseURL: srv.URL}, logger.NewNop())
	s := outbox.Suspension{SubscriptionID: "sub_1"}

	assert.NoError(t, n.NotifySuspension(context.Background(), "k", "org_1", s), "already suspended")

	status = http.StatusServiceUnavailable
	assert.Error(t, n.NotifySuspension(context.Background(), "k", "org_1", s))

	unconfigured := NewHTTPNotifier(sharedConfig.LifecycleConfig{}, logger.NewNop())
	assert.NoError(t, unconfigured.NotifySuspension(context.Background(), "k", "org_1", s))
}
