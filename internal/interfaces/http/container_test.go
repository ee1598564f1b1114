package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/infrastructure/auth"
	"github.com/payops/payops/internal/infrastructure/config"
	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/infrastructure/seeds"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/logger"
)

const testWebhookKey = "whk_test"

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := &config.Config{
		Server: sharedConfig.ServerConfig{Mode: "test", RateLimitPerMinute: 100},
		Auth: sharedConfig.AuthConfig{
			JWT:        sharedConfig.JWTConfig{Secret: "test-secret-0123456789", Issuer: "payops-test", AccessExpMinutes: 15},
			WebhookKey: testWebhookKey,
		},
		Redis: sharedConfig.RedisConfig{Host: mr.Host(), Port: port},
		Engine: sharedConfig.EngineConfig{
			SweepInterval:      time.Minute,
			OutboxInterval:     time.Minute,
			SweepParallelism:   2,
			SweepBatchSize:     50,
			LockTTL:            time.Minute,
			SubmissionStaleTTL: time.Hour,
			NotifyTimeout:      time.Second,
			OutboxBatchSize:    50,
			OutboxMaxAttempts:  3,
			OutboxInitialDelay: time.Second,
			OutboxMaxDelay:     time.Minute,
			PolicyCacheTTL:     time.Minute,
			RoutingCacheSize:   64,
			AlertDedupWindow:   time.Hour,
			PaymentLinkTTL:     72 * time.Hour,
			PaymentLinkBaseURL: "https://pay.example.test/l",
		},
		EventBus: sharedConfig.EventBusConfig{Driver: "memory"},
	}

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	c := NewContainer(db, cfg, logger.NewNop())
	c.SetupRoutes()
	t.Cleanup(c.Shutdown)
	return c
}

func seedContainer(t *testing.T, c *Container) {
	t.Helper()
	f, err := seeds.LoadFile("../../../configs/seeds.yaml")
	require.NoError(t, err)
	_, err = c.Seeder().Apply(context.Background(), f)
	require.NoError(t, err)
}

func doJSON(t *testing.T, c *Container, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	c.Engine().ServeHTTP(w, req)
	return w
}

func TestContainer_HealthAndMetrics(t *testing.T) {
	c := newTestContainer(t)

	w := doJSON(t, c, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, c, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, c, http.MethodGet, "/version", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, c, http.MethodGet, "/swagger/doc.json", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/payments/events")
}

func TestContainer_AdminRoutesRequireAuth(t *testing.T) {
	c := newTestContainer(t)

	w := doJSON(t, c, http.MethodGet, "/api/v1/routing/rules?organization_id=org_demo", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, c, http.MethodPost, "/api/v1/payments/events", map[string]any{"type": "payment.failed"},
		map[string]string{"X-Webhook-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContainer_PaymentFailureOpensSchedule(t *testing.T) {
	c := newTestContainer(t)
	seedContainer(t, c)

	event := map[string]any{
		"event_id":        "evt_1",
		"type":            "payment.failed",
		"organization_id": "org_demo",
		"company_id":      "co_demo",
		"payment_id":      "pay_1",
		"client_id":       "cli_1",
		"amount_cents":    4990,
		"currency":        "EUR",
		"rejection_code":  "AM04",
		"occurred_at":     time.Now().UTC().Format(time.RFC3339),
	}
	headers := map[string]string{"X-Webhook-Key": testWebhookKey}

	w := doJSON(t, c, http.MethodPost, "/api/v1/payments/events", event, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ScheduleOpened bool `json:"schedule_opened"`
			RetrySchedule  struct {
				ID string `json:"id"`
			} `json:"retry_schedule"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Data.ScheduleOpened)
	require.NotEmpty(t, created.Data.RetrySchedule.ID)

	// Redelivery is acknowledged against the schedule already open.
	w = doJSON(t, c, http.MethodPost, "/api/v1/payments/events", event, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"schedule_opened":false`)
	assert.Contains(t, w.Body.String(), created.Data.RetrySchedule.ID)

	token, err := c.JWT().Generate("ops@example.test", "operator", "org_demo", auth.TokenTypeAccess)
	require.NoError(t, err)
	w = doJSON(t, c, http.MethodGet, "/api/v1/retry-schedules/"+created.Data.RetrySchedule.ID, nil,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	foreign, err := c.JWT().Generate("ops@example.test", "operator", "org_other", auth.TokenTypeAccess)
	require.NoError(t, err)
	w = doJSON(t, c, http.MethodGet, "/api/v1/retry-schedules/"+created.Data.RetrySchedule.ID, nil,
		map[string]string{"Authorization": "Bearer " + foreign})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContainer_SweepOnce(t *testing.T) {
	c := newTestContainer(t)
	seedContainer(t, c)

	result, err := c.SweepOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestContainer_RegistersSchedulerJobs(t *testing.T) {
	c := newTestContainer(t)

	names := make([]string, 0)
	for _, job := range c.Scheduler().Jobs() {
		names = append(names, job.Name())
	}
	assert.ElementsMatch(t, []string{"engine-sweep", "outbox-drain", "payment-link-purge"}, names)
}
