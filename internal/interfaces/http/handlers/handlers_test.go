package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingestusecases "github.com/payops/payops/internal/application/ingest/usecases"
	retrydto "github.com/payops/payops/internal/application/retry/dto"
	retryusecases "github.com/payops/payops/internal/application/retry/usecases"
	routingdto "github.com/payops/payops/internal/application/routing/dto"
	routingusecases "github.com/payops/payops/internal/application/routing/usecases"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/interfaces/http/handlers/testutil"
	"github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// =====================================================================
// Mock use cases
// =====================================================================

type mockHandleEventUC struct {
	cmd    ingestusecases.HandlePaymentEventCommand
	result *ingestusecases.HandlePaymentEventResult
	err    error
}

func (m *mockHandleEventUC) Execute(_ context.Context, cmd ingestusecases.HandlePaymentEventCommand) (*ingestusecases.HandlePaymentEventResult, error) {
	m.cmd = cmd
	return m.result, m.err
}

type mockApplySignalUC struct {
	cmd retryusecases.ApplySignalCommand
}

func (m *mockApplySignalUC) Execute(_ context.Context, cmd retryusecases.ApplySignalCommand) (*retryusecases.ApplySignalResult, error) {
	m.cmd = cmd
	return &retryusecases.ApplySignalResult{Matched: 1, Resolved: 1}, nil
}

type mockListRulesUC struct {
	rules []*routingdto.RoutingRuleDTO
}

func (m *mockListRulesUC) Execute(context.Context, routingusecases.ListRoutingRulesQuery) ([]*routingdto.RoutingRuleDTO, error) {
	return m.rules, nil
}

type mockGetScheduleUC struct {
	detail *retrydto.ScheduleDetailDTO
}

func (m *mockGetScheduleUC) Execute(_ context.Context, q retryusecases.GetRetryScheduleQuery) (*retrydto.ScheduleDetailDTO, error) {
	if m.detail == nil || m.detail.ID != q.ScheduleID {
		return nil, errors.NewNotFoundError("retry schedule not found")
	}
	return m.detail, nil
}

type mockResolveUC struct {
	cmd retryusecases.ResolveRetryScheduleCommand
}

func (m *mockResolveUC) Execute(_ context.Context, cmd retryusecases.ResolveRetryScheduleCommand) (*retrydto.RetryScheduleDTO, error) {
	m.cmd = cmd
	return &retrydto.RetryScheduleDTO{ID: cmd.ScheduleID, IsResolved: true, ResolutionReason: string(cmd.Reason)}, nil
}

type fakeLedger struct {
	alerts  []*alert.Alert
	entries []*audit.Entry
}

func (f *fakeLedger) Alerts(context.Context, string, string, int) ([]*alert.Alert, error) {
	return f.alerts, nil
}

func (f *fakeLedger) History(context.Context, audit.EntityType, string) ([]*audit.Entry, error) {
	return f.entries, nil
}

// =====================================================================
// PaymentEventHandler
// =====================================================================

func validEvent() PaymentEventRequest {
	return PaymentEventRequest{
		Type:           ingestusecases.EventPaymentFailed,
		OrganizationID: "org_1",
		PaymentID:      "pay_1",
		ClientID:       "cl_1",
		AmountCents:    4990,
		Currency:       "EUR",
		RejectionCode:  "AM04",
	}
}

func TestPaymentEventHandler_HandleEvent(t *testing.T) {
	t.Run("opened schedule returns 201 and uses idempotency header", func(t *testing.T) {
		uc := &mockHandleEventUC{result: &ingestusecases.HandlePaymentEventResult{Type: ingestusecases.EventPaymentFailed, ScheduleOpened: true}}
		h := NewPaymentEventHandler(uc, &mockApplySignalUC{}, logger.NewNop())

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments/events", validEvent())
		c.Request.Header.Set("Idempotency-Key", "evt_42")
		testutil.SetAuthContext(c, "webhook", "operator", "")
		h.HandleEvent(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "evt_42", uc.cmd.EventID)
		assert.Equal(t, "webhook", uc.cmd.Actor)
	})

	t.Run("duplicate returns 200", func(t *testing.T) {
		uc := &mockHandleEventUC{result: &ingestusecases.HandlePaymentEventResult{Duplicate: true}}
		h := NewPaymentEventHandler(uc, &mockApplySignalUC{}, logger.NewNop())

		req := validEvent()
		req.EventID = "evt_1"
		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments/events", req)
		h.HandleEvent(c)

		require.Equal(t, http.StatusOK, w.Code)
		var out ingestusecases.HandlePaymentEventResult
		resp, err := testutil.DecodeAPIResponse(w, &out)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.True(t, out.Duplicate)
	})

	t.Run("missing payment id is a 400", func(t *testing.T) {
		uc := &mockHandleEventUC{}
		h := NewPaymentEventHandler(uc, &mockApplySignalUC{}, logger.NewNop())

		req := validEvent()
		req.PaymentID = ""
		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments/events", req)
		h.HandleEvent(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, err := testutil.DecodeAPIResponse(w, nil)
		require.NoError(t, err)
		assert.Equal(t, string(errors.ErrorTypeValidation), resp.Error.Type)
	})

	t.Run("organization pinned token cannot post for another organization", func(t *testing.T) {
		uc := &mockHandleEventUC{}
		h := NewPaymentEventHandler(uc, &mockApplySignalUC{}, logger.NewNop())

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments/events", validEvent())
		testutil.SetAuthContext(c, "ops", "operator", "org_2")
		h.HandleEvent(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, uc.cmd.PaymentID)
	})

	t.Run("use case errors keep their status", func(t *testing.T) {
		uc := &mockHandleEventUC{err: errors.NewConfigurationError("no retry policy found")}
		h := NewPaymentEventHandler(uc, &mockApplySignalUC{}, logger.NewNop())

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments/events", validEvent())
		h.HandleEvent(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestPaymentEventHandler_ApplySignal(t *testing.T) {
	signals := &mockApplySignalUC{}
	h := NewPaymentEventHandler(&mockHandleEventUC{}, signals, logger.NewNop())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/signals", SignalRequest{
		OrganizationID: "org_1", Signal: "MANDATE_REVOKED", ContractID: "ct_1",
	})
	h.ApplySignal(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, retry.SignalMandateRevoked, signals.cmd.Signal)
	assert.Equal(t, "ct_1", signals.cmd.ContractID)

	c, w = testutil.NewTestContext(http.MethodPost, "/api/v1/signals", SignalRequest{OrganizationID: "org_1", Signal: "REFUNDED"})
	h.ApplySignal(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =====================================================================
// RoutingHandler
// =====================================================================

func TestRoutingHandler_ListRulesPaginates(t *testing.T) {
	rules := make([]*routingdto.RoutingRuleDTO, 5)
	for i := range rules {
		rules[i] = &routingdto.RoutingRuleDTO{ID: "rr_" + string(rune('a'+i)), Priority: i}
	}
	h := NewRoutingHandler(nil, nil, nil, &mockListRulesUC{rules: rules}, nil, nil, nil, logger.NewNop())

	c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/routing/rules", nil)
	testutil.SetQueryParams(c, map[string]string{"organization_id": "org_1", "page": "2", "page_size": "2"})
	h.ListRules(c)

	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []*routingdto.RoutingRuleDTO `json:"items"`
		Total      int64                        `json:"total"`
		TotalPages int                          `json:"total_pages"`
	}
	_, err := testutil.DecodeAPIResponse(w, &page)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "rr_c", page.Items[0].ID)
}

func TestRoutingHandler_RejectsForeignIDs(t *testing.T) {
	h := NewRoutingHandler(nil, nil, nil, nil, nil, nil, nil, logger.NewNop())
	c, w := testutil.NewTestContext(http.MethodDelete, "/api/v1/routing/rules/rs_1", nil)
	testutil.SetURLParam(c, "id", "rs_1")
	h.DeleteRule(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =====================================================================
// RetryHandler
// =====================================================================

func TestRetryHandler_CancelSchedule(t *testing.T) {
	get := &mockGetScheduleUC{detail: &retrydto.ScheduleDetailDTO{RetryScheduleDTO: &retrydto.RetryScheduleDTO{ID: "rs_1", OrganizationID: "org_1"}}}
	resolve := &mockResolveUC{}
	h := NewRetryHandler(get, nil, resolve, logger.NewNop())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/retry-schedules/rs_1/cancel", nil)
	testutil.SetURLParam(c, "id", "rs_1")
	testutil.SetAuthContext(c, "ops@example.test", "operator", "org_1")
	h.CancelSchedule(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, retry.ResolutionManualCancel, resolve.cmd.Reason)
	assert.Equal(t, "ops@example.test", resolve.cmd.Actor)

	resolve.cmd = retryusecases.ResolveRetryScheduleCommand{}
	c, w = testutil.NewTestContext(http.MethodPost, "/api/v1/retry-schedules/rs_1/cancel", nil)
	testutil.SetURLParam(c, "id", "rs_1")
	testutil.SetAuthContext(c, "ops@example.test", "operator", "org_9")
	h.CancelSchedule(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, resolve.cmd.ScheduleID, "schedules of other organizations are invisible")
}

// =====================================================================
// LedgerHandler
// =====================================================================

func TestLedgerHandler(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{
		alerts: []*alert.Alert{alert.New("org_1", "co_1", alert.CodeRoutingNotFound, alert.SeverityCritical, "no rule", nil, now)},
		entries: []*audit.Entry{
			audit.NewEntry("org_1", audit.EntityDunningRun, "dr_1", "open", "", nil, json.RawMessage(`{"step":0}`), now),
			audit.NewEntry("org_2", audit.EntityDunningRun, "dr_1", "open", "", nil, nil, now),
		},
	}
	h := NewLedgerHandler(ledger, logger.NewNop())

	t.Run("alerts", func(t *testing.T) {
		c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/alerts", nil)
		testutil.SetQueryParams(c, map[string]string{"organization_id": "org_1"})
		h.ListAlerts(c)

		require.Equal(t, http.StatusOK, w.Code)
		var out []AlertResponse
		_, err := testutil.DecodeAPIResponse(w, &out)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "CRITICAL", out[0].Severity)
	})

	t.Run("history filtered to the pinned organization", func(t *testing.T) {
		c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/audit/dunning_run/dr_1", nil)
		testutil.SetURLParam(c, "entity_type", "dunning_run")
		testutil.SetURLParam(c, "id", "dr_1")
		testutil.SetAuthContext(c, "ops", "viewer", "org_1")
		h.History(c)

		require.Equal(t, http.StatusOK, w.Code)
		var out []AuditEntryResponse
		_, err := testutil.DecodeAPIResponse(w, &out)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "system", out[0].Actor)
	})

	t.Run("unknown entity type", func(t *testing.T) {
		c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/audit/user/1", nil)
		testutil.SetURLParam(c, "entity_type", "user")
		h.History(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
