package usecases

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/application/suspension/dto"
	"github.com/payops/payops/internal/application/testutil"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/outbox"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

const org = "org_1"

type fixture struct {
	env *testutil.Env
	uc  *HandleServiceNonPaymentUseCase
}

// newFixture seeds a client holding the anchor service plus two bundled
// services, each with its own schedule and a discounted line on one open
// invoice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	ctx := env.Ctx()
	now := env.Clock.Now()

	bundle, err := billing.NewBundle(org, "Pack Conciergerie", "CONCIERGERIE", []string{"JUSTI_PLUS", "WINCASH"}, now)
	require.NoError(t, err)
	require.NoError(t, env.Bundles.Upsert(ctx, bundle))

	env.SeedPaymentSchedule(t, "ps_conc", org, "cl_1", "ct_1", "sub_conc", "CONCIERGERIE")
	env.SeedPaymentSchedule(t, "ps_justi", org, "cl_1", "ct_1", "sub_justi", "JUSTI_PLUS")
	env.SeedPaymentSchedule(t, "ps_justi_2", org, "cl_1", "ct_1", "sub_justi_2", "JUSTI_PLUS")
	env.SeedPaymentSchedule(t, "ps_win", org, "cl_1", "ct_1", "sub_win", "WINCASH")
	env.SeedPaymentSchedule(t, "ps_other", org, "cl_2", "ct_9", "sub_other", "JUSTI_PLUS")

	require.NoError(t, env.Invoices.Create(ctx, billing.ReconstructInvoice("inv_1", org, "cl_1", "ct_1",
		billing.InvoiceOpen, "EUR", decimal.RequireFromString("0.2"), 5697, 1139, 6836, 1, now, now)))
	for _, l := range []*billing.Line{
		billing.ReconstructLine("ln_conc", org, "cl_1", "ct_1", "inv_1", "CONCIERGERIE", "Conciergerie", 1, 2999, 2999, false, true, 1, now, now),
		billing.ReconstructLine("ln_justi", org, "cl_1", "ct_1", "inv_1", "JUSTI_PLUS", "Justi+", 1, 1499, 1999, true, true, 1, now, now),
		billing.ReconstructLine("ln_win", org, "cl_1", "ct_1", "inv_1", "WINCASH", "Wincash", 1, 1199, 1499, true, true, 1, now, now),
	} {
		require.NoError(t, env.Lines.Create(ctx, l))
	}

	return &fixture{
		env: env,
		uc: NewHandleServiceNonPaymentUseCase(env.Bundles, env.Lines, env.Invoices, env.PaymentSchedules,
			env.Outbox, env.Tx, env.Locker, env.Ledger, env.Clock, env.Logger),
	}
}

func (f *fixture) status(t *testing.T, id string) billing.ScheduleStatus {
	t.Helper()
	s, err := f.env.PaymentSchedules.GetByID(f.env.Ctx(), id)
	require.NoError(t, err)
	return s.Status()
}

func TestNonPayment_AnchorRemovesDiscountWithoutSuspending(t *testing.T) {
	f := newFixture(t)
	ctx := f.env.Ctx()

	out, err := f.uc.Execute(ctx, HandleServiceNonPaymentCommand{OrganizationID: org, ClientID: "cl_1", ServiceCode: "CONCIERGERIE"})
	require.NoError(t, err)
	assert.Equal(t, dto.ActionBundleDiscountRemoved, out.Action)
	assert.Empty(t, out.SuspendedScheduleIDs)

	require.Len(t, out.UpdatedLines, 2)
	prices := map[string]int64{}
	for _, l := range out.UpdatedLines {
		prices[l.ServiceCode] = l.UnitPriceCents
		assert.False(t, l.BundleDiscounted)
	}
	assert.Equal(t, map[string]int64{"JUSTI_PLUS": 1999, "WINCASH": 1499}, prices)

	require.Len(t, out.RecomputedInvoices, 1)
	inv, err := f.env.Invoices.GetByID(ctx, "inv_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2999+1999+1499), inv.SubtotalCents())
	assert.Equal(t, int64(1299), inv.TaxCents())
	assert.Equal(t, inv.SubtotalCents()+inv.TaxCents(), inv.TotalCents())

	for _, id := range []string{"ps_conc", "ps_justi", "ps_justi_2", "ps_win"} {
		assert.Equal(t, billing.ScheduleActive, f.status(t, id), id)
	}

	again, err := f.uc.Execute(ctx, HandleServiceNonPaymentCommand{OrganizationID: org, ClientID: "cl_1", ServiceCode: "CONCIERGERIE"})
	require.NoError(t, err)
	assert.Equal(t, dto.ActionNoAction, again.Action, "discounts are already gone")
}

func TestNonPayment_MemberSuspendsOnlyItsSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := f.env.Ctx()

	out, err := f.uc.Execute(ctx, HandleServiceNonPaymentCommand{OrganizationID: org, ClientID: "cl_1", ServiceCode: "JUSTI_PLUS"})
	require.NoError(t, err)
	assert.Equal(t, dto.ActionSchedulesSuspended, out.Action)
	assert.ElementsMatch(t, []string{"ps_justi", "ps_justi_2"}, out.SuspendedScheduleIDs)
	assert.Empty(t, out.UpdatedLines)

	assert.Equal(t, billing.SchedulePaused, f.status(t, "ps_justi"))
	assert.Equal(t, billing.SchedulePaused, f.status(t, "ps_justi_2"))
	assert.Equal(t, billing.ScheduleActive, f.status(t, "ps_win"))
	assert.Equal(t, billing.ScheduleActive, f.status(t, "ps_conc"))
	assert.Equal(t, billing.ScheduleActive, f.status(t, "ps_other"), "other clients are untouched")

	lines, err := f.env.Lines.ListActiveByClient(ctx, billing.ClientScope{OrganizationID: org, ClientID: "cl_1"})
	require.NoError(t, err)
	for _, l := range lines {
		if l.ServiceCode() != "CONCIERGERIE" {
			assert.True(t, l.IsBundleDiscounted(), "member non-payment keeps bundle pricing")
		}
	}

	tasks := f.env.PendingTasks(t, "nonpayment:")
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, outbox.KindPublishEvent, task.Kind())
	}
}

func TestNonPayment_NoMatchIsNoAction(t *testing.T) {
	f := newFixture(t)

	out, err := f.uc.Execute(f.env.Ctx(), HandleServiceNonPaymentCommand{OrganizationID: org, ClientID: "cl_1", ServiceCode: "PROTECT"})
	require.NoError(t, err)
	assert.Equal(t, dto.ActionNoAction, out.Action)
	assert.Empty(t, out.SuspendedScheduleIDs)
	assert.Empty(t, out.UpdatedLines)
}

func TestNonPayment_ContractScopeAndIdempotency(t *testing.T) {
	f := newFixture(t)
	ctx := f.env.Ctx()
	cmd := HandleServiceNonPaymentCommand{OrganizationID: org, ClientID: "cl_1", ContractID: "ct_other", ServiceCode: "WINCASH", IdempotencyKey: "np_1"}

	out, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, dto.ActionNoAction, out.Action, "no WINCASH schedule on that contract")

	replay, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err, "a replayed key is acknowledged, not failed")
	assert.True(t, replay.Duplicate)
	assert.Equal(t, dto.ActionNoAction, replay.Action)

	_, err = f.uc.Execute(ctx, HandleServiceNonPaymentCommand{OrganizationID: org, ServiceCode: "WINCASH"})
	assert.True(t, apperrors.IsValidationError(err))
}
