package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func line(id, invoice, code string, qty int, unit, catalog int64, discounted bool) *Line {
	return ReconstructLine(id, "org_1", "cl_1", "ct_1", invoice, code, code, qty, unit, catalog, discounted, true, 1, now, now)
}

func TestLineRemoveBundleDiscount(t *testing.T) {
	l := line("ln_1", "inv_1", "WINCASH", 1, 800, 1000, true)
	assert.True(t, l.RemoveBundleDiscount(now))
	assert.Equal(t, int64(1000), l.UnitPriceCents())
	assert.False(t, l.IsBundleDiscounted())
	assert.False(t, l.RemoveBundleDiscount(now), "second removal is a no-op")
}

func TestInvoiceRecompute(t *testing.T) {
	inv := ReconstructInvoice("inv_1", "org_1", "cl_1", "ct_1", InvoiceOpen, "EUR",
		decimal.RequireFromString("0.2"), 0, 0, 0, 1, now, now)
	lines := []*Line{
		line("ln_1", "inv_1", "CONCIERGERIE", 1, 2999, 2999, false),
		line("ln_2", "inv_1", "JUSTI_PLUS", 2, 450, 500, true),
		line("ln_3", "inv_2", "WINCASH", 1, 999, 999, false),
	}

	require.NoError(t, inv.Recompute(lines, now))
	assert.Equal(t, int64(3899), inv.SubtotalCents())
	assert.Equal(t, int64(780), inv.TaxCents())
	assert.Equal(t, int64(4679), inv.TotalCents())

	lines[1].RemoveBundleDiscount(now)
	require.NoError(t, inv.Recompute(lines, now))
	assert.Equal(t, int64(3999), inv.SubtotalCents())
	assert.Equal(t, int64(4799), inv.TotalCents())

	paid := ReconstructInvoice("inv_3", "org_1", "cl_1", "", InvoicePaid, "EUR", decimal.Zero, 0, 0, 0, 1, now, now)
	assert.Error(t, paid.Recompute(lines, now))
}

func TestPaymentSchedulePauseAndReactivate(t *testing.T) {
	s, err := NewPaymentSchedule("ps_1", "org_1", "cl_1", "ct_1", "sub_1", "JUSTI_PLUS", now)
	require.NoError(t, err)
	assert.Equal(t, "JUSTI_PLUS", s.ServiceCode())

	s.IncrementRetryCount(now)
	s.IncrementRetryCount(now)
	assert.True(t, s.Pause("dunning suspension", now))
	assert.False(t, s.Pause("again", now))
	assert.True(t, s.IsPaused())

	assert.True(t, s.Reactivate(now))
	assert.Equal(t, 0, s.RetryCount())
	assert.False(t, s.Reactivate(now))

	md := s.Metadata()
	md["service_code"] = "mutated"
	assert.Equal(t, "JUSTI_PLUS", s.ServiceCode(), "metadata getter returns a copy")
}

func TestBundle(t *testing.T) {
	b, err := NewBundle("org_1", "family", "CONCIERGERIE", []string{"JUSTI_PLUS", "WINCASH"}, now)
	require.NoError(t, err)
	assert.True(t, b.IsAnchor("concierGERIE"))
	assert.False(t, b.IsAnchor("WINCASH"))
	assert.True(t, b.Covers("wincash"))
	assert.False(t, b.Covers("OTHER"))

	open, err := NewBundle("org_1", "open", "CONCIERGERIE", nil, now)
	require.NoError(t, err)
	assert.True(t, open.Covers("ANYTHING"))
}
