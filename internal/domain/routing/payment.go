package routing

import (
	"strconv"
	"strings"
	"time"
)

// Attribute names a routable payment property.
type Attribute string

const (
	AttrSourceChannel     Attribute = "source_channel"
	AttrProductCode       Attribute = "product_code"
	AttrDebitLotCode      Attribute = "debit_lot_code"
	AttrRiskTier          Attribute = "risk_tier"
	AttrPreferredDebitDay Attribute = "preferred_debit_day"
	AttrContractStartDate Attribute = "contract_start_date"
)

// Contract is the routing view of the contract a payment belongs to.
type Contract struct {
	ID                string     `json:"id"`
	SourceChannel     string     `json:"source_channel,omitempty"`
	ProductCode       string     `json:"product_code,omitempty"`
	DebitLotCode      string     `json:"debit_lot_code,omitempty"`
	RiskTier          string     `json:"risk_tier,omitempty"`
	PreferredDebitDay int        `json:"preferred_debit_day,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
}

// Payment is the input of a routing evaluation.
type Payment struct {
	ID                string            `json:"id"`
	OrganizationID    string            `json:"organization_id"`
	ClientID          string            `json:"client_id"`
	ContractID        string            `json:"contract_id,omitempty"`
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency,omitempty"`
	SourceChannel     string            `json:"source_channel,omitempty"`
	ProductCode       string            `json:"product_code,omitempty"`
	DebitLotCode      string            `json:"debit_lot_code,omitempty"`
	RiskTier          string            `json:"risk_tier,omitempty"`
	PreferredDebitDay int               `json:"preferred_debit_day,omitempty"`
	Contract          *Contract         `json:"contract,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Source tells where a resolved attribute value came from.
type Source string

const (
	SourcePayment  Source = "payment"
	SourceContract Source = "contract"
	SourceMetadata Source = "metadata"
	SourceNone     Source = ""
)

// Resolve returns the first non-empty value for attr, looking at the payment,
// then its contract, then the metadata bag.
func (p Payment) Resolve(attr Attribute) (string, Source) {
	if v := p.paymentValue(attr); v != "" {
		return v, SourcePayment
	}
	if p.Contract != nil {
		if v := p.Contract.value(attr); v != "" {
			return v, SourceContract
		}
	}
	if v := strings.TrimSpace(p.Metadata[string(attr)]); v != "" {
		return v, SourceMetadata
	}
	return "", SourceNone
}

func (p Payment) paymentValue(attr Attribute) string {
	switch attr {
	case AttrSourceChannel:
		return strings.TrimSpace(p.SourceChannel)
	case AttrProductCode:
		return strings.TrimSpace(p.ProductCode)
	case AttrDebitLotCode:
		return strings.TrimSpace(p.DebitLotCode)
	case AttrRiskTier:
		return strings.TrimSpace(p.RiskTier)
	case AttrPreferredDebitDay:
		return dayString(p.PreferredDebitDay)
	}
	return ""
}

func (c Contract) value(attr Attribute) string {
	switch attr {
	case AttrSourceChannel:
		return strings.TrimSpace(c.SourceChannel)
	case AttrProductCode:
		return strings.TrimSpace(c.ProductCode)
	case AttrDebitLotCode:
		return strings.TrimSpace(c.DebitLotCode)
	case AttrRiskTier:
		return strings.TrimSpace(c.RiskTier)
	case AttrPreferredDebitDay:
		return dayString(c.PreferredDebitDay)
	case AttrContractStartDate:
		if c.StartDate != nil && !c.StartDate.IsZero() {
			return c.StartDate.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

func dayString(d int) string {
	if d <= 0 {
		return ""
	}
	return strconv.Itoa(d)
}

// contractStart parses the contract start date from whichever source holds it.
func (p Payment) contractStart() (time.Time, Source, bool) {
	raw, src := p.Resolve(AttrContractStartDate)
	if raw == "" {
		return time.Time{}, SourceNone, false
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, src, true
		}
	}
	return time.Time{}, src, false
}
