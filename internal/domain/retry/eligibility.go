package retry

// Eligibility classifies whether a rejected payment may be retried.
type Eligibility string

const (
	Eligible                     Eligibility = "ELIGIBLE"
	NotEligibleReasonCode        Eligibility = "NOT_ELIGIBLE_REASON_CODE"
	NotEligibleMaxAttempts       Eligibility = "NOT_ELIGIBLE_MAX_ATTEMPTS"
	NotEligiblePaymentSettled    Eligibility = "NOT_ELIGIBLE_PAYMENT_SETTLED"
	NotEligibleContractCancelled Eligibility = "NOT_ELIGIBLE_CONTRACT_CANCELLED"
	NotEligibleMandateRevoked    Eligibility = "NOT_ELIGIBLE_MANDATE_REVOKED"
	NotEligibleClientBlocked     Eligibility = "NOT_ELIGIBLE_CLIENT_BLOCKED"
	NotEligibleManualCancel      Eligibility = "NOT_ELIGIBLE_MANUAL_CANCEL"
)

// ResolutionReason records why a schedule reached its terminal state.
type ResolutionReason string

const (
	ResolutionPaymentSucceeded  ResolutionReason = "PAYMENT_SUCCEEDED"
	ResolutionPaymentSettled    ResolutionReason = "PAYMENT_SETTLED"
	ResolutionContractCancelled ResolutionReason = "CONTRACT_CANCELLED"
	ResolutionMandateRevoked    ResolutionReason = "MANDATE_REVOKED"
	ResolutionClientBlocked     ResolutionReason = "CLIENT_BLOCKED"
	ResolutionNonRetryable      ResolutionReason = "NON_RETRYABLE_REASON_CODE"
	ResolutionMaxAttempts       ResolutionReason = "MAX_ATTEMPTS_REACHED"
	ResolutionExhausted         ResolutionReason = "RETRY_WINDOW_EXHAUSTED"
	ResolutionManualCancel      ResolutionReason = "MANUAL_CANCEL"
)

// Signal is an external event that may end a schedule.
type Signal string

const (
	SignalPaymentSettled    Signal = "PAYMENT_SETTLED"
	SignalContractCancelled Signal = "CONTRACT_CANCELLED"
	SignalMandateRevoked    Signal = "MANDATE_REVOKED"
	SignalClientBlocked     Signal = "CLIENT_BLOCKED"
)

func (s Signal) Valid() bool {
	switch s {
	case SignalPaymentSettled, SignalContractCancelled, SignalMandateRevoked, SignalClientBlocked:
		return true
	}
	return false
}

// outcome maps a signal to the eligibility and resolution it produces.
func (s Signal) outcome() (Eligibility, ResolutionReason) {
	switch s {
	case SignalPaymentSettled:
		return NotEligiblePaymentSettled, ResolutionPaymentSettled
	case SignalContractCancelled:
		return NotEligibleContractCancelled, ResolutionContractCancelled
	case SignalMandateRevoked:
		return NotEligibleMandateRevoked, ResolutionMandateRevoked
	default:
		return NotEligibleClientBlocked, ResolutionClientBlocked
	}
}
