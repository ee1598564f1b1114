package dunning

import "fmt"

type ActionKind string

const (
	ActionRetryPayment          ActionKind = "RETRY_PAYMENT"
	ActionRetryPaymentAndNotify ActionKind = "RETRY_PAYMENT_AND_NOTIFY"
	ActionSuspend               ActionKind = "SUSPEND"
)

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Action is the closed set of things a dunning step can do. Every handler
// implements ActionVisitor, so a new kind fails to compile until all
// handlers support it.
type Action interface {
	Kind() ActionKind
	Accept(v ActionVisitor) error
}

type ActionVisitor interface {
	VisitRetryPayment(a RetryPayment) error
	VisitRetryPaymentAndNotify(a RetryPaymentAndNotify) error
	VisitSuspend(a Suspend) error
}

// RetryPayment counts an attempt and optionally emails the client.
type RetryPayment struct {
	NotifyEmail bool
}

func (RetryPayment) Kind() ActionKind               { return ActionRetryPayment }
func (a RetryPayment) Accept(v ActionVisitor) error { return v.VisitRetryPayment(a) }

// RetryPaymentAndNotify counts an attempt and texts the client, with a payment
// link when IncludePaymentLink is set.
type RetryPaymentAndNotify struct {
	IncludePaymentLink bool
}

func (RetryPaymentAndNotify) Kind() ActionKind { return ActionRetryPaymentAndNotify }
func (a RetryPaymentAndNotify) Accept(v ActionVisitor) error {
	return v.VisitRetryPaymentAndNotify(a)
}

// Suspend pauses the subscription and closes the run.
type Suspend struct{}

func (Suspend) Kind() ActionKind               { return ActionSuspend }
func (a Suspend) Accept(v ActionVisitor) error { return v.VisitSuspend(a) }

// NewAction builds the variant for kind from its persisted flags.
func NewAction(kind ActionKind, channels []Channel, includePaymentLink bool) (Action, error) {
	switch kind {
	case ActionRetryPayment:
		notify := false
		for _, c := range channels {
			if c == ChannelEmail {
				notify = true
			}
		}
		return RetryPayment{NotifyEmail: notify}, nil
	case ActionRetryPaymentAndNotify:
		return RetryPaymentAndNotify{IncludePaymentLink: includePaymentLink}, nil
	case ActionSuspend:
		return Suspend{}, nil
	}
	return nil, fmt.Errorf("unknown dunning action: %q", kind)
}
