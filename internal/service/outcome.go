package service

import "github.com/punchamoorthee/lightningpay/internal/domain"

// Source names the entry point that asked for a settlement check.
type Source string

const (
	SourcePoll    Source = "poll"
	SourceWebhook Source = "webhook"
)

// Webhook event types published by Strike for receive requests.
const (
	EventReceivePending   = "receive-request.receive-pending"
	EventReceiveCompleted = "receive-request.receive-completed"
)

// Trigger is a normalized request to check settlement of RequestID.
// Event is set only for webhook triggers.
type Trigger struct {
	Source    Source
	RequestID string
	Event     string
}

func (t Trigger) completedWebhook() bool {
	return t.Source == SourceWebhook && t.Event == EventReceiveCompleted
}

type OutcomeKind string

const (
	OutcomeAlreadyPaid OutcomeKind = "already_paid"
	OutcomeSettledNow  OutcomeKind = "settled_now"
	OutcomePending     OutcomeKind = "pending"
	OutcomeWaiting     OutcomeKind = "waiting"
	OutcomeAPIError    OutcomeKind = "api_error"
	// OutcomeInvalid covers unknown orders, missing payment data and
	// triggers naming a superseded request.
	OutcomeInvalid OutcomeKind = "invalid"
	// OutcomeFailed is an internal persistence failure.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the result of a reconcile call. Reconcile never returns an
// error; every failure is expressed here.
type Outcome struct {
	Kind     OutcomeKind
	Detail   string
	Receipts []domain.Receipt

	// Err is the store sentinel behind an invalid outcome, if any.
	Err error
	// Expired is set when the active request is past its expiry and unsettled.
	Expired bool

	// Degraded is set when the order was settled on an unverified webhook.
	Degraded bool
}

// Paid reports whether the order is paid after this outcome.
func (o Outcome) Paid() bool {
	return o.Kind == OutcomeAlreadyPaid || o.Kind == OutcomeSettledNow
}

// States lists the raw receipt states seen during the check.
func (o Outcome) States() []string {
	states := make([]string, 0, len(o.Receipts))
	for _, r := range o.Receipts {
		s := r.State
		if s == "" {
			s = "UNKNOWN"
		}
		states = append(states, s)
	}
	return states
}
