package domain

import (
	"errors"
	"time"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeExpired   Outcome = "expired"
)

// Intent is the gateway's handle for a pending payment. The reference ties
// later settlement events back to the order; the redirect URL is where the
// user completes payment.
type Intent struct {
	Reference   string
	RedirectURL string
}

// SettlementEvent is the gateway's asynchronous notification. RawEventID is
// the gateway's idempotency key: a given id is applied at most once.
type SettlementEvent struct {
	RawEventID       string
	PaymentReference string
	Outcome          Outcome
	AmountCents      int64
	ReceivedAt       time.Time
}
