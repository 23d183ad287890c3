package application

import (
	"context"

	cartdomain "github.com/zerowastemarket/checkout/internal/cart/domain"
	invdomain "github.com/zerowastemarket/checkout/internal/inventory/domain"
	orderdomain "github.com/zerowastemarket/checkout/internal/order/domain"
	paydomain "github.com/zerowastemarket/checkout/internal/payment/domain"
)

type CartAggregator interface {
	BuildDraft(ctx context.Context, userID string) (cartdomain.Draft, error)
}

type InventoryLedger interface {
	Reserve(ctx context.Context, listingID string, quantity int, orderID string) (invdomain.Reservation, error)
	Commit(ctx context.Context, orderID, listingID string, quantity int) error
	Release(ctx context.Context, orderID, listingID string, quantity int) error
}

type Orders interface {
	Create(ctx context.Context, userID string, lines []orderdomain.Line) (orderdomain.Order, error)
	Get(ctx context.Context, id string) (orderdomain.Order, error)
	GetByPaymentReference(ctx context.Context, ref string) (orderdomain.Order, error)
	MarkAwaitingPayment(ctx context.Context, id, paymentReference string) error
	Confirm(ctx context.Context, id string) error
	Fail(ctx context.Context, id, reason string) error
	Cancel(ctx context.Context, id, reason string) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, orderID string, amountCents int64) (paydomain.Intent, error)
}

// SettlementLog is the durable, deduplicated record of gateway events.
type SettlementLog interface {
	Seen(ctx context.Context, rawEventID string) (bool, error)
	Record(ctx context.Context, ev paydomain.SettlementEvent, orderID string) (bool, error)
}

// DuplicateSuppressor is a best-effort fast path in front of SettlementLog.
type DuplicateSuppressor interface {
	Seen(ctx context.Context, rawEventID string) (bool, error)
	Mark(ctx context.Context, rawEventID string) error
}
