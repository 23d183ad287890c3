package application

import (
	"context"
	"time"

	"github.com/zerowastemarket/checkout/internal/inventory/domain"
)

type StockRepository interface {
	GetStock(ctx context.Context, listingID string) (domain.Stock, error)
	// Reserve moves quantity from available to reserved and inserts a held
	// reservation, guarded by the stock record's version token. Returns
	// domain.ErrVersionConflict when the token is stale.
	Reserve(ctx context.Context, stock domain.Stock, quantity int, orderID string, expiresAt time.Time) (domain.Reservation, error)
	// Commit finalizes a held reservation: the quantity leaves the reserved
	// count for good. Committing an already committed reservation is a no-op;
	// a missing or released one is domain.ErrReservationNotFound.
	Commit(ctx context.Context, orderID, listingID string) error
	// Release returns a held reservation's quantity to available. Idempotent:
	// missing, released and committed reservations are left untouched.
	Release(ctx context.Context, orderID, listingID string) error
	ExpiredHeld(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
}

// OrderCanceller lets the expiry sweep cancel orders whose holds lapsed
// without re-importing the order service.
type OrderCanceller interface {
	Cancel(ctx context.Context, orderID, reason string) error
}
