package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zerowastemarket/checkout/internal/payment/domain"
)

// EventStore is the durable settlement-event log. The unique raw_event_id
// index is the at-most-once guarantee against gateway redelivery.
type EventStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewEventStore(log *slog.Logger, pool *pgxpool.Pool) *EventStore {
	return &EventStore{log: log, pool: pool}
}

func (s *EventStore) Seen(ctx context.Context, rawEventID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_events WHERE raw_event_id=$1)`, rawEventID).
		Scan(&seen)
	if err != nil {
		return false, err
	}
	return seen, nil
}

// Record inserts the event and reports whether this raw_event_id was new.
func (s *EventStore) Record(ctx context.Context, ev domain.SettlementEvent, orderID string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `INSERT INTO payment_events (raw_event_id, payment_reference, order_id, outcome, amount_cents, received_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (raw_event_id) DO NOTHING`,
		ev.RawEventID, ev.PaymentReference, orderID, string(ev.Outcome), ev.AmountCents, ev.ReceivedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
