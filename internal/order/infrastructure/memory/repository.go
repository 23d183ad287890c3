package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zerowastemarket/checkout/internal/order/domain"
)

type outboxRow struct {
	OrderID   string
	EventType string
	Payload   []byte
}

// Repository keeps orders in memory with the same conditional-update
// semantics as the postgres implementation. Used by tests and local runs.
type Repository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	outbox []outboxRow
}

func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func (r *Repository) Create(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (r *Repository) GetByPaymentReference(_ context.Context, ref string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentReference != "" && o.PaymentReference == ref {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (r *Repository) UpdateStatus(_ context.Context, id string, from []domain.Status, to domain.Status, payRef, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(id, from, to, payRef, reason), nil
}

func (r *Repository) UpdateStatusWithOutbox(_ context.Context, id string, from []domain.Status, to domain.Status, reason, eventType string, payload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.update(id, from, to, "", reason) {
		return false, nil
	}
	r.outbox = append(r.outbox, outboxRow{OrderID: id, EventType: eventType, Payload: payload})
	return true, nil
}

func (r *Repository) update(id string, from []domain.Status, to domain.Status, payRef, reason string) bool {
	o, ok := r.orders[id]
	if !ok {
		return false
	}
	matched := false
	for _, s := range from {
		if o.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	o.Status = to
	if payRef != "" {
		o.PaymentReference = payRef
	}
	if reason != "" {
		o.FailureReason = reason
	}
	o.UpdatedAt = time.Now().UTC()
	r.orders[id] = o
	return true
}

// All returns a snapshot of every stored order.
func (r *Repository) All() []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out
}

// OutboxEventTypes lists written outbox event types for one order, in order.
func (r *Repository) OutboxEventTypes(orderID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, row := range r.outbox {
		if row.OrderID == orderID {
			out = append(out, row.EventType)
		}
	}
	return out
}
