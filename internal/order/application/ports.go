package application

import (
	"context"

	"github.com/zerowastemarket/checkout/internal/order/domain"
)

type Repository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByPaymentReference(ctx context.Context, ref string) (domain.Order, error)
	// UpdateStatus applies the transition only when the order is currently in
	// one of the from statuses; it reports whether a row was updated.
	UpdateStatus(ctx context.Context, id string, from []domain.Status, to domain.Status, payRef, reason string) (bool, error)
	// UpdateStatusWithOutbox is UpdateStatus plus an outbox row written in the
	// same transaction. No outbox row is written when the transition does not apply.
	UpdateStatusWithOutbox(ctx context.Context, id string, from []domain.Status, to domain.Status, reason, eventType string, payload []byte) (bool, error)
}
