package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerowastemarket/checkout/internal/order/application"
	"github.com/zerowastemarket/checkout/internal/order/domain"
	"github.com/zerowastemarket/checkout/internal/order/infrastructure/memory"
)

func newService(t *testing.T) (*application.Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewService(log, repo), repo
}

func lines() []domain.Line {
	return []domain.Line{{ListingID: "l-1", Quantity: 2, UnitPriceCents: 500}}
}

func TestSuccessPath(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "u-1", lines())
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, o.Status)
	require.Equal(t, int64(1000), o.TotalCents)

	require.NoError(t, svc.MarkAwaitingPayment(ctx, o.ID, "pay-1"))
	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingPayment, got.Status)
	require.Equal(t, "pay-1", got.PaymentReference)

	byRef, err := svc.GetByPaymentReference(ctx, "pay-1")
	require.NoError(t, err)
	require.Equal(t, o.ID, byRef.ID)

	require.NoError(t, svc.Confirm(ctx, o.ID))
	got, err = svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, got.Status)
	require.Equal(t, []string{"OrderConfirmed"}, repo.OutboxEventTypes(o.ID))
}

func TestConfirmRequiresAwaitingPayment(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "u-1", lines())
	require.NoError(t, err)

	err = svc.Confirm(ctx, o.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRepeatedTransitionIsNoOp(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "u-1", lines())
	require.NoError(t, err)
	require.NoError(t, svc.MarkAwaitingPayment(ctx, o.ID, "pay-1"))
	require.NoError(t, svc.Confirm(ctx, o.ID))

	// A redelivered confirm must not error and must not write another event.
	require.NoError(t, svc.Confirm(ctx, o.ID))
	require.Equal(t, []string{"OrderConfirmed"}, repo.OutboxEventTypes(o.ID))
}

func TestTerminalOrdersRejectTransitionsSilently(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "u-1", lines())
	require.NoError(t, err)
	require.NoError(t, svc.MarkAwaitingPayment(ctx, o.ID, "pay-1"))
	require.NoError(t, svc.Confirm(ctx, o.ID))

	require.NoError(t, svc.Cancel(ctx, o.ID, "late cancellation"))
	require.NoError(t, svc.Fail(ctx, o.ID, "late failure"))

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, got.Status)
	require.Equal(t, []string{"OrderConfirmed"}, repo.OutboxEventTypes(o.ID))
}

func TestCancelFromDraft(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "u-1", lines())
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, o.ID, "user abandoned"))

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, got.Status)
	require.Equal(t, "user abandoned", got.FailureReason)
	require.Equal(t, []string{"OrderCancelled"}, repo.OutboxEventTypes(o.ID))
}

func TestUnknownOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Confirm(ctx, "missing"), domain.ErrNotFound)
	_, err := svc.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
