package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	orderdomain "github.com/zerowastemarket/checkout/internal/order/domain"
	paydomain "github.com/zerowastemarket/checkout/internal/payment/domain"
	"github.com/zerowastemarket/checkout/pkg/metrics"
)

// Orchestrator runs the two checkout protocols: the synchronous initiation
// that converts a cart into an awaiting-payment order with stock held, and
// the asynchronous settlement reconciliation driven by gateway events.
type Orchestrator struct {
	log         *slog.Logger
	carts       CartAggregator
	inventory   InventoryLedger
	orders      Orders
	gateway     PaymentGateway
	settlements SettlementLog
	dups        DuplicateSuppressor
	metrics     *metrics.CheckoutMetrics
}

func NewOrchestrator(
	log *slog.Logger,
	carts CartAggregator,
	inventory InventoryLedger,
	orders Orders,
	gateway PaymentGateway,
	settlements SettlementLog,
	dups DuplicateSuppressor,
	m *metrics.CheckoutMetrics,
) *Orchestrator {
	return &Orchestrator{
		log:         log,
		carts:       carts,
		inventory:   inventory,
		orders:      orders,
		gateway:     gateway,
		settlements: settlements,
		dups:        dups,
		metrics:     m,
	}
}

type Result struct {
	OrderID          string
	PaymentReference string
	RedirectURL      string
}

// Checkout converts the user's cart into an order awaiting payment.
// Reservations are all-or-nothing across lines: any failure releases every
// hold already taken for this order and cancels it.
func (o *Orchestrator) Checkout(ctx context.Context, userID string) (Result, error) {
	draft, err := o.carts.BuildDraft(ctx, userID)
	if err != nil {
		o.metrics.Checkouts.WithLabelValues("rejected").Inc()
		return Result{}, err
	}

	lines := make([]orderdomain.Line, 0, len(draft.Lines))
	for _, dl := range draft.Lines {
		lines = append(lines, orderdomain.Line{
			ListingID:      dl.ListingID,
			Quantity:       dl.Quantity,
			UnitPriceCents: dl.UnitPriceCents,
		})
	}
	ord, err := o.orders.Create(ctx, userID, lines)
	if err != nil {
		o.metrics.Checkouts.WithLabelValues("error").Inc()
		return Result{}, err
	}

	var reserved []orderdomain.Line
	for _, line := range ord.Lines {
		if _, err := o.inventory.Reserve(ctx, line.ListingID, line.Quantity, ord.ID); err != nil {
			o.rollback(ctx, ord.ID, reserved, "stock unavailable")
			o.metrics.Checkouts.WithLabelValues("out_of_stock").Inc()
			return Result{}, err
		}
		reserved = append(reserved, line)
	}

	intent, err := o.gateway.CreateIntent(ctx, ord.ID, ord.TotalCents)
	if err != nil {
		o.rollback(ctx, ord.ID, reserved, "payment gateway unavailable")
		o.metrics.Checkouts.WithLabelValues("gateway_error").Inc()
		return Result{}, err
	}

	if err := o.orders.MarkAwaitingPayment(ctx, ord.ID, intent.Reference); err != nil {
		o.rollback(ctx, ord.ID, reserved, "checkout aborted")
		o.metrics.Checkouts.WithLabelValues("error").Inc()
		return Result{}, err
	}

	o.log.Info("checkout initiated", "order_id", ord.ID, "user_id", userID,
		"payment_reference", intent.Reference, "total_cents", ord.TotalCents)
	o.metrics.Checkouts.WithLabelValues("accepted").Inc()
	return Result{OrderID: ord.ID, PaymentReference: intent.Reference, RedirectURL: intent.RedirectURL}, nil
}

func (o *Orchestrator) rollback(ctx context.Context, orderID string, reserved []orderdomain.Line, reason string) {
	for _, line := range reserved {
		if err := o.inventory.Release(ctx, orderID, line.ListingID, line.Quantity); err != nil {
			o.log.Error("rollback release failed", "order_id", orderID, "listing_id", line.ListingID, "err", err)
		}
	}
	if err := o.orders.Cancel(ctx, orderID, reason); err != nil {
		o.log.Error("rollback cancel failed", "order_id", orderID, "err", err)
	}
}

// HandleSettlement reconciles one gateway event. Inventory always moves
// before the order's terminal transition, every step tolerates re-execution,
// and the event is durably recorded before a nil return lets the transport
// acknowledge the gateway. Any error means the gateway should redeliver.
func (o *Orchestrator) HandleSettlement(ctx context.Context, ev paydomain.SettlementEvent) error {
	if seen, err := o.dups.Seen(ctx, ev.RawEventID); err != nil {
		o.log.Warn("duplicate fast-path check failed", "raw_event_id", ev.RawEventID, "err", err)
	} else if seen {
		o.log.Info("settlement duplicate suppressed", "raw_event_id", ev.RawEventID)
		o.metrics.Settlements.WithLabelValues("duplicate").Inc()
		return nil
	}
	if seen, err := o.settlements.Seen(ctx, ev.RawEventID); err != nil {
		return err
	} else if seen {
		o.log.Info("settlement already applied", "raw_event_id", ev.RawEventID)
		o.metrics.Settlements.WithLabelValues("duplicate").Inc()
		return nil
	}

	ord, err := o.orders.GetByPaymentReference(ctx, ev.PaymentReference)
	if errors.Is(err, orderdomain.ErrNotFound) {
		// The intent exists but the order row is not visible yet: the event
		// outran the checkout request. Redelivery will find it.
		return fmt.Errorf("settlement %s: no order for reference %s", ev.RawEventID, ev.PaymentReference)
	}
	if err != nil {
		return err
	}

	if ord.Status.Terminal() {
		o.log.Info("settlement for terminal order ignored",
			"order_id", ord.ID, "status", ord.Status, "raw_event_id", ev.RawEventID)
		o.metrics.Settlements.WithLabelValues("late").Inc()
		return o.finish(ctx, ev, ord.ID)
	}

	switch ev.Outcome {
	case paydomain.OutcomeSucceeded:
		for _, line := range ord.Lines {
			if err := o.inventory.Commit(ctx, ord.ID, line.ListingID, line.Quantity); err != nil {
				return err
			}
		}
		if err := o.orders.Confirm(ctx, ord.ID); err != nil {
			return err
		}
		o.metrics.Settlements.WithLabelValues("succeeded").Inc()
	case paydomain.OutcomeFailed, paydomain.OutcomeExpired:
		for _, line := range ord.Lines {
			if err := o.inventory.Release(ctx, ord.ID, line.ListingID, line.Quantity); err != nil {
				return err
			}
		}
		if err := o.orders.Fail(ctx, ord.ID, fmt.Sprintf("payment %s", ev.Outcome)); err != nil {
			return err
		}
		o.metrics.Settlements.WithLabelValues(string(ev.Outcome)).Inc()
	default:
		return fmt.Errorf("settlement %s: unknown outcome %q", ev.RawEventID, ev.Outcome)
	}

	return o.finish(ctx, ev, ord.ID)
}

func (o *Orchestrator) finish(ctx context.Context, ev paydomain.SettlementEvent, orderID string) error {
	if _, err := o.settlements.Record(ctx, ev, orderID); err != nil {
		return err
	}
	if err := o.dups.Mark(ctx, ev.RawEventID); err != nil {
		o.log.Warn("duplicate fast-path mark failed", "raw_event_id", ev.RawEventID, "err", err)
	}
	return nil
}

// Order exposes order lookups for the status endpoint.
func (o *Orchestrator) Order(ctx context.Context, id string) (orderdomain.Order, error) {
	return o.orders.Get(ctx, id)
}
