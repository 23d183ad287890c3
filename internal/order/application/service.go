package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zerowastemarket/checkout/internal/order/domain"
)

type Service struct {
	log  *slog.Logger
	repo Repository
}

func NewService(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) Create(ctx context.Context, userID string, lines []domain.Line) (domain.Order, error) {
	o := domain.NewOrder(uuid.NewString(), userID, lines)
	if err := s.repo.Create(ctx, o); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.log.Info("order created", "order_id", o.ID, "user_id", userID, "total_cents", o.TotalCents)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByPaymentReference(ctx context.Context, ref string) (domain.Order, error) {
	return s.repo.GetByPaymentReference(ctx, ref)
}

func (s *Service) MarkAwaitingPayment(ctx context.Context, id, paymentReference string) error {
	applied, err := s.repo.UpdateStatus(ctx, id, domain.AllowedFrom(domain.StatusAwaitingPayment), domain.StatusAwaitingPayment, paymentReference, "")
	if err != nil {
		return err
	}
	if !applied {
		return s.explainRejection(ctx, id, domain.StatusAwaitingPayment)
	}
	return nil
}

func (s *Service) Confirm(ctx context.Context, id string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(domain.OrderConfirmed{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalCents: o.TotalCents,
		Lines:      o.Lines,
	})
	if err != nil {
		return err
	}
	applied, err := s.repo.UpdateStatusWithOutbox(ctx, id, domain.AllowedFrom(domain.StatusConfirmed), domain.StatusConfirmed, "", "OrderConfirmed", payload)
	if err != nil {
		return err
	}
	if !applied {
		return s.explainRejection(ctx, id, domain.StatusConfirmed)
	}
	s.log.Info("order confirmed", "order_id", id)
	return nil
}

func (s *Service) Fail(ctx context.Context, id, reason string) error {
	return s.terminate(ctx, id, domain.StatusFailed, reason, "OrderFailed")
}

func (s *Service) Cancel(ctx context.Context, id, reason string) error {
	return s.terminate(ctx, id, domain.StatusCancelled, reason, "OrderCancelled")
}

func (s *Service) terminate(ctx context.Context, id string, to domain.Status, reason, eventType string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	var payload []byte
	if to == domain.StatusFailed {
		payload, err = json.Marshal(domain.OrderFailed{OrderID: o.ID, UserID: o.UserID, Reason: reason})
	} else {
		payload, err = json.Marshal(domain.OrderCancelled{OrderID: o.ID, UserID: o.UserID, Reason: reason})
	}
	if err != nil {
		return err
	}
	applied, err := s.repo.UpdateStatusWithOutbox(ctx, id, domain.AllowedFrom(to), to, reason, eventType, payload)
	if err != nil {
		return err
	}
	if !applied {
		return s.explainRejection(ctx, id, to)
	}
	s.log.Info("order terminated", "order_id", id, "status", to, "reason", reason)
	return nil
}

// explainRejection decides what a rejected conditional update means. A repeat
// of a transition that already landed, or any attempt against a terminal
// order, is swallowed so redelivered settlement events stay harmless.
func (s *Service) explainRejection(ctx context.Context, id string, to domain.Status) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status == to {
		return nil
	}
	if o.Status.Terminal() {
		s.log.Warn("transition attempted on terminal order", "order_id", id, "status", o.Status, "attempted", to)
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, to)
}
