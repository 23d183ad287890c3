package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zerowastemarket/checkout/internal/inventory/domain"
)

const reserveAttempts = 5

type Service struct {
	log     *slog.Logger
	repo    StockRepository
	holdFor time.Duration
}

func NewService(log *slog.Logger, repo StockRepository, holdFor time.Duration) *Service {
	return &Service{log: log, repo: repo, holdFor: holdFor}
}

// Reserve holds quantity for orderID against a listing. The read-validate-swap
// loop retries on version conflicts so concurrent checkouts for the same
// listing serialize; exactly one wins the last unit.
func (s *Service) Reserve(ctx context.Context, listingID string, quantity int, orderID string) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, fmt.Errorf("reserve %s: quantity must be positive", listingID)
	}
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		stock, err := s.repo.GetStock(ctx, listingID)
		if err != nil {
			return domain.Reservation{}, err
		}
		if stock.Available < quantity {
			return domain.Reservation{}, fmt.Errorf("listing %s: %w", listingID, domain.ErrInsufficientStock)
		}
		res, err := s.repo.Reserve(ctx, stock, quantity, orderID, time.Now().UTC().Add(s.holdFor))
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return domain.Reservation{}, err
		}
		s.log.Info("stock reserved", "listing_id", listingID, "order_id", orderID, "quantity", quantity)
		return res, nil
	}
	return domain.Reservation{}, fmt.Errorf("listing %s: reserve contention: %w", listingID, domain.ErrVersionConflict)
}

func (s *Service) Commit(ctx context.Context, orderID, listingID string, quantity int) error {
	if err := s.repo.Commit(ctx, orderID, listingID); err != nil {
		return fmt.Errorf("commit %s/%s qty %d: %w", orderID, listingID, quantity, err)
	}
	s.log.Info("reservation committed", "order_id", orderID, "listing_id", listingID)
	return nil
}

func (s *Service) Release(ctx context.Context, orderID, listingID string, quantity int) error {
	if err := s.repo.Release(ctx, orderID, listingID); err != nil {
		return fmt.Errorf("release %s/%s qty %d: %w", orderID, listingID, quantity, err)
	}
	s.log.Info("reservation released", "order_id", orderID, "listing_id", listingID)
	return nil
}

// SweepExpired cancels orders whose holds expired, then returns their stock.
// The cancel lands first: a hold that outlives a failed cancel stays held, so
// the next tick retries both steps, and cancelling an order a late settlement
// already terminated is a no-op. Returns the number of reservations released.
func (s *Service) SweepExpired(ctx context.Context, orders OrderCanceller, batch int) (int, error) {
	expired, err := s.repo.ExpiredHeld(ctx, time.Now().UTC(), batch)
	if err != nil {
		return 0, err
	}
	released := 0
	cancelled := make(map[string]bool, len(expired))
	for _, res := range expired {
		ok, seen := cancelled[res.OrderID]
		if !seen {
			err := orders.Cancel(ctx, res.OrderID, "reservation hold expired")
			ok = err == nil
			cancelled[res.OrderID] = ok
			if err != nil {
				s.log.Error("expiry cancel failed", "order_id", res.OrderID, "err", err)
			}
		}
		if !ok {
			continue
		}
		if err := s.repo.Release(ctx, res.OrderID, res.ListingID); err != nil {
			s.log.Error("expired release failed", "order_id", res.OrderID, "listing_id", res.ListingID, "err", err)
			continue
		}
		released++
	}
	return released, nil
}
