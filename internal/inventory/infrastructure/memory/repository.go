package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zerowastemarket/checkout/internal/inventory/domain"
)

type resKey struct {
	orderID   string
	listingID string
}

// Repository is an in-memory stock store with the same version-token
// semantics as the postgres implementation. Used by tests and local runs.
type Repository struct {
	mu           sync.Mutex
	stock        map[string]domain.Stock
	reservations map[resKey]domain.Reservation
}

func NewRepository() *Repository {
	return &Repository{
		stock:        make(map[string]domain.Stock),
		reservations: make(map[resKey]domain.Reservation),
	}
}

func (r *Repository) Seed(listingID string, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[listingID] = domain.Stock{
		ListingID: listingID,
		Available: available,
		Version:   1,
		UpdatedAt: time.Now().UTC(),
	}
}

func (r *Repository) GetStock(_ context.Context, listingID string) (domain.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stock[listingID]
	if !ok {
		return domain.Stock{}, domain.ErrListingNotFound
	}
	return s, nil
}

func (r *Repository) Reserve(_ context.Context, stock domain.Stock, quantity int, orderID string, expiresAt time.Time) (domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.stock[stock.ListingID]
	if !ok {
		return domain.Reservation{}, domain.ErrListingNotFound
	}
	if current.Version != stock.Version {
		return domain.Reservation{}, domain.ErrVersionConflict
	}
	if current.Available < quantity {
		return domain.Reservation{}, domain.ErrInsufficientStock
	}

	current.Available -= quantity
	current.Reserved += quantity
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.stock[stock.ListingID] = current

	res := domain.Reservation{
		OrderID:   orderID,
		ListingID: stock.ListingID,
		Quantity:  quantity,
		State:     domain.ReservationHeld,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	r.reservations[resKey{orderID, stock.ListingID}] = res
	return res, nil
}

func (r *Repository) Commit(_ context.Context, orderID, listingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := resKey{orderID, listingID}
	res, ok := r.reservations[key]
	if !ok || res.State == domain.ReservationReleased {
		return domain.ErrReservationNotFound
	}
	if res.State == domain.ReservationCommitted {
		return nil
	}

	stock := r.stock[listingID]
	stock.Reserved -= res.Quantity
	stock.Version++
	stock.UpdatedAt = time.Now().UTC()
	r.stock[listingID] = stock

	res.State = domain.ReservationCommitted
	r.reservations[key] = res
	return nil
}

func (r *Repository) Release(_ context.Context, orderID, listingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := resKey{orderID, listingID}
	res, ok := r.reservations[key]
	if !ok || res.State != domain.ReservationHeld {
		return nil
	}

	stock := r.stock[listingID]
	stock.Available += res.Quantity
	stock.Reserved -= res.Quantity
	stock.Version++
	stock.UpdatedAt = time.Now().UTC()
	r.stock[listingID] = stock

	res.State = domain.ReservationReleased
	r.reservations[key] = res
	return nil
}

func (r *Repository) ExpiredHeld(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.Expired(now) {
			out = append(out, res)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
