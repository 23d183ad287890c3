package domain

import (
	"errors"
	"time"
)

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrVersionConflict signals a stale optimistic-concurrency token; callers
	// re-read the stock record and retry.
	ErrVersionConflict = errors.New("stock version conflict")
)

// Stock is the ledger record for one listing. Version increments on every
// mutation and serves as the compare-and-swap token.
type Stock struct {
	ListingID string
	Available int
	Reserved  int
	Version   int64
	UpdatedAt time.Time
}

type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
)

// Reservation records which quantity is held against which draft order so the
// hold can be released on timeout or cancellation, or committed on settlement.
type Reservation struct {
	OrderID   string
	ListingID string
	Quantity  int
	State     ReservationState
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r Reservation) Expired(now time.Time) bool {
	return r.State == ReservationHeld && now.After(r.ExpiresAt)
}
