package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order transition")
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusConfirmed       Status = "confirmed"
	StatusCancelled       Status = "cancelled"
	StatusFailed          Status = "failed"
)

// transitions maps a target status to the statuses it may be entered from.
var transitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusDraft},
	StatusConfirmed:       {StatusAwaitingPayment},
	StatusFailed:          {StatusDraft, StatusAwaitingPayment},
	StatusCancelled:       {StatusDraft, StatusAwaitingPayment},
}

func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// AllowedFrom returns the statuses an order must currently be in for a
// transition to the given status to apply.
func AllowedFrom(to Status) []Status {
	return transitions[to]
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

type Line struct {
	ListingID      string
	Quantity       int
	UnitPriceCents int64
}

type Order struct {
	ID               string
	UserID           string
	Lines            []Line
	TotalCents       int64
	Status           Status
	PaymentReference string
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewOrder(id, userID string, lines []Line) Order {
	var total int64
	for _, line := range lines {
		total += int64(line.Quantity) * line.UnitPriceCents
	}
	now := time.Now().UTC()
	return Order{
		ID:         id,
		UserID:     userID,
		Lines:      lines,
		TotalCents: total,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
