package domain

import "errors"

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrPriceChanged    = errors.New("listing price changed since added to cart")
	ErrListingNotFound = errors.New("carted listing no longer exists")
)

// Line is a user's cart entry, unique per (user, listing). The recorded
// unit price is what the user saw when adding the listing; checkout never
// charges it without re-checking the listing.
type Line struct {
	UserID         string
	ListingID      string
	Quantity       int
	UnitPriceCents int64
}

type Listing struct {
	ID         string
	SellerID   string
	Title      string
	PriceCents int64
}

type DraftLine struct {
	ListingID      string
	Quantity       int
	UnitPriceCents int64
}

// Draft is a priced, validated snapshot of a cart, ready to become an order.
type Draft struct {
	UserID     string
	Lines      []DraftLine
	TotalCents int64
}
