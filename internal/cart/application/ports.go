package application

import (
	"context"

	"github.com/zerowastemarket/checkout/internal/cart/domain"
)

type CartReader interface {
	Lines(ctx context.Context, userID string) ([]domain.Line, error)
}

type ListingReader interface {
	Listing(ctx context.Context, listingID string) (domain.Listing, error)
}
