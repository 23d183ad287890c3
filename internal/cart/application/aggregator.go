package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zerowastemarket/checkout/internal/cart/domain"
)

// Aggregator turns a user's cart into an order draft. Prices come from the
// listings, never from the cart row or the client; a drift between the two
// needs explicit user re-confirmation.
type Aggregator struct {
	log      *slog.Logger
	carts    CartReader
	listings ListingReader
}

func NewAggregator(log *slog.Logger, carts CartReader, listings ListingReader) *Aggregator {
	return &Aggregator{log: log, carts: carts, listings: listings}
}

func (a *Aggregator) BuildDraft(ctx context.Context, userID string) (domain.Draft, error) {
	lines, err := a.carts.Lines(ctx, userID)
	if err != nil {
		return domain.Draft{}, err
	}
	if len(lines) == 0 {
		return domain.Draft{}, domain.ErrEmptyCart
	}

	draft := domain.Draft{UserID: userID, Lines: make([]domain.DraftLine, 0, len(lines))}
	for _, line := range lines {
		listing, err := a.listings.Listing(ctx, line.ListingID)
		if err != nil {
			return domain.Draft{}, fmt.Errorf("listing %s: %w", line.ListingID, err)
		}
		if listing.PriceCents != line.UnitPriceCents {
			a.log.Info("cart price drift", "user_id", userID, "listing_id", line.ListingID,
				"cart_cents", line.UnitPriceCents, "listing_cents", listing.PriceCents)
			return domain.Draft{}, fmt.Errorf("listing %s: cart %d, current %d: %w",
				line.ListingID, line.UnitPriceCents, listing.PriceCents, domain.ErrPriceChanged)
		}
		draft.Lines = append(draft.Lines, domain.DraftLine{
			ListingID:      line.ListingID,
			Quantity:       line.Quantity,
			UnitPriceCents: listing.PriceCents,
		})
		draft.TotalCents += int64(line.Quantity) * listing.PriceCents
	}
	return draft, nil
}
