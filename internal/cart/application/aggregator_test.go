package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerowastemarket/checkout/internal/cart/application"
	"github.com/zerowastemarket/checkout/internal/cart/domain"
)

type stubCarts map[string][]domain.Line

func (s stubCarts) Lines(_ context.Context, userID string) ([]domain.Line, error) {
	return s[userID], nil
}

type stubListings map[string]domain.Listing

func (s stubListings) Listing(_ context.Context, id string) (domain.Listing, error) {
	l, ok := s[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, nil
}

func newAggregator(carts stubCarts, listings stubListings) *application.Aggregator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewAggregator(log, carts, listings)
}

func TestBuildDraftPricesFromListings(t *testing.T) {
	carts := stubCarts{"u-1": {
		{UserID: "u-1", ListingID: "l-1", Quantity: 2, UnitPriceCents: 100},
		{UserID: "u-1", ListingID: "l-2", Quantity: 1, UnitPriceCents: 250},
	}}
	listings := stubListings{
		"l-1": {ID: "l-1", PriceCents: 100},
		"l-2": {ID: "l-2", PriceCents: 250},
	}

	draft, err := newAggregator(carts, listings).BuildDraft(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, "u-1", draft.UserID)
	require.Len(t, draft.Lines, 2)
	require.Equal(t, int64(450), draft.TotalCents)
}

func TestBuildDraftEmptyCart(t *testing.T) {
	agg := newAggregator(stubCarts{}, stubListings{})
	_, err := agg.BuildDraft(context.Background(), "u-1")
	require.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestBuildDraftPriceChanged(t *testing.T) {
	carts := stubCarts{"u-1": {
		{UserID: "u-1", ListingID: "l-1", Quantity: 1, UnitPriceCents: 100},
	}}
	// Seller raised the price after the buyer carted it.
	listings := stubListings{"l-1": {ID: "l-1", PriceCents: 120}}

	_, err := newAggregator(carts, listings).BuildDraft(context.Background(), "u-1")
	require.ErrorIs(t, err, domain.ErrPriceChanged)
}
