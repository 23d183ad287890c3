package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zerowastemarket/checkout/internal/cart/domain"
)

// Repository reads cart lines and listings. Read-only by contract: cart
// mutation belongs to the cart endpoints, clearing after confirmation to the
// cart collaborator consuming order events.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Lines(ctx context.Context, userID string) ([]domain.Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, listing_id, quantity, unit_price_cents
		FROM cart_lines WHERE user_id=$1 ORDER BY listing_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.Line
	for rows.Next() {
		var line domain.Line
		if err := rows.Scan(&line.UserID, &line.ListingID, &line.Quantity, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *Repository) Listing(ctx context.Context, listingID string) (domain.Listing, error) {
	var l domain.Listing
	err := r.pool.QueryRow(ctx, `SELECT id, seller_id, title, price_cents FROM listings WHERE id=$1`, listingID).
		Scan(&l.ID, &l.SellerID, &l.Title, &l.PriceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("listing %s: %w", listingID, domain.ErrListingNotFound)
	}
	if err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}
