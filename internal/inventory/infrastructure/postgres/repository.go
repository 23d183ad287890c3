package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zerowastemarket/checkout/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetStock(ctx context.Context, listingID string) (domain.Stock, error) {
	var s domain.Stock
	err := r.pool.QueryRow(ctx, `SELECT listing_id, available_quantity, reserved_quantity, version, updated_at
		FROM listing_stock WHERE listing_id=$1`, listingID).
		Scan(&s.ListingID, &s.Available, &s.Reserved, &s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stock{}, domain.ErrListingNotFound
	}
	if err != nil {
		return domain.Stock{}, err
	}
	return s, nil
}

func (r *Repository) Reserve(ctx context.Context, stock domain.Stock, quantity int, orderID string, expiresAt time.Time) (domain.Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE listing_stock
		SET available_quantity = available_quantity - $2,
		    reserved_quantity  = reserved_quantity + $2,
		    version            = version + 1,
		    updated_at         = now()
		WHERE listing_id = $1 AND version = $3 AND available_quantity >= $2`,
		stock.ListingID, quantity, stock.Version)
	if err != nil {
		return domain.Reservation{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Reservation{}, r.explainReserveMiss(ctx, tx, stock)
	}

	now := time.Now().UTC()
	res := domain.Reservation{
		OrderID:   orderID,
		ListingID: stock.ListingID,
		Quantity:  quantity,
		State:     domain.ReservationHeld,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	_, err = tx.Exec(ctx, `INSERT INTO reservations (order_id, listing_id, quantity, state, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		res.OrderID, res.ListingID, res.Quantity, string(res.State), res.ExpiresAt, res.CreatedAt)
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repository) explainReserveMiss(ctx context.Context, tx pgx.Tx, stock domain.Stock) error {
	var version int64
	var available int
	err := tx.QueryRow(ctx, `SELECT version, available_quantity FROM listing_stock WHERE listing_id=$1`, stock.ListingID).
		Scan(&version, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrListingNotFound
	}
	if err != nil {
		return err
	}
	if version != stock.Version {
		return domain.ErrVersionConflict
	}
	return domain.ErrInsufficientStock
}

func (r *Repository) Commit(ctx context.Context, orderID, listingID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var quantity int
	var state string
	err = tx.QueryRow(ctx, `SELECT quantity, state FROM reservations
		WHERE order_id=$1 AND listing_id=$2 FOR UPDATE`, orderID, listingID).
		Scan(&quantity, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrReservationNotFound
	}
	if err != nil {
		return err
	}
	switch domain.ReservationState(state) {
	case domain.ReservationCommitted:
		return nil
	case domain.ReservationReleased:
		return domain.ErrReservationNotFound
	}

	_, err = tx.Exec(ctx, `UPDATE listing_stock
		SET reserved_quantity = reserved_quantity - $2, version = version + 1, updated_at = now()
		WHERE listing_id = $1`, listingID, quantity)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE reservations SET state=$3 WHERE order_id=$1 AND listing_id=$2`,
		orderID, listingID, string(domain.ReservationCommitted))
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Release(ctx context.Context, orderID, listingID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var quantity int
	var state string
	err = tx.QueryRow(ctx, `SELECT quantity, state FROM reservations
		WHERE order_id=$1 AND listing_id=$2 FOR UPDATE`, orderID, listingID).
		Scan(&quantity, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if domain.ReservationState(state) != domain.ReservationHeld {
		return nil
	}

	_, err = tx.Exec(ctx, `UPDATE listing_stock
		SET available_quantity = available_quantity + $2,
		    reserved_quantity  = reserved_quantity - $2,
		    version            = version + 1,
		    updated_at         = now()
		WHERE listing_id = $1`, listingID, quantity)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE reservations SET state=$3 WHERE order_id=$1 AND listing_id=$2`,
		orderID, listingID, string(domain.ReservationReleased))
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ExpiredHeld(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, listing_id, quantity, state, expires_at, created_at
		FROM reservations
		WHERE state=$1 AND expires_at <= $2
		ORDER BY expires_at
		LIMIT $3`, string(domain.ReservationHeld), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		var state string
		if err := rows.Scan(&res.OrderID, &res.ListingID, &res.Quantity, &state, &res.ExpiresAt, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.State = domain.ReservationState(state)
		out = append(out, res)
	}
	return out, rows.Err()
}
