package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		title TEXT NOT NULL,
		price_cents BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listing_stock (
		listing_id TEXT PRIMARY KEY,
		available_quantity INT NOT NULL CHECK (available_quantity >= 0),
		reserved_quantity INT NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		order_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		quantity INT NOT NULL,
		state TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (order_id, listing_id)
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_expiry ON reservations (expires_at) WHERE state = 'held'`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
		user_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		quantity INT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		PRIMARY KEY (user_id, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		total_cents BIGINT NOT NULL,
		status TEXT NOT NULL,
		payment_reference TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_payment_reference ON orders (payment_reference) WHERE payment_reference <> ''`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		quantity INT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		PRIMARY KEY (order_id, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		raw_event_id TEXT PRIMARY KEY,
		payment_reference TEXT NOT NULL,
		order_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload JSONB NOT NULL,
		headers JSONB,
		traceparent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		relay_id TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending ON outbox (id) WHERE status = 'pending'`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
