package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Schema is applied statement by statement; every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY,
		hotel_id UUID NOT NULL,
		number TEXT NOT NULL,
		price DECIMAL(14,2) NOT NULL CHECK (price >= 0),
		capacity INT NOT NULL DEFAULT 1,
		available BOOL NOT NULL DEFAULT true,
		deleted BOOL NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS rooms_hotel_idx ON rooms (hotel_id)`,
	`CREATE TABLE IF NOT EXISTS vouchers (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		hotel_id UUID NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 0),
		percent INT NOT NULL CHECK (percent BETWEEN 0 AND 100),
		min_order_price DECIMAL(14,2) NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'INACTIVE'))
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		hotel_id UUID NOT NULL,
		guest_id UUID NOT NULL,
		check_in DATE NOT NULL,
		check_out DATE NOT NULL,
		total_price DECIMAL(14,2) NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'PAYING', 'CONFIRMED', 'CHECKIN', 'CHECKOUT', 'COMPLETED', 'CANCELLED', 'EXPIRED')),
		payment_method TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		voucher_id UUID NULL REFERENCES vouchers (id),
		discount_percent INT NOT NULL DEFAULT 0,
		deleted BOOL NOT NULL DEFAULT false,
		deleted_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (check_out > check_in)
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_pending_idx ON bookings (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS booking_rooms (
		booking_id UUID NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
		room_id UUID NOT NULL REFERENCES rooms (id),
		PRIMARY KEY (booking_id, room_id)
	)`,
	`CREATE INDEX IF NOT EXISTS booking_rooms_room_idx ON booking_rooms (room_id)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ NULL,
		status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_status_idx ON outbox (status, created_at)`,
}

func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate: %.40s", stmt)
		}
	}
	return nil
}
