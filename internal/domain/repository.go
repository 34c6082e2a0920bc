package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store runs fn inside a single serializable transaction. Any error returned
// by fn rolls back every write made through tx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// GetRooms returns the existing rooms among ids and locks them until commit.
	GetRooms(ctx context.Context, ids []uuid.UUID) ([]Room, error)
	ListHotelRooms(ctx context.Context, hotelID uuid.UUID) ([]Room, error)
	// FindOverlapping returns active, non deleted bookings holding any of
	// q.RoomIDs whose range overlaps [q.CheckIn, q.CheckOut).
	FindOverlapping(ctx context.Context, q OverlapQuery) ([]Booking, error)

	GetVoucher(ctx context.Context, id uuid.UUID) (*Voucher, error)
	// RedeemVoucher decrements the quantity only while it is positive.
	RedeemVoucher(ctx context.Context, id uuid.UUID) (bool, error)

	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*Booking, error)
	GetBookings(ctx context.Context, ids []uuid.UUID) ([]Booking, error)
	// UpdateBookingStatus moves a booking from one status to another and
	// reports false when the booking is no longer in from.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (bool, error)
	ExpirePending(ctx context.Context, createdBefore, at time.Time) ([]Booking, error)
	SetBookingsDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, at time.Time) error
	DeleteBookings(ctx context.Context, ids []uuid.UUID) error

	InsertOutbox(ctx context.Context, ev OutboxEvent) error
}

type GuestDirectory interface {
	GetGuest(ctx context.Context, id uuid.UUID) (*Guest, error)
}
