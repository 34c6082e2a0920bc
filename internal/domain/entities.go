package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinNights = 1
	MaxNights = 30
)

type Role string

const (
	RoleGuest   Role = "GUEST"
	RoleStaff   Role = "STAFF"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsGuest() bool { return a.Role == RoleGuest }

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleManager || a.Role == RoleAdmin
}

// IsElevated actors also receive system wide notifications.
func (a Actor) IsElevated() bool { return a.Role == RoleAdmin }

type Guest struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  Role
}

type Room struct {
	ID       uuid.UUID
	HotelID  uuid.UUID
	Number   string
	Price    decimal.Decimal
	Capacity int
	// Available is a manual staff override, not date based occupancy.
	Available bool
	Deleted   bool
}

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "ACTIVE"
	VoucherInactive VoucherStatus = "INACTIVE"
)

type Voucher struct {
	ID            uuid.UUID
	Code          string
	HotelID       uuid.UUID
	Quantity      int
	Percent       int
	MinOrderPrice decimal.Decimal
	ExpiresAt     time.Time
	Status        VoucherStatus
}

type Booking struct {
	ID              uuid.UUID
	Code            string
	HotelID         uuid.UUID
	RoomIDs         []uuid.UUID
	GuestID         uuid.UUID
	CheckIn         time.Time
	CheckOut        time.Time
	TotalPrice      decimal.Decimal
	Status          Status
	PaymentMethod   string
	Notes           string
	VoucherID       *uuid.UUID
	DiscountPercent int
	Deleted         bool
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b *Booking) Nights() int {
	return Nights(b.CheckIn, b.CheckOut)
}

func (b *Booking) HasRoom(id uuid.UUID) bool {
	for _, r := range b.RoomIDs {
		if r == id {
			return true
		}
	}
	return false
}

// Nights counts calendar nights in [checkIn, checkOut).
func Nights(checkIn, checkOut time.Time) int {
	return int(DateOf(checkOut).Sub(DateOf(checkIn)).Hours() / 24)
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps is the half-open interval test used for every occupancy decision.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && aOut.After(bIn)
}

type OverlapQuery struct {
	RoomIDs  []uuid.UUID
	CheckIn  time.Time
	CheckOut time.Time
	// ExcludeBookingID skips the booking being updated.
	ExcludeBookingID *uuid.UUID
}

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	DedupeKey   string
}
