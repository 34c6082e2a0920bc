package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/adapters/memory"
	"github.com/robertarktes/hotel-reservations/internal/availability"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store   *memory.Store
	hotelID uuid.UUID
	r1, r2  domain.Room
}

func newFixture() *fixture {
	f := &fixture{store: memory.New(), hotelID: uuid.New()}
	f.r1 = domain.Room{ID: uuid.New(), HotelID: f.hotelID, Number: "101", Price: decimal.NewFromInt(500000), Available: true}
	f.r2 = domain.Room{ID: uuid.New(), HotelID: f.hotelID, Number: "102", Price: decimal.NewFromInt(500000), Available: true}
	f.store.PutRoom(f.r1)
	f.store.PutRoom(f.r2)
	return f
}

func (f *fixture) book(status domain.Status, in, out string, rooms ...uuid.UUID) domain.Booking {
	b := domain.Booking{
		ID:       uuid.New(),
		Code:     "BK-" + uuid.NewString()[:8],
		HotelID:  f.hotelID,
		RoomIDs:  rooms,
		CheckIn:  day(in),
		CheckOut: day(out),
		Status:   status,
	}
	f.store.PutBooking(b)
	return b
}

func (f *fixture) tx(t *testing.T, fn func(tx domain.Tx) error) error {
	t.Helper()
	return f.store.WithTx(context.Background(), fn)
}

func TestResolveRooms_ReportsMissingIDs(t *testing.T) {
	f := newFixture()
	ghost := uuid.New()

	err := f.tx(t, func(tx domain.Tx) error {
		_, err := availability.ResolveRooms(context.Background(), tx, []uuid.UUID{f.r1.ID, ghost}, f.hotelID)
		return err
	})

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindValidation, derr.Kind)
	assert.Equal(t, []string{ghost.String()}, derr.IDs)
}

func TestResolveRooms_ReportsForeignHotel(t *testing.T) {
	f := newFixture()
	other := domain.Room{ID: uuid.New(), HotelID: uuid.New(), Number: "201", Available: true}
	f.store.PutRoom(other)

	err := f.tx(t, func(tx domain.Tx) error {
		_, err := availability.ResolveRooms(context.Background(), tx, []uuid.UUID{f.r1.ID, other.ID}, f.hotelID)
		return err
	})

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindValidation, derr.Kind)
	assert.Equal(t, []string{other.ID.String()}, derr.IDs)
}

func TestCheckAvailability_CheckoutIsExclusive(t *testing.T) {
	f := newFixture()
	f.book(domain.StatusConfirmed, "2024-05-10", "2024-05-15", f.r1.ID)

	check := func(in, out string) error {
		return f.tx(t, func(tx domain.Tx) error {
			rooms, err := availability.ResolveRooms(context.Background(), tx, []uuid.UUID{f.r1.ID}, f.hotelID)
			if err != nil {
				return err
			}
			return availability.CheckAvailability(context.Background(), tx, rooms, []uuid.UUID{f.r1.ID}, day(in), day(out), nil)
		})
	}

	err := check("2024-05-14", "2024-05-16")
	require.True(t, errors.Is(err, domain.ErrConflict))
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, []string{f.r1.ID.String()}, derr.IDs)

	assert.NoError(t, check("2024-05-15", "2024-05-18"))
}

func TestCheckAvailability_InactiveBookingsDoNotBlock(t *testing.T) {
	f := newFixture()
	for _, st := range []domain.Status{domain.StatusCancelled, domain.StatusCompleted, domain.StatusExpired} {
		f.book(st, "2024-05-10", "2024-05-15", f.r1.ID)
	}
	deleted := f.book(domain.StatusPending, "2024-05-10", "2024-05-15", f.r1.ID)
	deleted.Deleted = true
	f.store.PutBooking(deleted)

	err := f.tx(t, func(tx domain.Tx) error {
		return availability.CheckAvailability(context.Background(), tx, []domain.Room{f.r1}, []uuid.UUID{f.r1.ID}, day("2024-05-11"), day("2024-05-12"), nil)
	})
	assert.NoError(t, err)
}

func TestCheckAvailability_ExcludesSelf(t *testing.T) {
	f := newFixture()
	own := f.book(domain.StatusPending, "2024-05-10", "2024-05-15", f.r1.ID)

	err := f.tx(t, func(tx domain.Tx) error {
		return availability.CheckAvailability(context.Background(), tx, []domain.Room{f.r1}, []uuid.UUID{f.r1.ID}, day("2024-05-12"), day("2024-05-16"), &own.ID)
	})
	assert.NoError(t, err)
}

func TestCheckAvailability_UnlistedRoom(t *testing.T) {
	f := newFixture()
	f.r2.Available = false

	err := f.tx(t, func(tx domain.Tx) error {
		return availability.CheckAvailability(context.Background(), tx, []domain.Room{f.r1, f.r2}, []uuid.UUID{f.r1.ID, f.r2.ID}, day("2024-05-12"), day("2024-05-16"), nil)
	})

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindConflict, derr.Kind)
	assert.Equal(t, []string{f.r2.ID.String()}, derr.IDs)
}

func TestListAvailableRooms(t *testing.T) {
	f := newFixture()
	unlisted := domain.Room{ID: uuid.New(), HotelID: f.hotelID, Number: "103", Available: false}
	f.store.PutRoom(unlisted)
	f.book(domain.StatusCheckIn, "2024-05-10", "2024-05-15", f.r1.ID)

	var rooms []domain.Room
	err := f.tx(t, func(tx domain.Tx) error {
		var err error
		rooms, err = availability.ListAvailableRooms(context.Background(), tx, f.hotelID, day("2024-05-12"), day("2024-05-13"))
		return err
	})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, f.r2.ID, rooms[0].ID)
}

func TestUnavailableDates_ClippedUnion(t *testing.T) {
	f := newFixture()
	f.book(domain.StatusConfirmed, "2024-05-10", "2024-05-13", f.r1.ID)
	f.book(domain.StatusPaying, "2024-05-12", "2024-05-14", f.r1.ID, f.r2.ID)
	f.book(domain.StatusCancelled, "2024-05-20", "2024-05-22", f.r1.ID)

	var dates []time.Time
	err := f.tx(t, func(tx domain.Tx) error {
		var err error
		dates, err = availability.UnavailableDates(context.Background(), tx, f.r1.ID, day("2024-05-11"), day("2024-05-31"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-05-11"), day("2024-05-12"), day("2024-05-13")}, dates)
}

func TestUnavailableDates_InvalidRange(t *testing.T) {
	f := newFixture()
	err := f.tx(t, func(tx domain.Tx) error {
		_, err := availability.UnavailableDates(context.Background(), tx, f.r1.ID, day("2024-05-11"), day("2024-05-01"))
		return err
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
