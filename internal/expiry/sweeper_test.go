package expiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/adapters/memory"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/expiry"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func put(store *memory.Store, status domain.Status, age time.Duration) uuid.UUID {
	b := domain.Booking{
		ID:         uuid.New(),
		Code:       "BK-" + uuid.NewString()[:8],
		HotelID:    uuid.New(),
		RoomIDs:    []uuid.UUID{uuid.New()},
		GuestID:    uuid.New(),
		CheckIn:    time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		TotalPrice: decimal.NewFromInt(1000000),
		Status:     status,
		CreatedAt:  now.Add(-age),
		UpdatedAt:  now.Add(-age),
	}
	store.PutBooking(b)
	return b.ID
}

func statusOf(t *testing.T, store *memory.Store, id uuid.UUID) domain.Status {
	t.Helper()
	b, ok := store.Booking(id)
	require.True(t, ok)
	return b.Status
}

func TestSweep_ExpiresOnlyStalePending(t *testing.T) {
	store := memory.New()
	stale := put(store, domain.StatusPending, 20*time.Minute)
	young := put(store, domain.StatusPending, 5*time.Minute)
	paying := put(store, domain.StatusPaying, time.Hour)
	confirmed := put(store, domain.StatusConfirmed, time.Hour)

	s := expiry.NewSweeper(store, 15*time.Minute, observability.NewNopLogger(),
		expiry.WithClock(func() time.Time { return now }))

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.StatusExpired, statusOf(t, store, stale))
	assert.Equal(t, domain.StatusPending, statusOf(t, store, young))
	assert.Equal(t, domain.StatusPaying, statusOf(t, store, paying))
	assert.Equal(t, domain.StatusConfirmed, statusOf(t, store, confirmed))

	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.expired", events[0].EventType)
	assert.Equal(t, stale, events[0].AggregateID)

	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, store.Outbox(), 1)
}

func TestSweep_CancelledContext(t *testing.T) {
	store := memory.New()
	id := put(store, domain.StatusPending, time.Hour)
	s := expiry.NewSweeper(store, 15*time.Minute, observability.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Sweep(ctx)
	assert.Error(t, err)
	assert.Equal(t, domain.StatusPending, statusOf(t, store, id))
}

func TestSchedule_RunsOnScheduler(t *testing.T) {
	store := memory.New()
	id := put(store, domain.StatusPending, time.Hour)
	s := expiry.NewSweeper(store, 15*time.Minute, observability.NewNopLogger())

	sched, err := gocron.NewScheduler()
	require.NoError(t, err)
	_, err = s.Schedule(context.Background(), sched, time.Hour)
	require.NoError(t, err)

	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool {
		b, _ := store.Booking(id)
		return b.Status == domain.StatusExpired
	}, 2*time.Second, 10*time.Millisecond)
}
