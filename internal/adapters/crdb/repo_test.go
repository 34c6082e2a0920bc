package crdb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/hotel-reservations/internal/adapters/crdb"
	"github.com/robertarktes/hotel-reservations/internal/adapters/memory"
	"github.com/robertarktes/hotel-reservations/internal/booking"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/expiry"
	"github.com/robertarktes/hotel-reservations/internal/notify"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startCockroach(t *testing.T) *crdb.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "26257")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, "postgresql://root@"+host+":"+port.Port()+"/defaultdb?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := crdb.NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

type seed struct {
	hotelID uuid.UUID
	rooms   []domain.Room
	voucher domain.Voucher
	guest   domain.Actor
}

func seedHotel(t *testing.T, repo *crdb.Repository, guests *memory.Store) seed {
	t.Helper()
	ctx := context.Background()
	s := seed{hotelID: uuid.New(), guest: domain.Actor{ID: uuid.New(), Role: domain.RoleGuest}}
	for _, n := range []string{"201", "202"} {
		r := domain.Room{ID: uuid.New(), HotelID: s.hotelID, Number: n, Price: decimal.NewFromInt(500000), Capacity: 2, Available: true}
		require.NoError(t, repo.UpsertRoom(ctx, r))
		s.rooms = append(s.rooms, r)
	}
	s.voucher = domain.Voucher{
		ID:            uuid.New(),
		Code:          "CRDB-" + uuid.NewString()[:6],
		HotelID:       s.hotelID,
		Quantity:      1,
		Percent:       20,
		MinOrderPrice: decimal.NewFromInt(1000000),
		ExpiresAt:     time.Now().AddDate(1, 0, 0),
		Status:        domain.VoucherActive,
	}
	require.NoError(t, repo.UpsertVoucher(ctx, s.voucher))
	guests.PutGuest(domain.Guest{ID: s.guest.ID, Name: "Pham Thu"})
	return s
}

func stay(days int) (string, string) {
	in := time.Now().UTC().AddDate(0, 0, 10)
	return in.Format(time.DateOnly), in.AddDate(0, 0, days).Format(time.DateOnly)
}

func TestRepository_BookingLifecycle(t *testing.T) {
	repo := startCockroach(t)
	guests := memory.New()
	s := seedHotel(t, repo, guests)
	svc := booking.NewService(repo, guests, notify.NewPublisher(nil, nil), observability.NewNopLogger())
	ctx := context.Background()

	in, out := stay(3)
	b, err := svc.Create(ctx, booking.CreateRequest{
		HotelID:   s.hotelID,
		RoomIDs:   []uuid.UUID{s.rooms[0].ID, s.rooms[1].ID},
		CheckIn:   in,
		CheckOut:  out,
		VoucherID: &s.voucher.ID,
	}, s.guest)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2400000).Equal(b.TotalPrice), b.TotalPrice.String())

	got, err := svc.Get(ctx, b.ID, s.guest)
	require.NoError(t, err)
	assert.ElementsMatch(t, b.RoomIDs, got.RoomIDs)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.True(t, b.CheckIn.Equal(got.CheckIn))

	// The only voucher unit is gone.
	_, err = svc.Create(ctx, booking.CreateRequest{
		HotelID:   s.hotelID,
		RoomIDs:   []uuid.UUID{s.rooms[0].ID},
		CheckIn:   out,
		CheckOut:  time.Now().UTC().AddDate(0, 0, 20).Format(time.DateOnly),
		VoucherID: &s.voucher.ID,
	}, s.guest)
	assert.True(t, errors.Is(err, domain.ErrValidation), "%v", err)

	_, err = svc.Create(ctx, booking.CreateRequest{HotelID: s.hotelID, RoomIDs: []uuid.UUID{s.rooms[1].ID}, CheckIn: in, CheckOut: out}, s.guest)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr), "%v", err)
	assert.Equal(t, domain.KindConflict, derr.Kind)
	assert.Equal(t, []string{s.rooms[1].ID.String()}, derr.IDs)

	require.NoError(t, svc.Cancel(ctx, b.ID, s.guest))
	_, err = svc.Create(ctx, booking.CreateRequest{HotelID: s.hotelID, RoomIDs: []uuid.UUID{s.rooms[1].ID}, CheckIn: in, CheckOut: out}, s.guest)
	require.NoError(t, err)

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "booking.cancelled", records[0].EventType)
	require.NoError(t, repo.MarkPublished(ctx, records[0].ID, time.Now()))
	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_ConcurrentCreatesBookOnce(t *testing.T) {
	repo := startCockroach(t)
	guests := memory.New()
	s := seedHotel(t, repo, guests)
	svc := booking.NewService(repo, guests, notify.NewPublisher(nil, nil), observability.NewNopLogger())
	in, out := stay(2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), booking.CreateRequest{
				HotelID: s.hotelID, RoomIDs: []uuid.UUID{s.rooms[0].ID}, CheckIn: in, CheckOut: out,
			}, s.guest)
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, domain.ErrConflict), "%v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestRepository_ExpireAndBulkDelete(t *testing.T) {
	repo := startCockroach(t)
	guests := memory.New()
	s := seedHotel(t, repo, guests)
	svc := booking.NewService(repo, guests, notify.NewPublisher(nil, nil), observability.NewNopLogger())
	ctx := context.Background()
	staff := domain.Actor{ID: uuid.New(), Role: domain.RoleStaff}

	in, out := stay(1)
	b, err := svc.Create(ctx, booking.CreateRequest{HotelID: s.hotelID, RoomIDs: []uuid.UUID{s.rooms[0].ID}, CheckIn: in, CheckOut: out}, s.guest)
	require.NoError(t, err)

	sweeper := expiry.NewSweeper(repo, 15*time.Minute, observability.NewNopLogger(),
		expiry.WithClock(func() time.Time { return time.Now().UTC().Add(time.Hour) }))
	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	got, err := svc.Get(ctx, b.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)

	require.NoError(t, svc.SoftDelete(ctx, []uuid.UUID{b.ID}, staff))
	got, err = svc.Get(ctx, b.ID, staff)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	require.NotNil(t, got.DeletedAt)

	err = svc.PermanentDelete(ctx, []uuid.UUID{b.ID, uuid.New()}, staff)
	assert.True(t, errors.Is(err, domain.ErrInvalidIDSet))
	require.NoError(t, svc.PermanentDelete(ctx, []uuid.UUID{b.ID}, staff))
	_, err = svc.Get(ctx, b.ID, staff)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
