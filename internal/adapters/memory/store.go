// Package memory is an in-process domain.Store. Transactions are serialized
// by one mutex and rolled back by restoring a snapshot taken at begin.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]domain.Room
	vouchers map[uuid.UUID]domain.Voucher
	bookings map[uuid.UUID]domain.Booking
	outbox   []domain.OutboxEvent

	guestsMu sync.RWMutex
	guests   map[uuid.UUID]domain.Guest
}

func New() *Store {
	return &Store{
		rooms:    make(map[uuid.UUID]domain.Room),
		vouchers: make(map[uuid.UUID]domain.Voucher),
		bookings: make(map[uuid.UUID]domain.Booking),
		guests:   make(map[uuid.UUID]domain.Guest),
	}
}

type snapshot struct {
	rooms    map[uuid.UUID]domain.Room
	vouchers map[uuid.UUID]domain.Voucher
	bookings map[uuid.UUID]domain.Booking
	outbox   []domain.OutboxEvent
}

func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		rooms:    make(map[uuid.UUID]domain.Room, len(s.rooms)),
		vouchers: make(map[uuid.UUID]domain.Voucher, len(s.vouchers)),
		bookings: make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		outbox:   append([]domain.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.rooms {
		snap.rooms[k] = v
	}
	for k, v := range s.vouchers {
		snap.vouchers[k] = v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}

	if err := fn(&tx{s: s}); err != nil {
		s.rooms, s.vouchers, s.bookings, s.outbox = snap.rooms, snap.vouchers, snap.bookings, snap.outbox
		return err
	}
	return nil
}

func (s *Store) GetGuest(ctx context.Context, id uuid.UUID) (*domain.Guest, error) {
	s.guestsMu.RLock()
	defer s.guestsMu.RUnlock()
	g, ok := s.guests[id]
	if !ok {
		return nil, domain.NewNotFound("guest %s not found", id)
	}
	return &g, nil
}

func (s *Store) PutGuest(g domain.Guest) {
	s.guestsMu.Lock()
	defer s.guestsMu.Unlock()
	s.guests[g.ID] = g
}

func (s *Store) PutRoom(r domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
}

func (s *Store) PutVoucher(v domain.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vouchers[v.ID] = v
}

func (s *Store) PutBooking(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = cloneBooking(b)
}

func (s *Store) Voucher(id uuid.UUID) (domain.Voucher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	return v, ok
}

func (s *Store) Booking(id uuid.UUID) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return cloneBooking(b), ok
}

func (s *Store) Bookings() []domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Outbox() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxEvent(nil), s.outbox...)
}

type tx struct {
	s *Store
}

func (t *tx) GetRooms(ctx context.Context, ids []uuid.UUID) ([]domain.Room, error) {
	var rooms []domain.Room
	for _, id := range ids {
		if r, ok := t.s.rooms[id]; ok && !r.Deleted {
			rooms = append(rooms, r)
		}
	}
	return rooms, nil
}

func (t *tx) ListHotelRooms(ctx context.Context, hotelID uuid.UUID) ([]domain.Room, error) {
	var rooms []domain.Room
	for _, r := range t.s.rooms {
		if r.HotelID == hotelID && !r.Deleted {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Number < rooms[j].Number })
	return rooms, nil
}

func (t *tx) FindOverlapping(ctx context.Context, q domain.OverlapQuery) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range t.s.bookings {
		if b.Deleted || !b.Status.IsActive() {
			continue
		}
		if q.ExcludeBookingID != nil && b.ID == *q.ExcludeBookingID {
			continue
		}
		if !domain.Overlaps(b.CheckIn, b.CheckOut, q.CheckIn, q.CheckOut) {
			continue
		}
		for _, id := range q.RoomIDs {
			if b.HasRoom(id) {
				out = append(out, cloneBooking(b))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out, nil
}

func (t *tx) GetVoucher(ctx context.Context, id uuid.UUID) (*domain.Voucher, error) {
	v, ok := t.s.vouchers[id]
	if !ok {
		return nil, domain.NewNotFound("voucher %s not found", id)
	}
	return &v, nil
}

func (t *tx) RedeemVoucher(ctx context.Context, id uuid.UUID) (bool, error) {
	v, ok := t.s.vouchers[id]
	if !ok || v.Quantity <= 0 {
		return false, nil
	}
	v.Quantity--
	t.s.vouchers[id] = v
	return true, nil
}

func (t *tx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	for _, existing := range t.s.bookings {
		if existing.Code == b.Code {
			return domain.NewConflict("booking code already exists", b.Code)
		}
	}
	t.s.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (t *tx) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	if _, ok := t.s.bookings[b.ID]; !ok {
		return domain.NewNotFound("booking %s not found", b.ID)
	}
	t.s.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (t *tx) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, domain.NewNotFound("booking %s not found", id)
	}
	b = cloneBooking(b)
	return &b, nil
}

func (t *tx) GetBookingByCode(ctx context.Context, code string) (*domain.Booking, error) {
	for _, b := range t.s.bookings {
		if b.Code == code {
			b = cloneBooking(b)
			return &b, nil
		}
	}
	return nil, domain.NewNotFound("booking %s not found", code)
}

func (t *tx) GetBookings(ctx context.Context, ids []uuid.UUID) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, id := range ids {
		if b, ok := t.s.bookings[id]; ok {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (t *tx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, at time.Time) (bool, error) {
	b, ok := t.s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	t.s.bookings[id] = b
	return true, nil
}

func (t *tx) ExpirePending(ctx context.Context, createdBefore, at time.Time) ([]domain.Booking, error) {
	var expired []domain.Booking
	for id, b := range t.s.bookings {
		if b.Status != domain.StatusPending || !b.CreatedAt.Before(createdBefore) {
			continue
		}
		b.Status = domain.StatusExpired
		b.UpdatedAt = at
		t.s.bookings[id] = b
		expired = append(expired, cloneBooking(b))
	}
	return expired, nil
}

func (t *tx) SetBookingsDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, at time.Time) error {
	for _, id := range ids {
		b, ok := t.s.bookings[id]
		if !ok {
			continue
		}
		b.Deleted = deleted
		b.DeletedAt = nil
		if deleted {
			ts := at
			b.DeletedAt = &ts
		}
		b.UpdatedAt = at
		t.s.bookings[id] = b
	}
	return nil
}

func (t *tx) DeleteBookings(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(t.s.bookings, id)
	}
	return nil
}

func (t *tx) InsertOutbox(ctx context.Context, ev domain.OutboxEvent) error {
	t.s.outbox = append(t.s.outbox, ev)
	return nil
}

func cloneBooking(b domain.Booking) domain.Booking {
	b.RoomIDs = append([]uuid.UUID(nil), b.RoomIDs...)
	return b
}
