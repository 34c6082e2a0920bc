package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/shopspring/decimal"
)

const roomColumns = `id, hotel_id, number, price::TEXT, capacity, available, deleted`

const bookingColumns = `id, code, hotel_id, guest_id, check_in, check_out, total_price::TEXT, status,
	payment_method, notes, voucher_id, discount_percent, deleted, deleted_at, created_at, updated_at`

func inactiveStatuses() []string {
	out := make([]string, 0, len(domain.InactiveStatuses))
	for _, s := range domain.InactiveStatuses {
		out = append(out, string(s))
	}
	return out
}

func scanRooms(rows pgx.Rows) ([]domain.Room, error) {
	defer rows.Close()
	var rooms []domain.Room
	for rows.Next() {
		var r domain.Room
		var price string
		if err := rows.Scan(&r.ID, &r.HotelID, &r.Number, &price, &r.Capacity, &r.Available, &r.Deleted); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, errors.Wrapf(err, "room %s price", r.ID)
		}
		r.Price = p
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// GetRooms locks the rows so concurrent bookings of the same room serialize
// on the lock instead of racing past the overlap check.
func (t *txRepo) GetRooms(ctx context.Context, ids []uuid.UUID) ([]domain.Room, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms WHERE id = ANY($1) AND NOT deleted
		ORDER BY id FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	return scanRooms(rows)
}

func (t *txRepo) ListHotelRooms(ctx context.Context, hotelID uuid.UUID) ([]domain.Room, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms WHERE hotel_id = $1 AND NOT deleted
		ORDER BY number
	`, hotelID)
	if err != nil {
		return nil, err
	}
	return scanRooms(rows)
}

func (t *txRepo) FindOverlapping(ctx context.Context, q domain.OverlapQuery) ([]domain.Booking, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT DISTINCT b.id
		FROM bookings b JOIN booking_rooms br ON br.booking_id = b.id
		WHERE br.room_id = ANY($1)
		  AND NOT b.deleted
		  AND b.status <> ALL($2)
		  AND b.check_in < $4 AND b.check_out > $3
		  AND ($5::UUID IS NULL OR b.id <> $5)
	`, q.RoomIDs, inactiveStatuses(), q.CheckIn, q.CheckOut, q.ExcludeBookingID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return t.selectBookings(ctx, `WHERE id = ANY($1) ORDER BY check_in`, false, ids)
}

func (t *txRepo) GetVoucher(ctx context.Context, id uuid.UUID) (*domain.Voucher, error) {
	var v domain.Voucher
	var minOrder string
	err := t.tx.QueryRow(ctx, `
		SELECT id, code, hotel_id, quantity, percent, min_order_price::TEXT, expires_at, status
		FROM vouchers WHERE id = $1
	`, id).Scan(&v.ID, &v.Code, &v.HotelID, &v.Quantity, &v.Percent, &minOrder, &v.ExpiresAt, &v.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("voucher %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if v.MinOrderPrice, err = decimal.NewFromString(minOrder); err != nil {
		return nil, errors.Wrapf(err, "voucher %s min order", id)
	}
	return &v, nil
}

// RedeemVoucher relies on the conditional decrement; the quantity can never
// go below zero whatever the interleaving.
func (t *txRepo) RedeemVoucher(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := t.tx.Exec(ctx, `
		UPDATE vouchers SET quantity = quantity - 1
		WHERE id = $1 AND quantity > 0
	`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (t *txRepo) InsertBooking(ctx context.Context, b *domain.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (id, code, hotel_id, guest_id, check_in, check_out, total_price, status,
			payment_method, notes, voucher_id, discount_percent, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::DECIMAL, $8, $9, $10, $11, $12, false, $13, $14)
	`, b.ID, b.Code, b.HotelID, b.GuestID, b.CheckIn, b.CheckOut, b.TotalPrice.String(), string(b.Status),
		b.PaymentMethod, b.Notes, b.VoucherID, b.DiscountPercent, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	return t.insertBookingRooms(ctx, b.ID, b.RoomIDs)
}

// insertBookingRooms runs one statement at a time; a pgx.Tx is not safe for
// concurrent use.
func (t *txRepo) insertBookingRooms(ctx context.Context, bookingID uuid.UUID, roomIDs []uuid.UUID) error {
	for _, roomID := range roomIDs {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO booking_rooms (booking_id, room_id) VALUES ($1, $2)
		`, bookingID, roomID); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	res, err := t.tx.Exec(ctx, `
		UPDATE bookings SET hotel_id = $2, check_in = $3, check_out = $4, total_price = $5::DECIMAL,
			payment_method = $6, notes = $7, updated_at = $8
		WHERE id = $1
	`, b.ID, b.HotelID, b.CheckIn, b.CheckOut, b.TotalPrice.String(), b.PaymentMethod, b.Notes, b.UpdatedAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.NewNotFound("booking %s not found", b.ID)
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM booking_rooms WHERE booking_id = $1`, b.ID); err != nil {
		return err
	}
	return t.insertBookingRooms(ctx, b.ID, b.RoomIDs)
}

func (t *txRepo) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	bookings, err := t.selectBookings(ctx, `WHERE id = $1`, true, id)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, domain.NewNotFound("booking %s not found", id)
	}
	return &bookings[0], nil
}

// GetBookingByCode locks the booking; payment callbacks only know the code.
func (t *txRepo) GetBookingByCode(ctx context.Context, code string) (*domain.Booking, error) {
	bookings, err := t.selectBookings(ctx, `WHERE code = $1`, true, code)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, domain.NewNotFound("booking %s not found", code)
	}
	return &bookings[0], nil
}

func (t *txRepo) GetBookings(ctx context.Context, ids []uuid.UUID) ([]domain.Booking, error) {
	return t.selectBookings(ctx, `WHERE id = ANY($1) ORDER BY id`, true, ids)
}

func (t *txRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, at time.Time) (bool, error) {
	res, err := t.tx.Exec(ctx, `
		UPDATE bookings SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (t *txRepo) ExpirePending(ctx context.Context, createdBefore, at time.Time) ([]domain.Booking, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE bookings SET status = 'EXPIRED', updated_at = $2
		WHERE status = 'PENDING' AND created_at < $1
		RETURNING id
	`, createdBefore, at)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return t.selectBookings(ctx, `WHERE id = ANY($1) ORDER BY created_at`, false, ids)
}

func (t *txRepo) SetBookingsDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, at time.Time) error {
	var deletedAt *time.Time
	if deleted {
		deletedAt = &at
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE bookings SET deleted = $2, deleted_at = $3, updated_at = $4
		WHERE id = ANY($1)
	`, ids, deleted, deletedAt, at)
	return err
}

func (t *txRepo) DeleteBookings(ctx context.Context, ids []uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM booking_rooms WHERE booking_id = ANY($1)`, ids); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM bookings WHERE id = ANY($1)`, ids)
	return err
}

func (t *txRepo) selectBookings(ctx context.Context, where string, lock bool, args ...interface{}) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		var total, status string
		if err := rows.Scan(&b.ID, &b.Code, &b.HotelID, &b.GuestID, &b.CheckIn, &b.CheckOut, &total, &status,
			&b.PaymentMethod, &b.Notes, &b.VoucherID, &b.DiscountPercent, &b.Deleted, &b.DeletedAt,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if b.TotalPrice, err = decimal.NewFromString(total); err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "booking %s total", b.ID)
		}
		b.Status = domain.Status(status)
		bookings = append(bookings, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return bookings, t.loadRooms(ctx, bookings)
}

func (t *txRepo) loadRooms(ctx context.Context, bookings []domain.Booking) error {
	ids := make([]uuid.UUID, len(bookings))
	index := make(map[uuid.UUID]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		index[b.ID] = i
	}

	rows, err := t.tx.Query(ctx, `
		SELECT booking_id, room_id FROM booking_rooms
		WHERE booking_id = ANY($1) ORDER BY booking_id, room_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID, roomID uuid.UUID
		if err := rows.Scan(&bookingID, &roomID); err != nil {
			return err
		}
		i := index[bookingID]
		bookings[i].RoomIDs = append(bookings[i].RoomIDs, roomID)
	}
	return rows.Err()
}

// UpsertRoom writes a room outside any booking flow. Rooms are owned by the
// hotel catalog; this is used for seeding and tests.
func (r *Repository) UpsertRoom(ctx context.Context, room domain.Room) error {
	_, err := r.pool.Exec(ctx, `
		UPSERT INTO rooms (id, hotel_id, number, price, capacity, available, deleted)
		VALUES ($1, $2, $3, $4::DECIMAL, $5, $6, $7)
	`, room.ID, room.HotelID, room.Number, room.Price.String(), room.Capacity, room.Available, room.Deleted)
	return err
}

func (r *Repository) UpsertVoucher(ctx context.Context, v domain.Voucher) error {
	_, err := r.pool.Exec(ctx, `
		UPSERT INTO vouchers (id, code, hotel_id, quantity, percent, min_order_price, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6::DECIMAL, $7, $8)
	`, v.ID, v.Code, v.HotelID, v.Quantity, v.Percent, v.MinOrderPrice.String(), v.ExpiresAt, string(v.Status))
	return err
}
