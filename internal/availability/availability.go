// Package availability decides whether rooms are free for a date range.
// Occupancy is always derived from active bookings; nothing is reserved
// eagerly on the room itself.
package availability

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/domain"
)

// ResolveRooms loads and locks the requested rooms. Missing ids and rooms
// of another hotel are reported separately.
func ResolveRooms(ctx context.Context, tx domain.Tx, roomIDs []uuid.UUID, hotelID uuid.UUID) ([]domain.Room, error) {
	ids := Unique(roomIDs)
	rooms, err := tx.GetRooms(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get rooms")
	}

	found := make(map[uuid.UUID]bool, len(rooms))
	for _, r := range rooms {
		found[r.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, &domain.Error{Kind: domain.KindValidation, Message: "rooms do not exist", IDs: missing}
	}

	var foreign []string
	for _, r := range rooms {
		if r.HotelID != hotelID {
			foreign = append(foreign, r.ID.String())
		}
	}
	if len(foreign) > 0 {
		return nil, &domain.Error{
			Kind:    domain.KindValidation,
			Message: "rooms do not belong to hotel " + hotelID.String(),
			IDs:     foreign,
		}
	}
	return rooms, nil
}

// CheckAvailability fails when a room is unlisted or held by an active
// booking overlapping [checkIn, checkOut). exclude skips one booking.
func CheckAvailability(ctx context.Context, tx domain.Tx, rooms []domain.Room, roomIDs []uuid.UUID, checkIn, checkOut time.Time, exclude *uuid.UUID) error {
	var unlisted []string
	for _, r := range rooms {
		if !r.Available {
			unlisted = append(unlisted, r.ID.String())
		}
	}
	if len(unlisted) > 0 {
		return domain.NewConflict("rooms are not open for booking", unlisted...)
	}

	return CheckOverlap(ctx, tx, roomIDs, checkIn, checkOut, exclude)
}

// CheckOverlap fails when an active booking other than exclude holds one of
// roomIDs during [checkIn, checkOut). The conflict names the rooms.
func CheckOverlap(ctx context.Context, tx domain.Tx, roomIDs []uuid.UUID, checkIn, checkOut time.Time, exclude *uuid.UUID) error {
	requested := Unique(roomIDs)
	overlapping, err := tx.FindOverlapping(ctx, domain.OverlapQuery{
		RoomIDs:          requested,
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		ExcludeBookingID: exclude,
	})
	if err != nil {
		return errors.Wrap(err, "find overlapping bookings")
	}

	conflicting := make(map[uuid.UUID]bool)
	for _, b := range overlapping {
		for _, id := range requested {
			if b.HasRoom(id) {
				conflicting[id] = true
			}
		}
	}
	if len(conflicting) == 0 {
		return nil
	}
	ids := make([]string, 0, len(conflicting))
	for _, id := range requested {
		if conflicting[id] {
			ids = append(ids, id.String())
		}
	}
	return domain.NewConflict("rooms already booked for the requested dates", ids...)
}

// ListAvailableRooms returns listed rooms of the hotel with no overlapping
// active booking.
func ListAvailableRooms(ctx context.Context, tx domain.Tx, hotelID uuid.UUID, checkIn, checkOut time.Time) ([]domain.Room, error) {
	all, err := tx.ListHotelRooms(ctx, hotelID)
	if err != nil {
		return nil, errors.Wrap(err, "list hotel rooms")
	}
	var listed []domain.Room
	var ids []uuid.UUID
	for _, r := range all {
		if r.Available {
			listed = append(listed, r)
			ids = append(ids, r.ID)
		}
	}
	if len(listed) == 0 {
		return nil, nil
	}

	overlapping, err := tx.FindOverlapping(ctx, domain.OverlapQuery{RoomIDs: ids, CheckIn: checkIn, CheckOut: checkOut})
	if err != nil {
		return nil, errors.Wrap(err, "find overlapping bookings")
	}
	taken := make(map[uuid.UUID]bool)
	for _, b := range overlapping {
		for _, id := range b.RoomIDs {
			taken[id] = true
		}
	}

	free := listed[:0]
	for _, r := range listed {
		if !taken[r.ID] {
			free = append(free, r)
		}
	}
	return free, nil
}

// UnavailableDates expands every overlapping active booking of the room into
// calendar dates, clipped to [from, to].
func UnavailableDates(ctx context.Context, tx domain.Tx, roomID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	from, to = domain.DateOf(from), domain.DateOf(to)
	if to.Before(from) {
		return nil, domain.NewValidation("invalid date range", "to must not be before from")
	}

	overlapping, err := tx.FindOverlapping(ctx, domain.OverlapQuery{
		RoomIDs:  []uuid.UUID{roomID},
		CheckIn:  from,
		CheckOut: to.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, errors.Wrap(err, "find overlapping bookings")
	}

	seen := make(map[time.Time]bool)
	for _, b := range overlapping {
		for d := domain.DateOf(b.CheckIn); d.Before(domain.DateOf(b.CheckOut)); d = d.AddDate(0, 0, 1) {
			if d.Before(from) || d.After(to) {
				continue
			}
			seen[d] = true
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// Unique drops duplicate ids keeping the first occurrence.
func Unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
