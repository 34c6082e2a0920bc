package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/availability"
	"github.com/robertarktes/hotel-reservations/internal/domain"
)

// SoftDelete marks every booking in ids deleted, or none of them.
func (s *Service) SoftDelete(ctx context.Context, ids []uuid.UUID, actor domain.Actor) error {
	return s.bulk(ctx, ids, actor, func(b domain.Booking) bool { return !b.Deleted }, "bookings are already deleted",
		func(tx domain.Tx, bookings []domain.Booking) error {
			return tx.SetBookingsDeleted(ctx, idsOf(bookings), true, s.now())
		})
}

// Restore undoes SoftDelete for every booking in ids, or none of them. Active
// bookings must still find their rooms free, since deleted bookings stop
// occupying them.
func (s *Service) Restore(ctx context.Context, ids []uuid.UUID, actor domain.Actor) error {
	return s.bulk(ctx, ids, actor, func(b domain.Booking) bool { return b.Deleted }, "bookings are not deleted",
		func(tx domain.Tx, bookings []domain.Booking) error {
			if err := s.checkRestorable(ctx, tx, bookings); err != nil {
				return err
			}
			return tx.SetBookingsDeleted(ctx, idsOf(bookings), false, s.now())
		})
}

// PermanentDelete removes the bookings and their room associations.
func (s *Service) PermanentDelete(ctx context.Context, ids []uuid.UUID, actor domain.Actor) error {
	return s.bulk(ctx, ids, actor, func(domain.Booking) bool { return true }, "",
		func(tx domain.Tx, bookings []domain.Booking) error {
			return tx.DeleteBookings(ctx, idsOf(bookings))
		})
}

// checkRestorable rejects the batch when an active booking would overlap a
// live booking or another booking of the same batch.
func (s *Service) checkRestorable(ctx context.Context, tx domain.Tx, bookings []domain.Booking) error {
	var conflicting []string
	var restored []domain.Booking
	for _, b := range bookings {
		if !b.Status.IsActive() {
			continue
		}
		if _, err := availability.ResolveRooms(ctx, tx, b.RoomIDs, b.HotelID); err != nil {
			return err
		}
		err := availability.CheckOverlap(ctx, tx, b.RoomIDs, b.CheckIn, b.CheckOut, &b.ID)
		switch {
		case domain.KindOf(err) == domain.KindConflict:
			conflicting = append(conflicting, b.ID.String())
			continue
		case err != nil:
			return err
		}
		if clashesWith(b, restored) {
			conflicting = append(conflicting, b.ID.String())
			continue
		}
		restored = append(restored, b)
	}
	if len(conflicting) > 0 {
		return domain.NewInvalidIDSet("bookings overlap active bookings of the same rooms", conflicting...)
	}
	return nil
}

func clashesWith(b domain.Booking, others []domain.Booking) bool {
	for _, o := range others {
		if !domain.Overlaps(b.CheckIn, b.CheckOut, o.CheckIn, o.CheckOut) {
			continue
		}
		for _, id := range b.RoomIDs {
			if o.HasRoom(id) {
				return true
			}
		}
	}
	return false
}

func idsOf(bookings []domain.Booking) []uuid.UUID {
	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	return ids
}

func (s *Service) bulk(ctx context.Context, ids []uuid.UUID, actor domain.Actor, precondition func(domain.Booking) bool, failure string, apply func(tx domain.Tx, bookings []domain.Booking) error) error {
	if !actor.IsStaff() {
		return domain.NewForbidden("only staff can manage bookings in bulk")
	}
	ids = availability.Unique(ids)
	if len(ids) == 0 {
		return domain.NewValidation("invalid id set", "ids must not be empty")
	}

	return s.store.WithTx(ctx, func(tx domain.Tx) error {
		bookings, err := tx.GetBookings(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "get bookings")
		}

		found := make(map[uuid.UUID]domain.Booking, len(bookings))
		for _, b := range bookings {
			found[b.ID] = b
		}
		var missing, rejected []string
		ordered := make([]domain.Booking, 0, len(ids))
		for _, id := range ids {
			b, ok := found[id]
			switch {
			case !ok:
				missing = append(missing, id.String())
			case !precondition(b):
				rejected = append(rejected, id.String())
			default:
				ordered = append(ordered, b)
			}
		}
		if len(missing) > 0 {
			return domain.NewInvalidIDSet("bookings do not exist", missing...)
		}
		if len(rejected) > 0 {
			return domain.NewInvalidIDSet(failure, rejected...)
		}
		return apply(tx, ordered)
	})
}
