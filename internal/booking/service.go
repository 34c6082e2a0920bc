// Package booking owns the reservation lifecycle: creation with availability
// proof and voucher redemption, updates, cancellation, staff driven status
// changes and bulk soft delete, restore and permanent delete.
package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/availability"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/notify"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/voucher"
	"github.com/shopspring/decimal"
)

type Notifier interface {
	BookingCreated(ctx context.Context, ev notify.BookingCreated, actor domain.Actor)
}

type Service struct {
	store    domain.Store
	guests   domain.GuestDirectory
	notifier Notifier
	logger   observability.Logger
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store domain.Store, guests domain.GuestDirectory, notifier Notifier, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		guests:   guests,
		notifier: notifier,
		logger:   logger,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subtotal is the sum of nightly prices times the number of nights.
func Subtotal(rooms []domain.Room, nights int) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rooms {
		sum = sum.Add(r.Price)
	}
	return sum.Mul(decimal.NewFromInt(int64(nights)))
}

// Create validates the request, proves the rooms are free, redeems the
// voucher and persists a PENDING booking, all in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor domain.Actor) (*domain.Booking, error) {
	stay, err := s.validateCreate(req, actor)
	if err != nil {
		return nil, err
	}

	guestID := actor.ID
	if !actor.IsGuest() {
		guestID = *req.GuestID
	}
	guest, err := s.guests.GetGuest(ctx, guestID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve guest")
	}

	now := s.now()
	b := &domain.Booking{
		ID:            uuid.New(),
		HotelID:       req.HotelID,
		RoomIDs:       availability.Unique(req.RoomIDs),
		GuestID:       guest.ID,
		CheckIn:       stay.checkIn,
		CheckOut:      stay.checkOut,
		Status:        domain.StatusPending,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		var v *domain.Voucher
		if req.VoucherID != nil {
			found, err := tx.GetVoucher(ctx, *req.VoucherID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return errors.Wrap(err, "get voucher")
			}
			v = found
			if err := voucher.Validate(v, req.HotelID, now); err != nil {
				return err
			}
		}

		rooms, err := availability.ResolveRooms(ctx, tx, b.RoomIDs, b.HotelID)
		if err != nil {
			return err
		}
		if err := availability.CheckAvailability(ctx, tx, rooms, b.RoomIDs, b.CheckIn, b.CheckOut, nil); err != nil {
			return err
		}

		b.TotalPrice = Subtotal(rooms, b.Nights())
		if v != nil {
			total, err := voucher.PriceAndRedeem(ctx, tx, v, b.TotalPrice)
			if err != nil {
				return err
			}
			b.TotalPrice = total
			b.VoucherID = &v.ID
			b.DiscountPercent = v.Percent
		}

		b.Code = NewCode()
		return tx.InsertBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	observability.BookingsCreated.Inc()
	s.logger.WithField("code", b.Code).WithField("hotel_id", b.HotelID).Info("booking created")
	s.notifier.BookingCreated(ctx, notify.NewBookingCreated(b, guest.Name), actor)
	return b, nil
}

// Update replaces the hotel, rooms, dates and mutable fields of a PENDING
// booking. Availability is re-proven for the new range, ignoring the booking
// itself, and the recorded voucher percent is re-applied without redeeming again.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest, actor domain.Actor) (*domain.Booking, error) {
	stay, err := s.validateUpdate(req)
	if err != nil {
		return nil, err
	}

	var updated *domain.Booking
	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		b, err := s.loadOwned(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		if b.Status != domain.StatusPending {
			return domain.NewConflict("only PENDING bookings can be changed, booking is "+string(b.Status), b.ID.String())
		}
		if b.VoucherID != nil && b.HotelID != req.HotelID {
			return domain.NewValidation("invalid booking request", "a booking priced with a voucher cannot move to another hotel")
		}

		roomIDs := availability.Unique(req.RoomIDs)
		rooms, err := availability.ResolveRooms(ctx, tx, roomIDs, req.HotelID)
		if err != nil {
			return err
		}
		if err := availability.CheckAvailability(ctx, tx, rooms, roomIDs, stay.checkIn, stay.checkOut, &b.ID); err != nil {
			return err
		}

		b.HotelID = req.HotelID
		b.RoomIDs = roomIDs
		b.CheckIn = stay.checkIn
		b.CheckOut = stay.checkOut
		b.PaymentMethod = req.PaymentMethod
		b.Notes = req.Notes
		b.TotalPrice = voucher.ApplyDiscount(Subtotal(rooms, b.Nights()), b.DiscountPercent)
		b.UpdatedAt = s.now()
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return errors.Wrap(err, "update booking")
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel is only allowed for the guest who owns the booking. The voucher it
// consumed is not returned.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor domain.Actor) error {
	return s.store.WithTx(ctx, func(tx domain.Tx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Deleted {
			return domain.NewNotFound("booking %s not found", id)
		}
		if b.GuestID != actor.ID {
			return domain.NewForbidden("only the guest who made booking %s can cancel it", b.Code)
		}
		return s.transition(ctx, tx, b, domain.StatusCancelled)
	})
}

// ChangeStatus lets staff drive a booking along the legal transitions, e.g.
// CONFIRMED to CHECKIN, or PENDING to CONFIRMED for cash payments. PAYING and
// EXPIRED are reserved for payments and the sweeper; cancelling is left to the
// owning guest.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to domain.Status, actor domain.Actor) (*domain.Booking, error) {
	if !actor.IsStaff() {
		return nil, domain.NewForbidden("only staff can change booking status")
	}
	if to == domain.StatusCancelled {
		return nil, domain.NewForbidden("only the guest who made a booking can cancel it")
	}
	if to == domain.StatusExpired || to == domain.StatusPaying {
		return nil, domain.NewValidation("invalid status change", string(to)+" cannot be set manually")
	}

	var changed *domain.Booking
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Deleted {
			return domain.NewNotFound("booking %s not found", id)
		}
		if err := s.transition(ctx, tx, b, to); err != nil {
			return err
		}
		changed = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (s *Service) transition(ctx context.Context, tx domain.Tx, b *domain.Booking, to domain.Status) error {
	return Transition(ctx, tx, b, to, s.now())
}

// Transition moves b to status to inside tx and records the lifecycle event
// in the outbox. Illegal moves are conflicts; losing a race to another writer
// is reported as a serialization failure.
func Transition(ctx context.Context, tx domain.Tx, b *domain.Booking, to domain.Status, at time.Time) error {
	from := b.Status
	if !from.CanTransitionTo(to) {
		return domain.NewConflict("booking cannot move from "+string(from)+" to "+string(to), b.ID.String())
	}
	ok, err := tx.UpdateBookingStatus(ctx, b.ID, from, to, at)
	if err != nil {
		return errors.Wrap(err, "update booking status")
	}
	if !ok {
		return domain.ErrSerializationFailure
	}
	b.Status = to
	b.UpdatedAt = at
	if err := tx.InsertOutbox(ctx, domain.NewLifecycleEvent(b, from, to, at)); err != nil {
		return errors.Wrap(err, "insert outbox")
	}
	return nil
}

// Get returns a booking to its guest or to staff. Soft deleted bookings are
// visible to staff only.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Booking, error) {
	var found *domain.Booking
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		b, err := s.loadOwned(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		found = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Service) loadOwned(ctx context.Context, tx domain.Tx, id uuid.UUID, actor domain.Actor) (*domain.Booking, error) {
	b, err := tx.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Deleted && !actor.IsStaff() {
		return nil, domain.NewNotFound("booking %s not found", id)
	}
	if !actor.IsStaff() && b.GuestID != actor.ID {
		return nil, domain.NewForbidden("booking %s belongs to another guest", b.Code)
	}
	return b, nil
}

func (s *Service) ListAvailableRooms(ctx context.Context, hotelID uuid.UUID, checkIn, checkOut time.Time) ([]domain.Room, error) {
	if !checkOut.After(checkIn) {
		return nil, domain.NewValidation("invalid date range", "check_out must be after check_in")
	}
	var rooms []domain.Room
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		rooms, err = availability.ListAvailableRooms(ctx, tx, hotelID, checkIn, checkOut)
		return err
	})
	return rooms, err
}

func (s *Service) UnavailableDates(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	var dates []time.Time
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		dates, err = availability.UnavailableDates(ctx, tx, roomID, from, to)
		return err
	})
	return dates, err
}
