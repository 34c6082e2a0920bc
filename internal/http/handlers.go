package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/booking"
	"github.com/robertarktes/hotel-reservations/internal/config"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/shopspring/decimal"
)

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

type Handlers struct {
	cfg      *config.Config
	bookings *booking.Service
	payments *payment.Reconciler
	checks   map[string]Check
	logger   observability.Logger
}

func NewHandlers(cfg *config.Config, bookings *booking.Service, payments *payment.Reconciler, checks map[string]Check, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		bookings: bookings,
		payments: payments,
		checks:   checks,
		logger:   logger,
	}
}

type bookingView struct {
	ID              uuid.UUID       `json:"id"`
	Code            string          `json:"code"`
	HotelID         uuid.UUID       `json:"hotel_id"`
	RoomIDs         []uuid.UUID     `json:"room_ids"`
	GuestID         uuid.UUID       `json:"guest_id"`
	CheckIn         string          `json:"check_in"`
	CheckOut        string          `json:"check_out"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          domain.Status   `json:"status"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	VoucherID       *uuid.UUID      `json:"voucher_id,omitempty"`
	DiscountPercent int             `json:"discount_percent"`
	Deleted         bool            `json:"deleted"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toView(b *domain.Booking) bookingView {
	return bookingView{
		ID:              b.ID,
		Code:            b.Code,
		HotelID:         b.HotelID,
		RoomIDs:         b.RoomIDs,
		GuestID:         b.GuestID,
		CheckIn:         b.CheckIn.Format(time.DateOnly),
		CheckOut:        b.CheckOut.Format(time.DateOnly),
		TotalPrice:      b.TotalPrice,
		Status:          b.Status,
		PaymentMethod:   b.PaymentMethod,
		Notes:           b.Notes,
		VoucherID:       b.VoucherID,
		DiscountPercent: b.DiscountPercent,
		Deleted:         b.Deleted,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type roomView struct {
	ID       uuid.UUID       `json:"id"`
	Number   string          `json:"number"`
	Price    decimal.Decimal `json:"price"`
	Capacity int             `json:"capacity"`
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.NewValidation("invalid id", name+" must be a UUID")
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, r.URL.Query().Get(name))
	if err != nil {
		return time.Time{}, domain.NewValidation("invalid date", name+" must be a YYYY-MM-DD date")
	}
	return t, nil
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.Create(r.Context(), req, ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, "booking created", toView(b))
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.Get(r.Context(), id, ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "ok", toView(b))
}

func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req booking.UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.Update(r.Context(), id, req, ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "booking updated", toView(b))
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.bookings.Cancel(r.Context(), id, ActorFrom(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "booking cancelled", nil)
}

func (h *Handlers) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeError(w, r, h.logger, domain.NewValidation("invalid status", "unknown status "+req.Status))
		return
	}
	b, err := h.bookings.ChangeStatus(r.Context(), id, to, ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "booking status changed", toView(b))
}

type bulkRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (h *Handlers) bulk(op func(ctx context.Context, ids []uuid.UUID, actor domain.Actor) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if err := op(r.Context(), req.IDs, ActorFrom(r.Context())); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeData(w, http.StatusOK, message, map[string]int{"count": len(req.IDs)})
	}
}

func (h *Handlers) SoftDeleteBookings(w http.ResponseWriter, r *http.Request) {
	h.bulk(h.bookings.SoftDelete, "bookings deleted")(w, r)
}

func (h *Handlers) RestoreBookings(w http.ResponseWriter, r *http.Request) {
	h.bulk(h.bookings.Restore, "bookings restored")(w, r)
}

func (h *Handlers) PermanentDeleteBookings(w http.ResponseWriter, r *http.Request) {
	h.bulk(h.bookings.PermanentDelete, "bookings permanently deleted")(w, r)
}

func (h *Handlers) AvailableRooms(w http.ResponseWriter, r *http.Request) {
	hotelID, err := pathID(r, "hotelID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	checkIn, err := queryDate(r, "check_in")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	checkOut, err := queryDate(r, "check_out")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rooms, err := h.bookings.ListAvailableRooms(r.Context(), hotelID, checkIn, checkOut)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	views := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, roomView{ID: room.ID, Number: room.Number, Price: room.Price, Capacity: room.Capacity})
	}
	writeData(w, http.StatusOK, "ok", views)
}

func (h *Handlers) UnavailableDates(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "roomID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	dates, err := h.bookings.UnavailableDates(r.Context(), roomID, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(time.DateOnly))
	}
	writeData(w, http.StatusOK, "ok", out)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WithField("dependency", name).WithError(err).Warn("readiness check failed")
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
