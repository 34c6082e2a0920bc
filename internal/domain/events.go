package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LifecyclePayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	Code      string    `json:"code"`
	HotelID   uuid.UUID `json:"hotel_id"`
	GuestID   uuid.UUID `json:"guest_id"`
	From      Status    `json:"from"`
	Status    Status    `json:"status"`
	At        time.Time `json:"at"`
}

// NewLifecycleEvent records a status change for the outbox, e.g. "booking.confirmed".
func NewLifecycleEvent(b *Booking, from, to Status, at time.Time) OutboxEvent {
	payload, _ := json.Marshal(LifecyclePayload{
		BookingID: b.ID,
		Code:      b.Code,
		HotelID:   b.HotelID,
		GuestID:   b.GuestID,
		From:      from,
		Status:    to,
		At:        at,
	})
	return OutboxEvent{
		ID:          uuid.New(),
		AggregateID: b.ID,
		EventType:   "booking." + strings.ToLower(string(to)),
		Payload:     payload,
		DedupeKey:   b.ID.String() + ":" + string(to),
	}
}
