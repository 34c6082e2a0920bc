// Package notify fans "booking created" events out to hotel scoped and
// system wide topics. Delivery is best effort: at most once, no retry.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	EventBookingCreated = "booking.created"
	SystemTopic         = "system." + EventBookingCreated
)

func HotelTopic(hotelID uuid.UUID) string {
	return "hotel." + hotelID.String() + "." + EventBookingCreated
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type BookingCreated struct {
	Code      string      `json:"code"`
	GuestName string      `json:"guest_name"`
	HotelID   uuid.UUID   `json:"hotel_id"`
	RoomIDs   []uuid.UUID `json:"room_ids"`
	CheckIn   string      `json:"check_in"`
	CheckOut  string      `json:"check_out"`
	Total     string      `json:"total"`
}

func NewBookingCreated(b *domain.Booking, guestName string) BookingCreated {
	return BookingCreated{
		Code:      b.Code,
		GuestName: guestName,
		HotelID:   b.HotelID,
		RoomIDs:   b.RoomIDs,
		CheckIn:   b.CheckIn.Format(time.DateOnly),
		CheckOut:  b.CheckOut.Format(time.DateOnly),
		Total:     b.TotalPrice.String(),
	}
}

type Publisher struct {
	broker  Broker
	logger  observability.Logger
	timeout time.Duration
}

// NewPublisher returns a publisher; a nil broker makes every call a no-op.
func NewPublisher(broker Broker, logger observability.Logger) *Publisher {
	return &Publisher{broker: broker, logger: logger, timeout: 3 * time.Second}
}

// BookingCreated never fails the caller. Undeliverable events are logged and dropped.
func (p *Publisher) BookingCreated(ctx context.Context, ev BookingCreated, actor domain.Actor) {
	if p == nil || p.broker == nil {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.WithError(err).Error("failed to encode booking notification")
		return
	}

	topics := []string{HotelTopic(ev.HotelID)}
	if actor.IsElevated() {
		topics = append(topics, SystemTopic)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			err := p.broker.Publish(gctx, topic, amqp.Publishing{
				MessageId:   uuid.NewString(),
				ContentType: "application/json",
				Timestamp:   time.Now().UTC(),
				Type:        EventBookingCreated,
				Body:        body,
			})
			if err != nil {
				observability.NotificationsDropped.Inc()
				p.logger.WithField("topic", topic).WithField("code", ev.Code).WithError(err).Warn("booking notification dropped")
			}
			return nil
		})
	}
	_ = g.Wait()
}
