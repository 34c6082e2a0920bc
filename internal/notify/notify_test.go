package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/notify"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroker struct {
	mu   sync.Mutex
	keys []string
	msgs []amqp.Publishing
	err  error
}

func (b *recordingBroker) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	b.msgs = append(b.msgs, msg)
	return b.err
}

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		Code:       "BK-ABC123",
		HotelID:    uuid.New(),
		RoomIDs:    []uuid.UUID{uuid.New()},
		CheckIn:    time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		TotalPrice: decimal.NewFromInt(1000000),
	}
}

func TestBookingCreated_GuestGoesToHotelTopicOnly(t *testing.T) {
	broker := &recordingBroker{}
	p := notify.NewPublisher(broker, observability.NewNopLogger())
	b := sampleBooking()

	p.BookingCreated(context.Background(), notify.NewBookingCreated(b, "Lan"), domain.Actor{ID: uuid.New(), Role: domain.RoleGuest})

	require.Equal(t, []string{notify.HotelTopic(b.HotelID)}, broker.keys)

	var ev notify.BookingCreated
	require.NoError(t, json.Unmarshal(broker.msgs[0].Body, &ev))
	assert.Equal(t, "BK-ABC123", ev.Code)
	assert.Equal(t, "Lan", ev.GuestName)
	assert.Equal(t, "2024-05-10", ev.CheckIn)
	assert.Equal(t, "1000000", ev.Total)
}

func TestBookingCreated_AdminAlsoGoesSystemWide(t *testing.T) {
	broker := &recordingBroker{}
	p := notify.NewPublisher(broker, observability.NewNopLogger())
	b := sampleBooking()

	p.BookingCreated(context.Background(), notify.NewBookingCreated(b, "Lan"), domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin})

	keys := append([]string(nil), broker.keys...)
	sort.Strings(keys)
	expected := []string{notify.HotelTopic(b.HotelID), notify.SystemTopic}
	sort.Strings(expected)
	assert.Equal(t, expected, keys)
}

func TestBookingCreated_BrokerFailureIsSwallowed(t *testing.T) {
	broker := &recordingBroker{err: errors.New("channel closed")}
	p := notify.NewPublisher(broker, observability.NewNopLogger())

	assert.NotPanics(t, func() {
		p.BookingCreated(context.Background(), notify.NewBookingCreated(sampleBooking(), "Lan"), domain.Actor{Role: domain.RoleGuest})
	})
	assert.Len(t, broker.keys, 1)
}

func TestBookingCreated_NilBrokerIsNoop(t *testing.T) {
	p := notify.NewPublisher(nil, observability.NewNopLogger())
	assert.NotPanics(t, func() {
		p.BookingCreated(context.Background(), notify.NewBookingCreated(sampleBooking(), "Lan"), domain.Actor{Role: domain.RoleGuest})
	})
}
