package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/hotel-reservations/internal/adapters/crdb"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records   []crdb.OutboxRecord
	published []uuid.UUID
}

func (f *fakeSource) GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error) {
	var out []crdb.OutboxRecord
	for _, r := range f.records {
		if r.Status == "NEW" && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Status = "PUBLISHED"
		}
	}
	f.published = append(f.published, id)
	return nil
}

type fakeBroker struct {
	keys   []string
	msgs   []amqp.Publishing
	failOn string
}

func (b *fakeBroker) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	if key == b.failOn {
		return errors.New("channel closed")
	}
	b.keys = append(b.keys, key)
	b.msgs = append(b.msgs, msg)
	return nil
}

func record(eventType string, created time.Time) crdb.OutboxRecord {
	id := uuid.New()
	return crdb.OutboxRecord{
		ID:        id,
		EventType: eventType,
		Payload:   []byte(`{}`),
		CreatedAt: created,
		Status:    "NEW",
		DedupeKey: id.String() + ":" + eventType,
	}
}

func TestRunOnce_PublishesInOrder(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	src := &fakeSource{records: []crdb.OutboxRecord{
		record("booking.paying", t0),
		record("booking.confirmed", t0.Add(time.Second)),
	}}
	broker := &fakeBroker{}
	p := NewPublisher(src, broker, observability.NewNopLogger())

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"booking.paying", "booking.confirmed"}, broker.keys)
	assert.Equal(t, src.records[0].DedupeKey, broker.msgs[0].MessageId)

	n, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "published records are not sent again")
}

func TestRunOnce_StopsAtFailure(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	src := &fakeSource{records: []crdb.OutboxRecord{
		record("booking.paying", t0),
		record("booking.expired", t0.Add(time.Second)),
		record("booking.deleted", t0.Add(2*time.Second)),
	}}
	broker := &fakeBroker{failOn: "booking.expired"}
	p := NewPublisher(src, broker, observability.NewNopLogger())

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{src.records[0].ID}, src.published)
	assert.Equal(t, "NEW", src.records[1].Status)
	assert.Equal(t, "NEW", src.records[2].Status)
}
