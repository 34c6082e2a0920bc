package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/hotel-reservations/internal/adapters/mongo"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	return client.Database("hotel")
}

func TestGuestDirectory(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()
	dir := mongoadapter.NewGuestDirectory(db, observability.NewNopLogger())

	guest := domain.Guest{ID: uuid.New(), Name: "Lan", Email: "lan@example.com", Role: domain.RoleGuest}
	require.NoError(t, dir.PutGuest(ctx, guest))
	guest.Name = "Lan Nguyen"
	require.NoError(t, dir.PutGuest(ctx, guest))

	got, err := dir.GetGuest(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, guest, *got)

	_, err = dir.GetGuest(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAuditLogger_RecordCallback(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()
	audit := mongoadapter.NewAuditLogger(db, observability.NewNopLogger())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, audit.RecordCallback(ctx, payment.AuditRecord{
		Provider:    payment.ProviderVNPay,
		BookingCode: "BK1",
		Params:      map[string]string{"vnp_TxnRef": "BK1", "vnp_ResponseCode": "00"},
		Outcome:     payment.OutcomeConfirmed,
		At:          at,
	}))
	require.NoError(t, audit.RecordCallback(ctx, payment.AuditRecord{
		Provider:    payment.ProviderVNPay,
		BookingCode: "BK1",
		Outcome:     payment.OutcomeBadSignature,
		Error:       payment.ErrBadSignature.Error(),
		At:          at.Add(time.Second),
	}))

	docs, err := audit.Callbacks(ctx, "BK1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "confirmed", docs[0].Outcome)
	assert.Equal(t, "00", docs[0].Params["vnp_ResponseCode"])
	assert.Equal(t, "bad_signature", docs[1].Outcome)
	assert.NotEmpty(t, docs[1].Error)
}
