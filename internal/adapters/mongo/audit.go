package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditLogger keeps every payment callback as received, accepted or not.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("payment_callbacks"),
		logger: logger,
	}
}

type CallbackDoc struct {
	ID          string            `bson:"_id"`
	Provider    string            `bson:"provider"`
	BookingCode string            `bson:"booking_code"`
	Outcome     string            `bson:"outcome"`
	Error       string            `bson:"error,omitempty"`
	Params      map[string]string `bson:"params"`
	Timestamp   time.Time         `bson:"timestamp"`
}

func (a *AuditLogger) RecordCallback(ctx context.Context, rec payment.AuditRecord) error {
	doc := CallbackDoc{
		ID:          uuid.NewString(),
		Provider:    string(rec.Provider),
		BookingCode: rec.BookingCode,
		Outcome:     string(rec.Outcome),
		Error:       rec.Error,
		Params:      rec.Params,
		Timestamp:   rec.At,
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert payment callback audit")
		return err
	}
	return nil
}

// Callbacks returns the audit trail of one booking, oldest first.
func (a *AuditLogger) Callbacks(ctx context.Context, bookingCode string) ([]CallbackDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := a.coll.Find(ctx, bson.M{"booking_code": bookingCode}, opts)
	if err != nil {
		return nil, err
	}
	var docs []CallbackDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
