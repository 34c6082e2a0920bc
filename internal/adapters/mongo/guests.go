package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GuestDirectory resolves guest profiles owned by the account service.
type GuestDirectory struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewGuestDirectory(db *mongo.Database, logger observability.Logger) *GuestDirectory {
	return &GuestDirectory{
		coll:   db.Collection("guests"),
		logger: logger,
	}
}

type GuestDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Role  string `bson:"role"`
}

func (g *GuestDirectory) GetGuest(ctx context.Context, id uuid.UUID) (*domain.Guest, error) {
	var doc GuestDoc
	err := g.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewNotFound("guest %s not found", id)
	}
	if err != nil {
		g.logger.WithError(err).Error("failed to get guest")
		return nil, err
	}
	guestID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "guest %q", doc.ID)
	}
	return &domain.Guest{ID: guestID, Name: doc.Name, Email: doc.Email, Role: domain.Role(doc.Role)}, nil
}

func (g *GuestDirectory) PutGuest(ctx context.Context, guest domain.Guest) error {
	doc := GuestDoc{ID: guest.ID.String(), Name: guest.Name, Email: guest.Email, Role: string(guest.Role)}
	_, err := g.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		g.logger.WithError(err).Error("failed to upsert guest")
		return err
	}
	return nil
}
