package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homelet/api/internal/db"
	"homelet/api/internal/models"
	"homelet/api/internal/repository"
)

type inviteStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	rentals *mongo.Collection
}

func newInviteStore(database *mongo.Database) *inviteStore {
	return &inviteStore{
		client:  database.Client(),
		coll:    database.Collection(db.InvitesCollection),
		rentals: database.Collection(db.RentalsCollection),
	}
}

func (s *inviteStore) Insert(ctx context.Context, invite *models.RentalInvite) (*models.RentalInvite, error) {
	doc, err := db.InsertOne(ctx, s.coll, invite)
	if err != nil {
		return nil, translateInsertErr(err)
	}
	return doc, nil
}

func (s *inviteStore) FindByCode(ctx context.Context, code string) (*models.RentalInvite, error) {
	return findOne[models.RentalInvite](ctx, s.coll, bson.M{"code": code})
}

func (s *inviteStore) ListByRental(ctx context.Context, rentalID int64) ([]models.RentalInvite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	return findMany[models.RentalInvite](ctx, s.coll, bson.M{"rental_id": rentalID}, opts)
}

// AcceptAndLink runs the conditional claim and the borrower write in one
// transaction, so a failed link leaves the invite pending.
func (s *inviteStore) AcceptAndLink(ctx context.Context, inviteID, acceptedBy int64, link bool, now time.Time) (*models.RentalInvite, *models.Rental, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	var (
		invite models.RentalInvite
		rental *models.Rental
	)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{"_id": inviteID, "status": models.InviteStatusPending}
		update := bson.M{"$set": bson.M{
			"status":      models.InviteStatusAccepted,
			"accepted_by": acceptedBy,
			"accepted_at": now,
		}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := s.coll.FindOneAndUpdate(sc, filter, update, opts).Decode(&invite); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, repository.ErrPreconditionFailed
			}
			return nil, fmt.Errorf("failed to accept invite %d: %w", inviteID, err)
		}

		if !link {
			found, err := findOne[models.Rental](sc, s.rentals, bson.M{"_id": invite.RentalID})
			rental = found
			return nil, err
		}
		var updated models.Rental
		err := s.rentals.FindOneAndUpdate(sc,
			bson.M{"_id": invite.RentalID},
			bson.M{"$set": bson.M{"borrower_id": acceptedBy, "updated_at": now}},
			opts,
		).Decode(&updated)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, repository.ErrNotFound
			}
			return nil, fmt.Errorf("failed to set borrower on rental %d: %w", invite.RentalID, err)
		}
		rental = &updated
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &invite, rental, nil
}
