// Package mongostore implements the repository contracts on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homelet/api/internal/db"
	"homelet/api/internal/repository"
)

// New returns every store backed by database.
func New(database *mongo.Database) repository.Stores {
	return repository.Stores{
		Users:      &userStore{coll: database.Collection(db.UsersCollection)},
		Properties: &propertyStore{coll: database.Collection(db.PropertiesCollection)},
		Rentals:    &rentalStore{coll: database.Collection(db.RentalsCollection)},
		Invites:    newInviteStore(database),
		Chats:      &chatStore{coll: database.Collection(db.ChatsCollection)},
		Messages:   &messageStore{coll: database.Collection(db.MessagesCollection)},
		Reminders:  &reminderLogStore{coll: database.Collection(db.ReminderLogCollection)},
	}
}

// findOne decodes the first document matching filter into a new T.
func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	return &out, nil
}

// findMany decodes every document matching filter.
func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

// translateInsertErr maps db.ErrDuplicateKey to repository.ErrDuplicate.
func translateInsertErr(err error) error {
	if db.IsDuplicate(err) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}
