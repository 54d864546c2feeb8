package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"homelet/api/internal/models"
)

type userStore struct {
	coll *mongo.Collection
}

// FindByID returns a non-deleted user.
func (s *userStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"_id": id, "deleted": false})
}

type propertyStore struct {
	coll *mongo.Collection
}

// FindByID returns a non-deleted property.
func (s *propertyStore) FindByID(ctx context.Context, id int64) (*models.Property, error) {
	return findOne[models.Property](ctx, s.coll, bson.M{"_id": id, "deleted": false})
}
