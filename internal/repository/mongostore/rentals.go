package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homelet/api/internal/models"
)

type rentalStore struct {
	coll *mongo.Collection
}

func (s *rentalStore) FindByID(ctx context.Context, id int64) (*models.Rental, error) {
	return findOne[models.Rental](ctx, s.coll, bson.M{"_id": id})
}

func (s *rentalStore) FindDue(ctx context.Context, from, until time.Time) ([]models.Rental, error) {
	filter := bson.M{
		"is_active":     true,
		"borrower_id":   bson.M{"$ne": nil},
		"next_due_date": bson.M{"$gte": from, "$lte": until},
	}
	return findMany[models.Rental](ctx, s.coll, filter, options.Find().SetSort(bson.D{{Key: "next_due_date", Value: 1}}))
}

type reminderLogStore struct {
	coll *mongo.Collection
}

func (s *reminderLogStore) Record(ctx context.Context, entry models.ReminderLog) error {
	if _, err := s.coll.InsertOne(ctx, entry); err != nil {
		return translateInsertErr(err)
	}
	return nil
}
