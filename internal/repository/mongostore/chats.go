package mongostore

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homelet/api/internal/db"
	"homelet/api/internal/models"
)

type chatStore struct {
	coll *mongo.Collection
}

func (s *chatStore) FindByID(ctx context.Context, id int64) (*models.Chat, error) {
	return findOne[models.Chat](ctx, s.coll, bson.M{"_id": id})
}

// FindByKey matches property_id exactly; a nil propertyID matches only the legacy chat.
func (s *chatStore) FindByKey(ctx context.Context, participantA, participantB int64, propertyID *int64) (*models.Chat, error) {
	filter := bson.M{"participant_a": participantA, "participant_b": participantB, "property_id": nil}
	if propertyID != nil {
		filter["property_id"] = *propertyID
	}
	return findOne[models.Chat](ctx, s.coll, filter)
}

func (s *chatStore) Insert(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	doc, err := db.InsertOne(ctx, s.coll, chat)
	if err != nil {
		return nil, translateInsertErr(err)
	}
	return doc, nil
}

func (s *chatStore) ListForUser(ctx context.Context, userID int64) ([]models.Chat, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"participant_a": userID},
		bson.M{"participant_b": userID},
	}}
	return findMany[models.Chat](ctx, s.coll, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
}

type messageStore struct {
	coll *mongo.Collection
}

// Append retries with the next counter value if the counter lags behind stored ids.
func (s *messageStore) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	var stored *models.Message
	err := db.Try(func() error {
		var err error
		stored, err = db.InsertOne(ctx, s.coll, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// List reads newest first from the (chat_id, _id) index and flips the page to ascending.
func (s *messageStore) List(ctx context.Context, chatID, beforeID int64, limit int) ([]models.Message, error) {
	filter := bson.M{"chat_id": chatID}
	if beforeID > 0 {
		filter["_id"] = bson.M{"$lt": beforeID}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	msgs, err := findMany[models.Message](ctx, s.coll, filter, opts)
	if err != nil {
		return nil, err
	}
	return lo.Reverse(msgs), nil
}
