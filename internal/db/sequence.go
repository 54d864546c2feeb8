package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homelet/api/internal/models"
)

const countersCollection = "counters"

type counter struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"seq"`
}

// NextSequence atomically increments and returns the named counter.
func NextSequence(ctx context.Context, database *mongo.Database, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var c counter
	err := database.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return c.Value, nil
}

// InsertOne assigns the next id from the collection's counter and inserts doc.
// Duplicate key violations are returned wrapped in ErrDuplicateKey.
func InsertOne[T models.IBase](ctx context.Context, collection *mongo.Collection, doc T) (T, error) {
	id, err := NextSequence(ctx, collection.Database(), collection.Name())
	if err != nil {
		return doc, err
	}
	doc.SetID(id)
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		if IsMongoDuplicateKeyError(err) {
			return doc, fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return doc, fmt.Errorf("failed to insert into %s: %w", collection.Name(), err)
	}
	return doc, nil
}
