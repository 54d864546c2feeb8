package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the repositories.
const (
	UsersCollection          = "users"
	PropertiesCollection     = "properties"
	RentalsCollection        = "rentals"
	InvitesCollection        = "rental_invites"
	ChatsCollection          = "chats"
	MessagesCollection       = "messages"
	ReminderLogCollection    = "reminder_log"
	EmailTemplatesCollection = "email_templates"
)

// EnsureIndexes creates the unique constraints the services rely on for
// invite-code uniqueness, chat create-or-fetch and reminder de-duplication.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		InvitesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "rental_id", Value: 1}, {Key: "_id", Value: -1}}},
		},
		ChatsCollection: {
			{
				Keys: bson.D{
					{Key: "participant_a", Value: 1},
					{Key: "participant_b", Value: 1},
					{Key: "property_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "participant_b", Value: 1}}},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "_id", Value: 1}}},
		},
		RentalsCollection: {
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "next_due_date", Value: 1}}},
		},
		ReminderLogCollection: {
			{
				Keys:    bson.D{{Key: "rental_id", Value: 1}, {Key: "due_date", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		EmailTemplatesCollection: {
			{
				Keys:    bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for collection, models := range specs {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
