package models

import "time"

// Chat is a conversation between exactly two users, optionally scoped to a property.
// ParticipantA is always the smaller id.
type Chat struct {
	Base         `bson:",inline"`
	ParticipantA int64     `bson:"participant_a" json:"participant_a"`
	ParticipantB int64     `bson:"participant_b" json:"participant_b"`
	PropertyID   *int64    `bson:"property_id" json:"property_id"` // null for legacy chats, kept explicit for the unique index
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Chat) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OrderedPair returns the two ids smallest first.
func OrderedPair(x, y int64) (int64, int64) {
	if x < y {
		return x, y
	}
	return y, x
}

// Message is one chat message. SentAt is the persistence timestamp; ID breaks ties.
type Message struct {
	Base     `bson:",inline"`
	ChatID   int64     `bson:"chat_id" json:"chat_id"`
	SenderID int64     `bson:"sender_id" json:"sender_id"`
	Content  string    `bson:"content" json:"content"`
	SentAt   time.Time `bson:"sent_at" json:"sent_at"`
}
