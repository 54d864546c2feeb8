package models

import "time"

// Property is a listed home. Listing CRUD is handled elsewhere; the chat and
// invite flows only need the owner.
type Property struct {
	Base      `bson:",inline"`
	OwnerID   int64     `bson:"owner_id" json:"owner_id"`
	Title     string    `bson:"title" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	Deleted   bool      `bson:"deleted" json:"-"`
}
