package models

import "time"

// Roles carried in bearer credentials.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account. Profile editing lives outside this service;
// only the fields the chat and invite flows read are mapped here.
type User struct {
	Base      `bson:",inline"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Role      string    `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	Deleted   bool      `bson:"deleted" json:"-"`
}
