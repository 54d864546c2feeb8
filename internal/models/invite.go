package models

import "time"

// InviteStatus is the lifecycle state of a RentalInvite.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
)

// RentalInvite is a short-lived, single-use code that links a second user to a rental.
// The code is stored upper-cased; lookups normalize the presented code first.
type RentalInvite struct {
	Base         `bson:",inline"`
	RentalID     int64        `bson:"rental_id" json:"rental_id"`
	Code         string       `bson:"code" json:"code"`
	InviterID    int64        `bson:"inviter_id" json:"inviter_id"`
	InviteeEmail *string      `bson:"invitee_email,omitempty" json:"invitee_email,omitempty"`
	Status       InviteStatus `bson:"status" json:"status"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	ExpiresAt    time.Time    `bson:"expires_at" json:"expires_at"`
	AcceptedBy   *int64       `bson:"accepted_by,omitempty" json:"accepted_by,omitempty"`
	AcceptedAt   *time.Time   `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
}

// Expired reports whether the invite can no longer be redeemed at now.
func (i *RentalInvite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
