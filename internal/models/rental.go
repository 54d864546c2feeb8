package models

import "time"

// Rental tracks one tenancy of a property. The owner is the property's owner;
// the borrower slot is filled by invite redemption.
type Rental struct {
	Base        `bson:",inline"`
	PropertyID  int64     `bson:"property_id" json:"property_id"`
	BorrowerID  *int64    `bson:"borrower_id" json:"borrower_id"`
	StartDate   time.Time `bson:"start_date" json:"start_date"`
	NextDueDate time.Time `bson:"next_due_date" json:"next_due_date"`
	RentAmount  float64   `bson:"rent_amount" json:"rent_amount"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// HasBorrower reports whether the borrower slot is set to userID.
func (r *Rental) HasBorrower(userID int64) bool {
	return r.BorrowerID != nil && *r.BorrowerID == userID
}

// ReminderLog records that a due-date reminder went out, keyed by rental and due date.
type ReminderLog struct {
	RentalID int64     `bson:"rental_id"`
	DueDate  time.Time `bson:"due_date"`
	SentAt   time.Time `bson:"sent_at"`
}
