// Package repository defines the persistence contracts used by the services
// and the realtime broker. Implementations live in the mongostore and memory
// subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"homelet/api/internal/models"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrPreconditionFailed is returned when a conditional update matched nothing.
	ErrPreconditionFailed = errors.New("precondition failed")
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type PropertyStore interface {
	FindByID(ctx context.Context, id int64) (*models.Property, error)
}

type RentalStore interface {
	FindByID(ctx context.Context, id int64) (*models.Rental, error)
	// FindDue returns active rentals with a borrower whose next due date falls in [from, until].
	FindDue(ctx context.Context, from, until time.Time) ([]models.Rental, error)
}

type InviteStore interface {
	// Insert assigns an id and stores the invite. A code collision yields ErrDuplicate.
	Insert(ctx context.Context, invite *models.RentalInvite) (*models.RentalInvite, error)
	FindByCode(ctx context.Context, code string) (*models.RentalInvite, error)
	// ListByRental returns the rental's invites, newest first.
	ListByRental(ctx context.Context, rentalID int64) ([]models.RentalInvite, error)
	// AcceptAndLink moves a pending invite to accepted and, when link is set,
	// makes acceptedBy the borrower of the invite's rental. Both writes commit
	// together or not at all. ErrPreconditionFailed if the invite was not pending.
	AcceptAndLink(ctx context.Context, inviteID, acceptedBy int64, link bool, now time.Time) (*models.RentalInvite, *models.Rental, error)
}

type ChatStore interface {
	FindByID(ctx context.Context, id int64) (*models.Chat, error)
	// FindByKey looks a chat up by its ordered pair and optional property.
	FindByKey(ctx context.Context, participantA, participantB int64, propertyID *int64) (*models.Chat, error)
	// Insert stores a new chat. ErrDuplicate if the key is already taken.
	Insert(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	// ListForUser returns the user's chats, newest first.
	ListForUser(ctx context.Context, userID int64) ([]models.Chat, error)
}

type MessageStore interface {
	// Append assigns an id and stores the message.
	Append(ctx context.Context, msg *models.Message) (*models.Message, error)
	// List returns up to limit messages of a chat with id below beforeID
	// (0 means no bound), in ascending id order.
	List(ctx context.Context, chatID, beforeID int64, limit int) ([]models.Message, error)
}

type ReminderLogStore interface {
	// Record stores a reminder entry. ErrDuplicate if one exists for the same rental and due date.
	Record(ctx context.Context, entry models.ReminderLog) error
}

// Stores bundles every store so wiring code can pass one value around.
type Stores struct {
	Users      UserStore
	Properties PropertyStore
	Rentals    RentalStore
	Invites    InviteStore
	Chats      ChatStore
	Messages   MessageStore
	Reminders  ReminderLogStore
}
