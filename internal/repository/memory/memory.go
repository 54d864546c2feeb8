// Package memory implements the repository contracts in process memory. It
// honours the same unique keys and conditional updates as the MongoDB stores
// and backs the service, realtime and task tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"homelet/api/internal/models"
	"homelet/api/internal/repository"
)

// DB holds every collection behind one mutex.
type DB struct {
	mu         sync.Mutex
	seq        map[string]int64
	users      map[int64]models.User
	properties map[int64]models.Property
	rentals    map[int64]models.Rental
	invites    map[int64]models.RentalInvite
	chats      map[int64]models.Chat
	messages   map[int64]models.Message
	reminders  map[string]models.ReminderLog

	// FailAppend, when set, is returned by message appends.
	FailAppend error
	// FailLink, when set, is returned by invite redemptions that would link a borrower.
	FailLink error
}

func New() *DB {
	return &DB{
		seq:        map[string]int64{},
		users:      map[int64]models.User{},
		properties: map[int64]models.Property{},
		rentals:    map[int64]models.Rental{},
		invites:    map[int64]models.RentalInvite{},
		chats:      map[int64]models.Chat{},
		messages:   map[int64]models.Message{},
		reminders:  map[string]models.ReminderLog{},
	}
}

// Stores returns the repository views over db.
func (db *DB) Stores() repository.Stores {
	return repository.Stores{
		Users:      userStore{db},
		Properties: propertyStore{db},
		Rentals:    rentalStore{db},
		Invites:    inviteStore{db},
		Chats:      chatStore{db},
		Messages:   messageStore{db},
		Reminders:  reminderStore{db},
	}
}

func (db *DB) next(name string) int64 {
	db.seq[name]++
	return db.seq[name]
}

// PutUser stores u as-is.
func (db *DB) PutUser(u models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

// PutProperty stores p as-is.
func (db *DB) PutProperty(p models.Property) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.properties[p.ID] = p
}

// PutRental stores r as-is.
func (db *DB) PutRental(r models.Rental) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rentals[r.ID] = r
}

// Rental returns a copy of the stored rental.
func (db *DB) Rental(id int64) (models.Rental, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.rentals[id]
	return r, ok
}

// MessageCount returns the number of persisted messages in a chat.
func (db *DB) MessageCount(chatID int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(lo.Filter(lo.Values(db.messages), func(m models.Message, _ int) bool { return m.ChatID == chatID }))
}

type userStore struct{ db *DB }

func (s userStore) FindByID(_ context.Context, id int64) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.Deleted {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type propertyStore struct{ db *DB }

func (s propertyStore) FindByID(_ context.Context, id int64) (*models.Property, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.properties[id]
	if !ok || p.Deleted {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type rentalStore struct{ db *DB }

func (s rentalStore) FindByID(_ context.Context, id int64) (*models.Rental, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rentals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s rentalStore) FindDue(_ context.Context, from, until time.Time) ([]models.Rental, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	due := lo.Filter(lo.Values(s.db.rentals), func(r models.Rental, _ int) bool {
		return r.IsActive && r.BorrowerID != nil && !r.NextDueDate.Before(from) && !r.NextDueDate.After(until)
	})
	sort.Slice(due, func(i, j int) bool { return due[i].NextDueDate.Before(due[j].NextDueDate) })
	return due, nil
}

type inviteStore struct{ db *DB }

func (s inviteStore) Insert(_ context.Context, invite *models.RentalInvite) (*models.RentalInvite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.invites {
		if existing.Code == invite.Code {
			return nil, fmt.Errorf("%w: code %s", repository.ErrDuplicate, invite.Code)
		}
	}
	stored := *invite
	stored.ID = s.db.next("rental_invites")
	s.db.invites[stored.ID] = stored
	return &stored, nil
}

func (s inviteStore) FindByCode(_ context.Context, code string) (*models.RentalInvite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	invite, ok := lo.Find(lo.Values(s.db.invites), func(i models.RentalInvite) bool { return i.Code == code })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &invite, nil
}

func (s inviteStore) ListByRental(_ context.Context, rentalID int64) ([]models.RentalInvite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	list := lo.Filter(lo.Values(s.db.invites), func(i models.RentalInvite, _ int) bool { return i.RentalID == rentalID })
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (s inviteStore) AcceptAndLink(_ context.Context, inviteID, acceptedBy int64, link bool, now time.Time) (*models.RentalInvite, *models.Rental, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	invite, ok := s.db.invites[inviteID]
	if !ok || invite.Status != models.InviteStatusPending {
		return nil, nil, repository.ErrPreconditionFailed
	}
	rental, ok := s.db.rentals[invite.RentalID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	if link {
		if s.db.FailLink != nil {
			return nil, nil, s.db.FailLink
		}
		rental.BorrowerID = lo.ToPtr(acceptedBy)
		rental.UpdatedAt = now
		s.db.rentals[invite.RentalID] = rental
	}
	invite.Status = models.InviteStatusAccepted
	invite.AcceptedBy = lo.ToPtr(acceptedBy)
	invite.AcceptedAt = lo.ToPtr(now)
	s.db.invites[inviteID] = invite
	return &invite, &rental, nil
}

type chatStore struct{ db *DB }

func (s chatStore) FindByID(_ context.Context, id int64) (*models.Chat, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func sameKey(c models.Chat, a, b int64, propertyID *int64) bool {
	if c.ParticipantA != a || c.ParticipantB != b {
		return false
	}
	if c.PropertyID == nil || propertyID == nil {
		return c.PropertyID == nil && propertyID == nil
	}
	return *c.PropertyID == *propertyID
}

func (s chatStore) FindByKey(_ context.Context, a, b int64, propertyID *int64) (*models.Chat, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := lo.Find(lo.Values(s.db.chats), func(c models.Chat) bool { return sameKey(c, a, b, propertyID) })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s chatStore) Insert(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, c := range s.db.chats {
		if sameKey(c, chat.ParticipantA, chat.ParticipantB, chat.PropertyID) {
			return nil, fmt.Errorf("%w: chat %d", repository.ErrDuplicate, c.ID)
		}
	}
	stored := *chat
	stored.ID = s.db.next("chats")
	s.db.chats[stored.ID] = stored
	return &stored, nil
}

func (s chatStore) ListForUser(_ context.Context, userID int64) ([]models.Chat, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	list := lo.Filter(lo.Values(s.db.chats), func(c models.Chat, _ int) bool { return c.HasParticipant(userID) })
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

type messageStore struct{ db *DB }

func (s messageStore) Append(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.FailAppend != nil {
		return nil, s.db.FailAppend
	}
	stored := *msg
	stored.ID = s.db.next("messages")
	s.db.messages[stored.ID] = stored
	return &stored, nil
}

func (s messageStore) List(_ context.Context, chatID, beforeID int64, limit int) ([]models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	list := lo.Filter(lo.Values(s.db.messages), func(m models.Message, _ int) bool {
		return m.ChatID == chatID && (beforeID <= 0 || m.ID < beforeID)
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

type reminderStore struct{ db *DB }

func (s reminderStore) Record(_ context.Context, entry models.ReminderLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := fmt.Sprintf("%d/%s", entry.RentalID, entry.DueDate.UTC().Format(time.RFC3339))
	if _, ok := s.db.reminders[key]; ok {
		return fmt.Errorf("%w: reminder %s", repository.ErrDuplicate, key)
	}
	s.db.reminders[key] = entry
	return nil
}
