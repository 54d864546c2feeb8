package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"homelet/api/internal/auth"
	"homelet/api/internal/models"
	"homelet/api/internal/realtime"
	"homelet/api/internal/repository"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 200
)

// IChatService manages two-party chats and their message history.
type IChatService interface {
	// StartChat returns the chat between the principal and otherUserID, creating
	// it if needed. created is false when an existing chat was returned.
	StartChat(ctx context.Context, principal auth.Principal, otherUserID int64, propertyID *int64) (chat *models.Chat, created bool, err error)
	ListChats(ctx context.Context, principal auth.Principal) ([]models.Chat, error)
	ListMessages(ctx context.Context, principal auth.Principal, chatID, beforeID int64, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, principal auth.Principal, chatID int64, content string) (*models.Message, error)
}

// MessagePublisher persists a message and fans it out to the chat's room.
type MessagePublisher interface {
	Publish(ctx context.Context, principal auth.Principal, chatID int64, content string) realtime.Outcome
}

type chatService struct {
	stores    repository.Stores
	publisher MessagePublisher
	now       func() time.Time
}

// NewChatService creates a new ChatService.
func NewChatService(stores repository.Stores, publisher MessagePublisher) IChatService {
	return &chatService{
		stores:    stores,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *chatService) StartChat(ctx context.Context, principal auth.Principal, otherUserID int64, propertyID *int64) (*models.Chat, bool, error) {
	if otherUserID <= 0 {
		return nil, false, NewValidationError("user_id", "is required")
	}
	if otherUserID == principal.ID {
		return nil, false, NewValidationError("user_id", "cannot start a chat with yourself")
	}

	if _, err := s.stores.Users.FindByID(ctx, otherUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("user %d: %w", otherUserID, ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to load user %d: %w", otherUserID, err)
	}
	if propertyID != nil {
		if _, err := s.stores.Properties.FindByID(ctx, *propertyID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, false, fmt.Errorf("property %d: %w", *propertyID, ErrNotFound)
			}
			return nil, false, fmt.Errorf("failed to load property %d: %w", *propertyID, err)
		}
	}

	a, b := models.OrderedPair(principal.ID, otherUserID)
	chat, err := s.stores.Chats.FindByKey(ctx, a, b, propertyID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up chat: %w", err)
	}

	chat, err = s.stores.Chats.Insert(ctx, &models.Chat{
		ParticipantA: a,
		ParticipantB: b,
		PropertyID:   propertyID,
		CreatedAt:    s.now(),
	})
	if err == nil {
		log.Printf("Chat %d created between users %d and %d", chat.ID, a, b)
		return chat, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, false, fmt.Errorf("failed to create chat: %w", err)
	}

	// A concurrent request created it first.
	chat, err = s.stores.Chats.FindByKey(ctx, a, b, propertyID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-fetch chat after duplicate: %w", err)
	}
	return chat, false, nil
}

func (s *chatService) ListChats(ctx context.Context, principal auth.Principal) ([]models.Chat, error) {
	chats, err := s.stores.Chats.ListForUser(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats for user %d: %w", principal.ID, err)
	}
	return chats, nil
}

// participantChat loads a chat the principal takes part in.
func (s *chatService) participantChat(ctx context.Context, principal auth.Principal, chatID int64) (*models.Chat, error) {
	chat, err := s.stores.Chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("chat %d: %w", chatID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load chat %d: %w", chatID, err)
	}
	if !chat.HasParticipant(principal.ID) {
		return nil, fmt.Errorf("user %d is not in chat %d: %w", principal.ID, chatID, ErrForbidden)
	}
	return chat, nil
}

// ListMessages returns a page of messages in ascending order. beforeID pages backwards.
func (s *chatService) ListMessages(ctx context.Context, principal auth.Principal, chatID, beforeID int64, limit int) ([]models.Message, error) {
	if _, err := s.participantChat(ctx, principal, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessagePageSize
	}
	if limit > MaxMessagePageSize {
		limit = MaxMessagePageSize
	}
	msgs, err := s.stores.Messages.List(ctx, chatID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of chat %d: %w", chatID, err)
	}
	return msgs, nil
}

// SendMessage publishes through the broker so REST and realtime senders share
// one ordering, and turns drop reasons into errors.
func (s *chatService) SendMessage(ctx context.Context, principal auth.Principal, chatID int64, content string) (*models.Message, error) {
	out := s.publisher.Publish(ctx, principal, chatID, content)
	switch out.Reason {
	case "":
		return out.Message, nil
	case realtime.ReasonUnknownChat:
		return nil, fmt.Errorf("chat %d: %w", chatID, ErrNotFound)
	case realtime.ReasonNotParticipant:
		return nil, fmt.Errorf("user %d is not in chat %d: %w", principal.ID, chatID, ErrForbidden)
	case realtime.ReasonEmptyContent:
		return nil, NewValidationError("content", "must not be empty")
	default:
		if out.Err != nil {
			return nil, fmt.Errorf("failed to send message to chat %d: %w", chatID, out.Err)
		}
		return nil, fmt.Errorf("message to chat %d dropped: %s", chatID, out.Reason)
	}
}
