package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"homelet/api/internal/auth"
	"homelet/api/internal/models"
	"homelet/api/internal/services"
)

// --- Mocks ---

// MockChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) StartChat(ctx context.Context, principal auth.Principal, otherUserID int64, propertyID *int64) (*models.Chat, bool, error) {
	args := m.Called(ctx, principal, otherUserID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Chat), args.Bool(1), args.Error(2)
}

func (m *MockChatService) ListChats(ctx context.Context, principal auth.Principal) ([]models.Chat, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Chat), args.Error(1)
}

func (m *MockChatService) ListMessages(ctx context.Context, principal auth.Principal, chatID, beforeID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, principal, chatID, beforeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, principal auth.Principal, chatID int64, content string) (*models.Message, error) {
	args := m.Called(ctx, principal, chatID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockInviteService
type MockInviteService struct {
	mock.Mock
}

func (m *MockInviteService) CreateInvite(ctx context.Context, principal auth.Principal, rentalID int64, inviteeEmail *string) (*models.RentalInvite, error) {
	args := m.Called(ctx, principal, rentalID, inviteeEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RentalInvite), args.Error(1)
}

func (m *MockInviteService) ListInvites(ctx context.Context, principal auth.Principal, rentalID int64) ([]models.RentalInvite, error) {
	args := m.Called(ctx, principal, rentalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RentalInvite), args.Error(1)
}

func (m *MockInviteService) RedeemInvite(ctx context.Context, principal auth.Principal, code string) (*services.RedeemResult, error) {
	args := m.Called(ctx, principal, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RedeemResult), args.Error(1)
}

var (
	_ services.IChatService   = (*MockChatService)(nil)
	_ services.IInviteService = (*MockInviteService)(nil)
)
