package services

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/mock"

	"homelet/api/internal/auth"
	"homelet/api/internal/config"
	"homelet/api/internal/models"
	"homelet/api/internal/repository/memory"
)

const (
	ownerID    = int64(1)
	borrowerID = int64(5)
	propertyID = int64(100)
	rentalID   = int64(42)
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		InviteTTL:            7 * 24 * time.Hour,
		InviteCodeMaxRetries: 3,
		AppBaseURL:           "http://localhost:3000",
	}
}

func user(id int64) auth.Principal {
	return auth.Principal{ID: id, Role: models.RoleUser}
}

// seedRental stores owner 1, property 100 and rental 42 with borrower 5, plus users 5, 9 and 11.
func seedRental(t *testing.T) *memory.DB {
	t.Helper()
	mem := memory.New()
	for _, id := range []int64{ownerID, borrowerID, 9, 11} {
		mem.PutUser(models.User{Base: models.Base{ID: id}, Name: "user", Role: models.RoleUser})
	}
	mem.PutProperty(models.Property{Base: models.Base{ID: propertyID}, OwnerID: ownerID, Title: "Flat"})
	mem.PutRental(models.Rental{
		Base:        models.Base{ID: rentalID},
		PropertyID:  propertyID,
		BorrowerID:  lo.ToPtr(borrowerID),
		StartDate:   fixedNow.AddDate(0, -1, 0),
		NextDueDate: fixedNow.AddDate(0, 0, 10),
		RentAmount:  1200,
		IsActive:    true,
	})
	return mem
}

// MockInviteNotifier is a mock implementation of InviteNotifier.
type MockInviteNotifier struct {
	mock.Mock
}

func (m *MockInviteNotifier) NotifyInvite(ctx context.Context, invite *models.RentalInvite, rental *models.Rental) error {
	args := m.Called(ctx, invite, rental)
	return args.Error(0)
}
