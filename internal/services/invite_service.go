package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"homelet/api/internal/auth"
	"homelet/api/internal/config"
	"homelet/api/internal/db"
	"homelet/api/internal/models"
	"homelet/api/internal/repository"
	"homelet/api/internal/utils"
)

// IInviteService creates, lists and redeems rental invites.
type IInviteService interface {
	CreateInvite(ctx context.Context, principal auth.Principal, rentalID int64, inviteeEmail *string) (*models.RentalInvite, error)
	ListInvites(ctx context.Context, principal auth.Principal, rentalID int64) ([]models.RentalInvite, error)
	RedeemInvite(ctx context.Context, principal auth.Principal, code string) (*RedeemResult, error)
}

// InviteNotifier tells the invitee about a new invite. Implementations must not block on delivery.
type InviteNotifier interface {
	NotifyInvite(ctx context.Context, invite *models.RentalInvite, rental *models.Rental) error
}

// RedeemResult is returned by a successful redemption.
type RedeemResult struct {
	Rental   *models.Rental       `json:"rental"`
	Invite   *models.RentalInvite `json:"invite"`
	Decision LinkDecision         `json:"-"`
}

type inviteService struct {
	stores   repository.Stores
	cfg      *config.Config
	notifier InviteNotifier
	now      func() time.Time
}

// NewInviteService creates a new InviteService. notifier may be nil.
func NewInviteService(stores repository.Stores, cfg *config.Config, notifier InviteNotifier) IInviteService {
	return &inviteService{
		stores:   stores,
		cfg:      cfg,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// rentalWithOwner loads a rental and the owner of its property.
func (s *inviteService) rentalWithOwner(ctx context.Context, rentalID int64) (*models.Rental, int64, error) {
	rental, err := s.stores.Rentals.FindByID(ctx, rentalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, fmt.Errorf("rental %d: %w", rentalID, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to load rental %d: %w", rentalID, err)
	}
	property, err := s.stores.Properties.FindByID(ctx, rental.PropertyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, fmt.Errorf("property %d of rental %d: %w", rental.PropertyID, rentalID, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to load property %d: %w", rental.PropertyID, err)
	}
	return rental, property.OwnerID, nil
}

// authorize loads the rental and checks the principal is its borrower, the property owner or an admin.
func (s *inviteService) authorize(ctx context.Context, principal auth.Principal, rentalID int64) (*models.Rental, error) {
	rental, ownerID, err := s.rentalWithOwner(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if principal.ID != ownerID && !rental.HasBorrower(principal.ID) && !principal.IsElevated() {
		return nil, fmt.Errorf("user %d may not manage invites of rental %d: %w", principal.ID, rentalID, ErrForbidden)
	}
	return rental, nil
}

// CreateInvite stores a pending invite with a fresh code, retrying on code collision.
func (s *inviteService) CreateInvite(ctx context.Context, principal auth.Principal, rentalID int64, inviteeEmail *string) (*models.RentalInvite, error) {
	rental, err := s.authorize(ctx, principal, rentalID)
	if err != nil {
		return nil, err
	}

	if inviteeEmail != nil {
		trimmed := strings.TrimSpace(*inviteeEmail)
		if trimmed == "" {
			inviteeEmail = nil
		} else {
			inviteeEmail = &trimmed
		}
	}

	now := s.now()
	var created *models.RentalInvite
	op := func() error {
		code, err := utils.NewInviteCode()
		if err != nil {
			return fmt.Errorf("failed to generate invite code: %w", err)
		}
		created, err = s.stores.Invites.Insert(ctx, &models.RentalInvite{
			RentalID:     rentalID,
			Code:         code,
			InviterID:    principal.ID,
			InviteeEmail: inviteeEmail,
			Status:       models.InviteStatusPending,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.cfg.InviteTTL),
		})
		return err
	}
	isCollision := func(err error) bool { return errors.Is(err, repository.ErrDuplicate) }
	if err := db.WithRetries(op, s.cfg.InviteCodeMaxRetries, isCollision); err != nil {
		return nil, fmt.Errorf("failed to create invite for rental %d: %w", rentalID, err)
	}

	log.Printf("Invite %d created for rental %d by user %d", created.ID, rentalID, principal.ID)

	if created.InviteeEmail != nil && s.notifier != nil {
		if err := s.notifier.NotifyInvite(ctx, created, rental); err != nil {
			log.Printf("Warning: failed to queue invite email for invite %d: %v", created.ID, err)
		}
	}
	return created, nil
}

// ListInvites returns the rental's invites, newest first.
func (s *inviteService) ListInvites(ctx context.Context, principal auth.Principal, rentalID int64) ([]models.RentalInvite, error) {
	if _, err := s.authorize(ctx, principal, rentalID); err != nil {
		return nil, err
	}
	invites, err := s.stores.Invites.ListByRental(ctx, rentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites of rental %d: %w", rentalID, err)
	}
	return invites, nil
}

// RedeemInvite claims a pending invite for the principal and applies the
// linking decision to the rental in the same store write. The claim is
// conditional on the invite still being pending, so of several concurrent
// redemptions exactly one reaches the rental.
func (s *inviteService) RedeemInvite(ctx context.Context, principal auth.Principal, rawCode string) (*RedeemResult, error) {
	code := utils.NormalizeInviteCode(rawCode)
	if code == "" {
		return nil, NewValidationError("code", "is required")
	}
	if err := utils.ValidateInviteCode(code); err != nil {
		return nil, fmt.Errorf("invite %q: %w", code, ErrNotFound)
	}

	invite, err := s.stores.Invites.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("invite %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up invite: %w", err)
	}

	now := s.now()
	if invite.Expired(now) {
		return nil, fmt.Errorf("invite %d expired at %s: %w", invite.ID, invite.ExpiresAt.Format(time.RFC3339), ErrGone)
	}
	if invite.Status != models.InviteStatusPending {
		return nil, fmt.Errorf("invite %d is %s: %w", invite.ID, invite.Status, ErrConflict)
	}

	rental, ownerID, err := s.rentalWithOwner(ctx, invite.RentalID)
	if err != nil {
		return nil, err
	}

	decision := DecideLink(rental, ownerID, principal.ID)
	if decision == LinkReplaceBorrower {
		log.Printf("Warning: invite %d replaces borrower %d of rental %d with user %d", invite.ID, *rental.BorrowerID, rental.ID, principal.ID)
	}

	accepted, linked, err := s.stores.Invites.AcceptAndLink(ctx, invite.ID, principal.ID, decision.Mutates(), now)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, fmt.Errorf("invite %d already redeemed: %w", invite.ID, ErrConflict)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("rental %d: %w", invite.RentalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to redeem invite %d on rental %d: %w", invite.ID, invite.RentalID, err)
	}

	log.Printf("Invite %d redeemed by user %d (%s)", invite.ID, principal.ID, decision)
	return &RedeemResult{Rental: linked, Invite: accepted, Decision: decision}, nil
}
