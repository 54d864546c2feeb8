package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"homelet/api/internal/auth"
	"homelet/api/internal/models"
	"homelet/api/internal/repository"
	"homelet/api/internal/repository/memory"
	"homelet/api/internal/utils"
)

func newTestInviteService(mem *memory.DB, notifier InviteNotifier) *inviteService {
	svc := NewInviteService(mem.Stores(), testConfig(), notifier).(*inviteService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestInviteLifecycle_BorrowerInvitesThenRedeemed(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	assert.Len(t, invite.Code, utils.InviteCodeLength)
	assert.NoError(t, utils.ValidateInviteCode(invite.Code))
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), invite.ExpiresAt)
	assert.Equal(t, borrowerID, invite.InviterID)

	result, err := svc.RedeemInvite(ctx, user(9), invite.Code)
	require.NoError(t, err)
	require.NotNil(t, result.Rental.BorrowerID)
	assert.Equal(t, int64(9), *result.Rental.BorrowerID)
	assert.Equal(t, models.InviteStatusAccepted, result.Invite.Status)
	require.NotNil(t, result.Invite.AcceptedBy)
	assert.Equal(t, int64(9), *result.Invite.AcceptedBy)
	assert.Equal(t, LinkReplaceBorrower, result.Decision)

	stored, _ := mem.Rental(rentalID)
	assert.Equal(t, int64(9), *stored.BorrowerID)

	_, err = svc.RedeemInvite(ctx, user(11), invite.Code)
	assert.ErrorIs(t, err, ErrConflict)
	stored, _ = mem.Rental(rentalID)
	assert.Equal(t, int64(9), *stored.BorrowerID)
}

func TestCreateInvite_Authorization(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	_, err := svc.CreateInvite(ctx, user(ownerID), rentalID, nil)
	assert.NoError(t, err)

	_, err = svc.CreateInvite(ctx, auth.Principal{ID: 77, Role: models.RoleAdmin}, rentalID, nil)
	assert.NoError(t, err)

	_, err = svc.CreateInvite(ctx, user(9), rentalID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateInvite(ctx, user(borrowerID), 999, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateInvite_NotifiesInvitee(t *testing.T) {
	mem := seedRental(t)
	notifier := new(MockInviteNotifier)
	svc := newTestInviteService(mem, notifier)
	ctx := context.Background()

	notifier.On("NotifyInvite", mock.Anything, mock.MatchedBy(func(i *models.RentalInvite) bool {
		return i.InviteeEmail != nil && *i.InviteeEmail == "friend@example.com"
	}), mock.AnythingOfType("*models.Rental")).Return(nil).Once()

	invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, lo.ToPtr("  friend@example.com "))
	require.NoError(t, err)
	assert.Equal(t, "friend@example.com", *invite.InviteeEmail)
	notifier.AssertExpectations(t)
}

func TestCreateInvite_NotifierFailureIsSwallowed(t *testing.T) {
	mem := seedRental(t)
	notifier := new(MockInviteNotifier)
	svc := newTestInviteService(mem, notifier)

	notifier.On("NotifyInvite", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	invite, err := svc.CreateInvite(context.Background(), user(borrowerID), rentalID, lo.ToPtr("friend@example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	notifier.AssertNumberOfCalls(t, "NotifyInvite", 1)
}

func TestCreateInvite_NoEmailNoNotification(t *testing.T) {
	mem := seedRental(t)
	notifier := new(MockInviteNotifier)
	svc := newTestInviteService(mem, notifier)

	_, err := svc.CreateInvite(context.Background(), user(borrowerID), rentalID, lo.ToPtr("   "))
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "NotifyInvite", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateInvite_CodeCollisionRetried(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	original := utils.NewInviteCodeHook
	defer func() { utils.NewInviteCodeHook = original }()

	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	calls := 0
	utils.NewInviteCodeHook = func() (string, bool) {
		code := codes[lo.Min([]int{calls, len(codes) - 1})]
		calls++
		return code, true
	}

	first, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", first.Code)

	second, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBB", second.Code)
	assert.Equal(t, 3, calls)
}

func TestCreateInvite_CollisionRetriesExhausted(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	svc.cfg.InviteCodeMaxRetries = 1
	ctx := context.Background()

	original := utils.NewInviteCodeHook
	defer func() { utils.NewInviteCodeHook = original }()
	utils.NewInviteCodeHook = func() (string, bool) { return "CCCCCCCC", true }

	_, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)

	_, err = svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestListInvites_NewestFirst(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
		require.NoError(t, err)
		ids = append(ids, invite.ID)
	}

	list, err := svc.ListInvites(ctx, user(ownerID), rentalID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, lo.Map(list, func(i models.RentalInvite, _ int) int64 { return i.ID }))

	_, err = svc.ListInvites(ctx, user(11), rentalID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRedeemInvite_CaseInsensitive(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)

	presented := " " + invite.Code[:4] + "-" + invite.Code[4:] + " "
	result, err := svc.RedeemInvite(ctx, user(9), lowerASCII(presented))
	require.NoError(t, err)
	assert.Equal(t, invite.ID, result.Invite.ID)
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestRedeemInvite_Errors(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	_, err := svc.RedeemInvite(ctx, user(9), "   ")
	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "code")

	_, err = svc.RedeemInvite(ctx, user(9), "ZZZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.RedeemInvite(ctx, user(9), "short")
	assert.ErrorIs(t, err, ErrNotFound)

	invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)
	expired, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return invite.ExpiresAt }
	_, err = svc.RedeemInvite(ctx, user(9), invite.Code)
	assert.NoError(t, err, "an invite is still valid at exactly its expiry instant")

	svc.now = func() time.Time { return expired.ExpiresAt.Add(time.Second) }
	_, err = svc.RedeemInvite(ctx, user(11), expired.Code)
	assert.ErrorIs(t, err, ErrGone)

	stored, err := mem.Stores().Invites.FindByCode(ctx, expired.Code)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, stored.Status)
	rental, _ := mem.Rental(rentalID)
	assert.Equal(t, int64(9), *rental.BorrowerID)
}

func TestRedeemInvite_FailedLinkKeepsInvitePending(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(ownerID), rentalID, nil)
	require.NoError(t, err)

	mem.FailLink = errors.New("write timeout")
	_, err = svc.RedeemInvite(ctx, user(9), invite.Code)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)

	stored, err := mem.Stores().Invites.FindByCode(ctx, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, stored.Status)
	assert.Nil(t, stored.AcceptedBy)
	rental, _ := mem.Rental(rentalID)
	assert.Equal(t, borrowerID, *rental.BorrowerID)

	mem.FailLink = nil
	result, err := svc.RedeemInvite(ctx, user(9), invite.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(9), *result.Rental.BorrowerID)
	assert.Equal(t, models.InviteStatusAccepted, result.Invite.Status)
}

func TestRedeemInvite_OwnerLeavesBorrowerUnchanged(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)

	result, err := svc.RedeemInvite(ctx, user(ownerID), invite.Code)
	require.NoError(t, err)
	assert.Equal(t, LinkNoChangeOwner, result.Decision)
	assert.Equal(t, models.InviteStatusAccepted, result.Invite.Status)
	stored, _ := mem.Rental(rentalID)
	assert.Equal(t, borrowerID, *stored.BorrowerID)
}

func TestRedeemInvite_CurrentBorrowerIsNoOp(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(ownerID), rentalID, nil)
	require.NoError(t, err)

	result, err := svc.RedeemInvite(ctx, user(borrowerID), invite.Code)
	require.NoError(t, err)
	assert.Equal(t, LinkNoChangeBorrower, result.Decision)
	assert.Equal(t, borrowerID, *result.Rental.BorrowerID)
}

func TestRedeemInvite_FillsEmptySlot(t *testing.T) {
	mem := seedRental(t)
	rental, _ := mem.Rental(rentalID)
	rental.BorrowerID = nil
	mem.PutRental(rental)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(ownerID), rentalID, nil)
	require.NoError(t, err)

	result, err := svc.RedeemInvite(ctx, user(11), invite.Code)
	require.NoError(t, err)
	assert.Equal(t, LinkSetBorrower, result.Decision)
	assert.Equal(t, int64(11), *result.Rental.BorrowerID)
}

func TestRedeemInvite_ConcurrentExactlyOneWins(t *testing.T) {
	mem := seedRental(t)
	svc := newTestInviteService(mem, nil)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, user(borrowerID), rentalID, nil)
	require.NoError(t, err)

	const redeemers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners []int64
	conflicts := 0
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.RedeemInvite(ctx, user(id), invite.Code)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
			} else if errors.Is(err, ErrConflict) {
				conflicts++
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, redeemers-1, conflicts)
	stored, _ := mem.Rental(rentalID)
	assert.Equal(t, winners[0], *stored.BorrowerID)
}
