package tasks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"homelet/api/internal/config"
	"homelet/api/internal/models"
	"homelet/api/internal/repository"
	"homelet/api/internal/services"
)

// InviteEnqueueTimeout bounds the enqueue call so an unreachable Redis does
// not hold up invite creation.
const InviteEnqueueTimeout = 2 * time.Second

// InviteNotifier queues the rental_invite email for an invite. Delivery is
// attempted once and never retried.
type InviteNotifier struct {
	client IAsynqClient
	cfg    *config.Config
	stores repository.Stores
}

// NewInviteNotifier creates an InviteNotifier.
func NewInviteNotifier(client IAsynqClient, cfg *config.Config, stores repository.Stores) *InviteNotifier {
	return &InviteNotifier{client: client, cfg: cfg, stores: stores}
}

// InviteLink is the page an invitee opens to redeem code.
func InviteLink(baseURL, code string) string {
	return fmt.Sprintf("%s/invites/redeem?code=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(code))
}

// NotifyInvite enqueues the email. It does nothing for invites without an invitee email.
func (n *InviteNotifier) NotifyInvite(ctx context.Context, invite *models.RentalInvite, rental *models.Rental) error {
	if invite.InviteeEmail == nil {
		return nil
	}

	inviterName := "Someone"
	if inviter, err := n.stores.Users.FindByID(ctx, invite.InviterID); err == nil && inviter.Name != "" {
		inviterName = inviter.Name
	}
	propertyTitle := "a property"
	if property, err := n.stores.Properties.FindByID(ctx, rental.PropertyID); err == nil && property.Title != "" {
		propertyTitle = property.Title
	}

	task, err := NewEmailTask(EmailTaskPayload{
		To:         *invite.InviteeEmail,
		TemplateID: services.TemplateRentalInvite,
		Data: map[string]interface{}{
			"code":           invite.Code,
			"link":           InviteLink(n.cfg.AppBaseURL, invite.Code),
			"expires_at":     invite.ExpiresAt.Format(time.RFC1123),
			"inviter_name":   inviterName,
			"property_title": propertyTitle,
			"app_name":       n.cfg.AppName,
		},
	}, asynq.Queue(QueueCritical), asynq.MaxRetry(0))
	if err != nil {
		return err
	}
	enqueueCtx, cancel := context.WithTimeout(ctx, InviteEnqueueTimeout)
	defer cancel()
	if _, err := n.client.EnqueueContext(enqueueCtx, task); err != nil {
		return fmt.Errorf("failed to enqueue invite email: %w", err)
	}
	return nil
}

var _ services.InviteNotifier = (*InviteNotifier)(nil)
