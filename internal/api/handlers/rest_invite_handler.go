package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homelet/api/internal/services"
)

// RestInviteHandler handles REST requests for rental invites.
type RestInviteHandler struct {
	inviteService services.IInviteService
}

// NewRestInviteHandler creates a new RestInviteHandler.
func NewRestInviteHandler(inviteService services.IInviteService) *RestInviteHandler {
	return &RestInviteHandler{inviteService: inviteService}
}

// CreateInviteRequest is the body of POST /v1/rentals/:id/invites. The body may be empty.
type CreateInviteRequest struct {
	Email *string `json:"email" binding:"omitempty,email"`
}

// RedeemInviteRequest is the body of POST /v1/invites/redeem.
type RedeemInviteRequest struct {
	Code string `json:"code" binding:"required"`
}

// CreateInvite handles POST /v1/rentals/:id/invites.
func (h *RestInviteHandler) CreateInvite(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	rentalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreateInviteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, bindingError(err))
			return
		}
	}

	invite, err := h.inviteService.CreateInvite(c.Request.Context(), p, rentalID, req.Email)
	if err != nil {
		sendError(c, err)
		return
	}
	sendData(c, http.StatusCreated, invite)
}

// ListInvites handles GET /v1/rentals/:id/invites.
func (h *RestInviteHandler) ListInvites(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	rentalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	invites, err := h.inviteService.ListInvites(c.Request.Context(), p, rentalID)
	if err != nil {
		sendError(c, err)
		return
	}
	sendData(c, http.StatusOK, invites)
}

// RedeemInvite handles POST /v1/invites/redeem.
func (h *RestInviteHandler) RedeemInvite(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req RedeemInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, bindingError(err))
		return
	}

	result, err := h.inviteService.RedeemInvite(c.Request.Context(), p, req.Code)
	if err != nil {
		sendError(c, err)
		return
	}
	sendData(c, http.StatusOK, result)
}
