package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/service"
)

// MembershipHandler handles channel membership.
//
// Join and leave are actions on yourself; adding and removing members are
// actions on someone else and need the channel creator or an admin.
type MembershipHandler struct {
	svc *service.Service
}

func NewMembershipHandler(svc *service.Service) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

// Join handles POST /v1/channels/:id/join
func (h *MembershipHandler) Join(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.JoinChannel(c.Request.Context(), principal(c), channelID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave handles POST /v1/channels/:id/leave
func (h *MembershipHandler) Leave(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.LeaveChannel(c.Request.Context(), principal(c), channelID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /v1/channels/:id/members
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.ListChannelMembers(c.Request.Context(), principal(c), channelID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// AddMember handles POST /v1/channels/:id/members
func (h *MembershipHandler) AddMember(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.AddChannelMember(c.Request.Context(), principal(c), channelID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMember handles DELETE /v1/channels/:id/members/:userId
func (h *MembershipHandler) RemoveMember(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveChannelMember(c.Request.Context(), principal(c), channelID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
