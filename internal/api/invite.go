package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/service"
)

type InviteHandler struct {
	svc *service.Service
}

func NewInviteHandler(svc *service.Service) *InviteHandler {
	return &InviteHandler{svc: svc}
}

type createInviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Create handles POST /v1/workspaces/:id/invites
func (h *InviteHandler) Create(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req createInviteRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.svc.CreateInvite(c.Request.Context(), principal(c), id, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// List handles GET /v1/workspaces/:id/invites
func (h *InviteHandler) List(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	invites, err := h.svc.ListInvites(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invites)
}

// Preview handles GET /v1/invites/:token. It needs no account so the
// landing page can show what the invite is for before signup.
func (h *InviteHandler) Preview(c *gin.Context) {
	preview, err := h.svc.GetInvitePreview(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	if preview == nil {
		respondError(c, apperr.NotFound("invite not found"))
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Join handles POST /v1/invites/:token/join
//
// Flow, all in one transaction:
//  1. Look up the token; unknown, used or expired answers 410
//  2. Reject callers who already belong to the workspace (409), leaving
//     the invite unused
//  3. Mark the invite used with a conditional update, so of two
//     concurrent joins exactly one wins
//  4. Add the membership and join #general
func (h *InviteHandler) Join(c *gin.Context) {
	ws, err := h.svc.JoinByInvite(c.Request.Context(), principal(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}
