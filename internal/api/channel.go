package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/service"
)

// ChannelHandler serves channel CRUD. Membership lives in MembershipHandler.
type ChannelHandler struct {
	svc *service.Service
}

func NewChannelHandler(svc *service.Service) *ChannelHandler {
	return &ChannelHandler{svc: svc}
}

// createChannelRequest is deliberately not models.Channel: clients must not
// choose ids, creators or timestamps.
type createChannelRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// Create handles POST /v1/workspaces/:id/channels
func (h *ChannelHandler) Create(c *gin.Context) {
	workspaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req createChannelRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.svc.CreateChannel(c.Request.Context(), principal(c), workspaceID, req.Name, req.Description, req.IsPrivate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// List handles GET /v1/workspaces/:id/channels: every public channel plus
// the private ones the caller belongs to. Always an array, never null.
func (h *ChannelHandler) List(c *gin.Context) {
	workspaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	channels, err := h.svc.ListChannels(c.Request.Context(), principal(c), workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetByID handles GET /v1/channels/:id. A channel the caller cannot see
// answers null, the same as one that does not exist.
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ch, err := h.svc.GetChannel(c.Request.Context(), principal(c), channelID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

type updateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update handles PATCH /v1/channels/:id
func (h *ChannelHandler) Update(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateChannelRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.svc.UpdateChannel(c.Request.Context(), principal(c), channelID, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Delete handles DELETE /v1/channels/:id
func (h *ChannelHandler) Delete(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteChannel(c.Request.Context(), principal(c), channelID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
