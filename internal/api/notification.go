package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/service"
)

type NotificationHandler struct {
	svc *service.Service
}

func NewNotificationHandler(svc *service.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type notificationRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Set handles PUT /v1/channels/:id/notifications
func (h *NotificationHandler) Set(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req notificationRequest
	if !bindJSON(c, &req) {
		return
	}
	setting, err := h.svc.SetChannelNotifications(c.Request.Context(), principal(c), channelID, *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// Get handles GET /v1/channels/:id/notifications
func (h *NotificationHandler) Get(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	setting, err := h.svc.GetChannelNotifications(c.Request.Context(), principal(c), channelID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// Unnotified handles GET /v1/notifications/unnotified. Each call advances
// the caller's watermarks, so a message is returned at most once.
func (h *NotificationHandler) Unnotified(c *gin.Context) {
	msgs, err := h.svc.GetUnnotifiedMessages(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
