package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/service"
	"go.uber.org/zap"
)

type RealtimeHandler struct {
	svc    *service.Service
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewRealtimeHandler(svc *service.Service, hub *realtime.Hub, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{svc: svc, hub: hub, logger: logger}
}

// Subscribe handles GET /v1/ws?channel_id= or ?dm_id=.
//
// Flow:
//  1. Resolve the conversation and require a signed-in caller.
//  2. Check read access the same way GET .../messages does.
//  3. Upgrade and join the room, then check access once more. A removal
//     that landed between 2 and the join would otherwise go unnoticed.
//
// Later revocations reach the socket through the service, which evicts the
// user from the room. The socket is receive-only apart from typing
// indicators; sending goes through POST /v1/messages.
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	p := principal(c)
	if !p.Authenticated() {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}
	ctx := c.Request.Context()
	allowed, err := h.svc.CanSubscribe(ctx, p, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	if !allowed {
		respondError(c, apperr.Forbidden("you cannot read this conversation"))
		return
	}
	recheck := func() bool {
		ok, err := h.svc.CanSubscribe(ctx, p, scope)
		return err == nil && ok
	}
	if err := h.hub.Serve(c.Writer, c.Request, scope.ID(), p.UserID, recheck); err != nil {
		// A failed upgrade has already written its own response; a closed
		// hub sent a close frame.
		h.logger.Debug("websocket subscribe failed", zap.Error(err))
	}
}

func scopeFromQuery(c *gin.Context) (models.Scope, bool) {
	ch, dm := c.Query("channel_id"), c.Query("dm_id")
	if (ch == "") == (dm == "") {
		badRequest(c, "exactly one of channel_id or dm_id must be set")
		return models.Scope{}, false
	}
	raw, build := ch, models.ChannelScope
	if dm != "" {
		raw, build = dm, models.DMScope
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid conversation id")
		return models.Scope{}, false
	}
	return build(id), true
}
