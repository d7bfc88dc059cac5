package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/service"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service   *service.Service
	Hub       *realtime.Hub
	JWTSecret string
	Logger    *zap.Logger
	// HealthCheck backs /v1/health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// Register mounts the /v1 API on r. Every route resolves the caller with
// middleware.Identity, but none demands a token up front: the service
// decides what an anonymous caller may do.
//
// Request bodies are closed records. Gin's JSON decoder is switched to
// reject unknown fields; the switch is process-wide, which is fine since
// this is the only API the binary serves.
func Register(r gin.IRouter, cfg RouterConfig) {
	gin.EnableJsonDecoderDisallowUnknownFields()

	r.GET("/v1/health", health(cfg.HealthCheck))

	v1 := r.Group("/v1")
	v1.Use(middleware.Identity(cfg.JWTSecret))

	authH := NewAuthHandler(cfg.Service)
	v1.POST("/auth/signup", authH.Signup)
	v1.POST("/auth/login", authH.Login)

	users := NewUserHandler(cfg.Service)
	v1.GET("/users/me", users.GetMe)
	v1.PUT("/users/me/avatar", users.SetAvatar)
	v1.POST("/uploads", users.CreateUpload)

	workspaces := NewWorkspaceHandler(cfg.Service)
	v1.POST("/workspaces", workspaces.Create)
	v1.GET("/workspaces", workspaces.List)
	v1.GET("/workspaces/:id", workspaces.Get)
	v1.PATCH("/workspaces/:id", workspaces.Update)
	v1.DELETE("/workspaces/:id", workspaces.Delete)
	v1.GET("/workspaces/:id/members", workspaces.ListMembers)
	v1.DELETE("/workspaces/:id/members/:userId", workspaces.RemoveMember)
	v1.PATCH("/workspaces/:id/members/:userId/role", workspaces.UpdateRole)

	invites := NewInviteHandler(cfg.Service)
	v1.POST("/workspaces/:id/invites", invites.Create)
	v1.GET("/workspaces/:id/invites", invites.List)
	v1.GET("/invites/:token", invites.Preview)
	v1.POST("/invites/:token/join", invites.Join)

	channels := NewChannelHandler(cfg.Service)
	v1.POST("/workspaces/:id/channels", channels.Create)
	v1.GET("/workspaces/:id/channels", channels.List)
	v1.GET("/channels/:id", channels.GetByID)
	v1.PATCH("/channels/:id", channels.Update)
	v1.DELETE("/channels/:id", channels.Delete)

	members := NewMembershipHandler(cfg.Service)
	v1.POST("/channels/:id/join", members.Join)
	v1.POST("/channels/:id/leave", members.Leave)
	v1.GET("/channels/:id/members", members.ListMembers)
	v1.POST("/channels/:id/members", members.AddMember)
	v1.DELETE("/channels/:id/members/:userId", members.RemoveMember)

	notifications := NewNotificationHandler(cfg.Service)
	v1.PUT("/channels/:id/notifications", notifications.Set)
	v1.GET("/channels/:id/notifications", notifications.Get)
	v1.GET("/notifications/unnotified", notifications.Unnotified)

	dms := NewDMHandler(cfg.Service)
	v1.POST("/workspaces/:id/dms", dms.Create)
	v1.GET("/workspaces/:id/dms", dms.List)
	v1.GET("/dms/:id", dms.Get)
	v1.POST("/dms/:id/participants", dms.AddParticipant)

	messages := NewMessageHandler(cfg.Service)
	v1.POST("/messages", messages.Create)
	v1.GET("/channels/:id/messages", messages.ListChannel)
	v1.GET("/dms/:id/messages", messages.ListDM)
	v1.GET("/channels/:id/pinned", messages.PinnedChannel)
	v1.GET("/dms/:id/pinned", messages.PinnedDM)
	v1.PATCH("/messages/:id", messages.Edit)
	v1.DELETE("/messages/:id", messages.Delete)
	v1.POST("/messages/:id/pin", messages.Pin)
	v1.GET("/messages/:id/thread", messages.Thread)
	v1.GET("/messages/:id/thread/count", messages.ThreadCount)
	v1.POST("/messages/:id/reactions", messages.React)
	v1.POST("/link-previews", messages.LinkPreviews)

	if cfg.Hub != nil {
		logger := cfg.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		rt := NewRealtimeHandler(cfg.Service, cfg.Hub, logger)
		v1.GET("/ws", rt.Subscribe)
	}
}

// health stays outside the Identity group so load balancers can check it
// without a token.
func health(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
