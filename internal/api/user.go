package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/service"
)

type UserHandler struct {
	svc *service.Service
}

func NewUserHandler(svc *service.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetMe handles GET /v1/users/me. Anonymous callers get null, not a 401.
func (h *UserHandler) GetMe(c *gin.Context) {
	me, err := h.svc.GetMe(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

type setAvatarRequest struct {
	StorageRef string `json:"storage_ref" binding:"required"`
}

// SetAvatar handles PUT /v1/users/me/avatar
func (h *UserHandler) SetAvatar(c *gin.Context) {
	var req setAvatarRequest
	if !bindJSON(c, &req) {
		return
	}
	me, err := h.svc.SetAvatar(c.Request.Context(), principal(c), req.StorageRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// CreateUpload handles POST /v1/uploads. The client PUTs the file to the
// returned URL and then refers to it by storage_ref.
func (h *UserHandler) CreateUpload(c *gin.Context) {
	up, err := h.svc.GenerateUploadURL(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, up)
}
