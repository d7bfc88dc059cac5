package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/service"
)

type DMHandler struct {
	svc *service.Service
}

func NewDMHandler(svc *service.Service) *DMHandler {
	return &DMHandler{svc: svc}
}

type createDMRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required"`
}

// Create handles POST /v1/workspaces/:id/dms. Asking twice for the same
// participant set returns the same conversation.
func (h *DMHandler) Create(c *gin.Context) {
	workspaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req createDMRequest
	if !bindJSON(c, &req) {
		return
	}
	dm, err := h.svc.CreateDM(c.Request.Context(), principal(c), workspaceID, req.ParticipantIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dm)
}

// List handles GET /v1/workspaces/:id/dms
func (h *DMHandler) List(c *gin.Context) {
	workspaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	dms, err := h.svc.ListDMs(c.Request.Context(), principal(c), workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dms)
}

// Get handles GET /v1/dms/:id
func (h *DMHandler) Get(c *gin.Context) {
	dmID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	dm, err := h.svc.GetDM(c.Request.Context(), principal(c), dmID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dm)
}

// AddParticipant handles POST /v1/dms/:id/participants
func (h *DMHandler) AddParticipant(c *gin.Context) {
	dmID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if !bindJSON(c, &req) {
		return
	}
	dm, err := h.svc.AddDMParticipant(c.Request.Context(), principal(c), dmID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dm)
}
