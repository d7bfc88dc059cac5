package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/service"
)

type WorkspaceHandler struct {
	svc *service.Service
}

func NewWorkspaceHandler(svc *service.Service) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

type createWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create handles POST /v1/workspaces. The caller becomes owner and the
// workspace starts with a #general channel.
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if !bindJSON(c, &req) {
		return
	}
	ws, err := h.svc.CreateWorkspace(c.Request.Context(), principal(c), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

// List handles GET /v1/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	list, err := h.svc.ListWorkspaces(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ws, err := h.svc.GetWorkspace(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

type updateWorkspaceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update handles PATCH /v1/workspaces/:id. Absent fields are left alone.
func (h *WorkspaceHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateWorkspaceRequest
	if !bindJSON(c, &req) {
		return
	}
	ws, err := h.svc.UpdateWorkspace(c.Request.Context(), principal(c), id, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// Delete handles DELETE /v1/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteWorkspace(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /v1/workspaces/:id/members
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.ListWorkspaceMembers(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// RemoveMember handles DELETE /v1/workspaces/:id/members/:userId. Members
// may remove themselves; removing anyone else takes an admin.
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveWorkspaceMember(c.Request.Context(), principal(c), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// UpdateRole handles PATCH /v1/workspaces/:id/members/:userId/role
func (h *WorkspaceHandler) UpdateRole(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.UpdateMemberRole(c.Request.Context(), principal(c), id, userID, req.Role); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
