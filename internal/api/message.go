package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/service"
)

type MessageHandler struct {
	svc *service.Service
}

func NewMessageHandler(svc *service.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type sendMessageRequest struct {
	WorkspaceID     uuid.UUID           `json:"workspace_id"`
	ChannelID       *uuid.UUID          `json:"channel_id"`
	DMID            *uuid.UUID          `json:"dm_id"`
	Text            string              `json:"text"`
	Attachments     []attachmentRequest `json:"attachments" binding:"dive"`
	LinkPreviews    []linkPreviewInput  `json:"link_previews" binding:"dive"`
	ParentMessageID *uuid.UUID          `json:"parent_message_id"`
}

// attachmentRequest has no url: the server resolves it from storage_ref.
type attachmentRequest struct {
	StorageRef  string `json:"storage_ref" binding:"required"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size" binding:"gte=0"`
}

type linkPreviewInput struct {
	URL         string `json:"url" binding:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	SiteName    string `json:"site_name"`
}

func (r sendMessageRequest) attachments() []models.Attachment {
	out := make([]models.Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		out = append(out, models.Attachment{StorageRef: a.StorageRef, Name: a.Name, ContentType: a.ContentType, Size: a.Size})
	}
	return out
}

func (r sendMessageRequest) linkPreviews() []models.LinkPreview {
	out := make([]models.LinkPreview, 0, len(r.LinkPreviews))
	for _, lp := range r.LinkPreviews {
		out = append(out, models.LinkPreview(lp))
	}
	return out
}

// Create handles POST /v1/messages. Exactly one of channel_id and dm_id
// must be set; parent_message_id makes it a thread reply.
//
// Flow:
//  1. Bind the body; unknown fields and attachment urls are rejected
//  2. The service applies the send quota, then requires write access to
//     the conversation
//  3. Attachment URLs are resolved from storage refs at write time
//  4. The message is stored and message.created goes to live subscribers
func (h *MessageHandler) Create(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.SendMessage(c.Request.Context(), principal(c), service.SendMessageInput{
		WorkspaceID:     req.WorkspaceID,
		ChannelID:       req.ChannelID,
		DMID:            req.DMID,
		Text:            req.Text,
		Attachments:     req.attachments(),
		LinkPreviews:    req.linkPreviews(),
		ParentMessageID: req.ParentMessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// scopeFromPath builds the conversation scope for /channels/:id/... and
// /dms/:id/... routes.
func scopeFromPath(c *gin.Context, dm bool) (models.Scope, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return models.Scope{}, false
	}
	if dm {
		return models.DMScope(id), true
	}
	return models.ChannelScope(id), true
}

// ListChannel handles GET /v1/channels/:id/messages?cursor=&limit=
func (h *MessageHandler) ListChannel(c *gin.Context) { h.list(c, false) }

// ListDM handles GET /v1/dms/:id/messages?cursor=&limit=
func (h *MessageHandler) ListDM(c *gin.Context) { h.list(c, true) }

// Pages run newest first. Pass continue_cursor back as ?cursor= until
// is_done is true.
func (h *MessageHandler) list(c *gin.Context, dm bool) {
	scope, ok := scopeFromPath(c, dm)
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.svc.ListMessages(c.Request.Context(), principal(c), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *MessageHandler) PinnedChannel(c *gin.Context) { h.pinned(c, false) }
func (h *MessageHandler) PinnedDM(c *gin.Context)      { h.pinned(c, true) }

func (h *MessageHandler) pinned(c *gin.Context, dm bool) {
	scope, ok := scopeFromPath(c, dm)
	if !ok {
		return
	}
	msgs, err := h.svc.GetPinned(c.Request.Context(), principal(c), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type editMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// Edit handles PATCH /v1/messages/:id. Only the sender may edit.
func (h *MessageHandler) Edit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req editMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.EditMessage(c.Request.Context(), principal(c), id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteMessage(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Pin handles POST /v1/messages/:id/pin, flipping the pinned state.
func (h *MessageHandler) Pin(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.svc.TogglePin(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Thread handles GET /v1/messages/:id/thread, oldest reply first.
func (h *MessageHandler) Thread(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.svc.GetThreadMessages(c.Request.Context(), principal(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ThreadCount handles GET /v1/messages/:id/thread/count
func (h *MessageHandler) ThreadCount(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.GetThreadCount(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// React handles POST /v1/messages/:id/reactions. Calling it twice with the
// same emoji removes the reaction again.
func (h *MessageHandler) React(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reactionRequest
	if !bindJSON(c, &req) {
		return
	}
	reacted, err := h.svc.ToggleReaction(c.Request.Context(), principal(c), id, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reacted": reacted})
}

type linkPreviewRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// LinkPreviews handles POST /v1/link-previews
func (h *MessageHandler) LinkPreviews(c *gin.Context) {
	var req linkPreviewRequest
	if !bindJSON(c, &req) {
		return
	}
	previews, err := h.svc.ResolveLinkPreviews(c.Request.Context(), principal(c), req.URLs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, previews)
}
