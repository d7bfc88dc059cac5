package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/blob"
	"github.com/lalith-99/teamchat/internal/metrics"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/realtime"
	"go.uber.org/zap"
)

const (
	MaxTextLen      = 4000
	MaxAttachments  = 10
	MaxLinkPreviews = 5
)

type SendMessageInput struct {
	WorkspaceID     uuid.UUID
	ChannelID       *uuid.UUID
	DMID            *uuid.UUID
	Text            string
	Attachments     []models.Attachment
	LinkPreviews    []models.LinkPreview
	ParentMessageID *uuid.UUID
}

func (in SendMessageInput) scope() (models.Scope, error) {
	if (in.ChannelID == nil) == (in.DMID == nil) {
		return models.Scope{}, apperr.InvalidArg("exactly one of channel_id or dm_id must be set")
	}
	if in.ChannelID != nil {
		return models.ChannelScope(*in.ChannelID), nil
	}
	return models.DMScope(*in.DMID), nil
}

// MessageView is a message joined with what a client needs to render it.
type MessageView struct {
	models.Message
	Sender     *models.UserSummary `json:"sender"`
	Reactions  []ReactionGroup     `json:"reactions"`
	ReplyCount int                 `json:"reply_count"`
}

func checkText(text string, attachments int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" && attachments == 0 {
		return "", apperr.InvalidArg("message must have text or an attachment")
	}
	if utf8.RuneCountInString(text) > MaxTextLen {
		return "", apperr.InvalidArg("message text is too long")
	}
	return text, nil
}

func (s *Service) SendMessage(ctx context.Context, p auth.Principal, in SendMessageInput) (*models.Message, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionSendMessage, p); err != nil {
		return nil, err
	}
	scope, err := in.scope()
	if err != nil {
		return nil, err
	}
	text, err := checkText(in.Text, len(in.Attachments))
	if err != nil {
		return nil, err
	}
	if len(in.Attachments) > MaxAttachments {
		return nil, apperr.InvalidArg("too many attachments")
	}
	for _, a := range in.Attachments {
		if !blob.ValidRef(a.StorageRef) {
			return nil, apperr.InvalidArg("invalid attachment reference")
		}
	}
	if len(in.LinkPreviews) > MaxLinkPreviews {
		return nil, apperr.InvalidArg("too many link previews")
	}

	if _, err := s.authz.RequireWorkspaceMember(ctx, in.WorkspaceID, p.UserID); err != nil {
		return nil, s.fail("check membership", err)
	}
	conv, err := s.authz.RequireWrite(ctx, scope, p.UserID)
	if err != nil {
		return nil, s.fail("check write access", err)
	}
	if conv.WorkspaceID != in.WorkspaceID {
		return nil, apperr.InvalidReference("conversation does not belong to this workspace")
	}

	parentID, err := s.threadRoot(ctx, in.ParentMessageID, scope)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		ID:              uuid.New(),
		WorkspaceID:     in.WorkspaceID,
		SenderID:        p.UserID,
		Text:            text,
		Attachments:     s.resolveAttachments(ctx, in.Attachments),
		LinkPreviews:    in.LinkPreviews,
		ParentMessageID: parentID,
		CreatedAt:       s.clock(),
	}
	if scope.IsChannel() {
		m.ChannelID = &scope.ChannelID
	} else {
		m.DMID = &scope.DMID
	}
	if m.LinkPreviews == nil {
		m.LinkPreviews = []models.LinkPreview{}
	}
	if err := s.store.Messages().Create(ctx, m); err != nil {
		return nil, s.fail("create message", err)
	}

	kind := "channel"
	if !scope.IsChannel() {
		kind = "dm"
	}
	metrics.MessagesSentTotal.WithLabelValues(kind).Inc()
	s.publish(scope, realtime.EventMessageCreated, m)
	return m, nil
}

// threadRoot validates the parent and returns the id replies should point
// at. Replying to a reply lands in the root's thread.
func (s *Service) threadRoot(ctx context.Context, parentID *uuid.UUID, scope models.Scope) (*uuid.UUID, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := s.store.Messages().GetByID(ctx, *parentID)
	if err != nil {
		return nil, s.fail("get parent message", err)
	}
	if parent == nil || parent.Deleted() {
		return nil, apperr.NotFound("parent message not found")
	}
	if parent.Scope() != scope {
		return nil, apperr.InvalidReference("parent message belongs to a different conversation")
	}
	if parent.ParentMessageID != nil {
		root := *parent.ParentMessageID
		return &root, nil
	}
	return &parent.ID, nil
}

// resolveAttachments snapshots a retrievable URL for every attachment.
// Only the storage reference is trusted; a URL supplied by the caller is
// discarded. Failures leave the URL empty and never block the send.
func (s *Service) resolveAttachments(ctx context.Context, in []models.Attachment) []models.Attachment {
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		a.Name = strings.TrimSpace(a.Name)
		a.URL = ""
		if s.blob != nil {
			url, err := s.blob.GetURL(ctx, a.StorageRef)
			if err != nil {
				s.logger.Warn("resolve attachment url", zap.String("ref", a.StorageRef), zap.Error(err))
			} else {
				a.URL = url
			}
		}
		out = append(out, a)
	}
	return out
}

// ListMessages returns the top-level timeline of a conversation, newest first.
func (s *Service) ListMessages(ctx context.Context, p auth.Principal, scope models.Scope, req PageRequest) (*Page[MessageView], error) {
	after, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return emptyPage[MessageView](), nil
	}
	access, _, err := s.authz.ConversationAccess(ctx, scope, p.UserID)
	if err != nil {
		return nil, s.fail("check conversation access", err)
	}
	if !access.CanRead {
		return emptyPage[MessageView](), nil
	}
	size := req.size()
	msgs, err := s.store.Messages().ListTimeline(ctx, scope, after, size+1)
	if err != nil {
		return nil, s.fail("list messages", err)
	}
	return s.page(ctx, msgs, size)
}

// GetThreadMessages returns the replies to parentID, oldest first. The
// parent itself may be deleted; its replies stay readable.
func (s *Service) GetThreadMessages(ctx context.Context, p auth.Principal, parentID uuid.UUID, req PageRequest) (*Page[MessageView], error) {
	after, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	ok, err := s.canReadMessage(ctx, p, parentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptyPage[MessageView](), nil
	}
	size := req.size()
	msgs, err := s.store.Messages().ListThread(ctx, parentID, after, size+1)
	if err != nil {
		return nil, s.fail("list thread", err)
	}
	return s.page(ctx, msgs, size)
}

// GetThreadCount counts non-deleted replies. Callers who cannot read the
// conversation get 0.
func (s *Service) GetThreadCount(ctx context.Context, p auth.Principal, parentID uuid.UUID) (int, error) {
	ok, err := s.canReadMessage(ctx, p, parentID)
	if err != nil || !ok {
		return 0, err
	}
	counts, err := s.store.Messages().CountReplies(ctx, []uuid.UUID{parentID})
	if err != nil {
		return 0, s.fail("count replies", err)
	}
	return counts[parentID], nil
}

func (s *Service) canReadMessage(ctx context.Context, p auth.Principal, messageID uuid.UUID) (bool, error) {
	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return false, s.fail("get message", err)
	}
	if m == nil {
		return false, nil
	}
	access, _, err := s.authz.ConversationAccess(ctx, m.Scope(), p.UserID)
	if err != nil {
		return false, s.fail("check conversation access", err)
	}
	return access.CanRead, nil
}

// page trims the extra size+1 row and builds the continuation cursor.
func (s *Service) page(ctx context.Context, msgs []models.Message, size int) (*Page[MessageView], error) {
	done := len(msgs) <= size
	if !done {
		msgs = msgs[:size]
	}
	views, err := s.hydrate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	pg := &Page[MessageView]{Items: views, IsDone: done}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		pg.ContinueCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return pg, nil
}

// hydrate joins senders, reactions and reply counts in three batched reads.
func (s *Service) hydrate(ctx context.Context, msgs []models.Message) ([]MessageView, error) {
	views := make([]MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return views, nil
	}
	ids := make([]uuid.UUID, 0, len(msgs))
	senders := make([]uuid.UUID, 0, len(msgs))
	var roots []uuid.UUID
	for _, m := range msgs {
		ids = append(ids, m.ID)
		senders = append(senders, m.SenderID)
		if m.ParentMessageID == nil {
			roots = append(roots, m.ID)
		}
	}
	users, err := s.summaries(ctx, senders)
	if err != nil {
		return nil, s.fail("load senders", err)
	}
	reactions, err := s.store.Reactions().ListForMessages(ctx, ids)
	if err != nil {
		return nil, s.fail("load reactions", err)
	}
	byMessage := make(map[uuid.UUID][]models.Reaction)
	for _, r := range reactions {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}
	replies := map[uuid.UUID]int{}
	if len(roots) > 0 {
		if replies, err = s.store.Messages().CountReplies(ctx, roots); err != nil {
			return nil, s.fail("count replies", err)
		}
	}
	for _, m := range msgs {
		v := MessageView{Message: m, Reactions: GroupReactions(byMessage[m.ID]), ReplyCount: replies[m.ID]}
		if u, ok := users[m.SenderID]; ok {
			v.Sender = &u
		}
		views = append(views, v)
	}
	return views, nil
}

// loadLiveMessage fetches a message for a mutation and checks the caller
// still belongs to its workspace.
func (s *Service) loadLiveMessage(ctx context.Context, p auth.Principal, messageID uuid.UUID) (*models.Message, models.Role, error) {
	if err := requireAuth(p); err != nil {
		return nil, "", err
	}
	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, "", s.fail("get message", err)
	}
	if m == nil || m.Deleted() {
		return nil, "", apperr.ErrMessageNotFound
	}
	role, err := s.authz.RequireWorkspaceMember(ctx, m.WorkspaceID, p.UserID)
	if err != nil {
		return nil, "", s.fail("check membership", err)
	}
	return m, role, nil
}

// EditMessage replaces the text. Only the sender may edit, and only while
// they can still write to the conversation.
func (s *Service) EditMessage(ctx context.Context, p auth.Principal, messageID uuid.UUID, text string) (*models.Message, error) {
	m, _, err := s.loadLiveMessage(ctx, p, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != p.UserID {
		return nil, apperr.Forbidden("you can only edit your own messages")
	}
	if _, err := s.authz.RequireWrite(ctx, m.Scope(), p.UserID); err != nil {
		return nil, s.fail("check write access", err)
	}
	if m.Text, err = checkText(text, len(m.Attachments)); err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.store.Messages().UpdateText(ctx, m.ID, m.Text, now); err != nil {
		return nil, s.fail("edit message", err)
	}
	m.EditedAt = &now
	s.publish(m.Scope(), realtime.EventMessageUpdated, m)
	return m, nil
}

// DeleteMessage soft-deletes. The sender or a workspace owner/admin may do it.
func (s *Service) DeleteMessage(ctx context.Context, p auth.Principal, messageID uuid.UUID) error {
	m, role, err := s.loadLiveMessage(ctx, p, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != p.UserID && !role.CanManage() {
		return apperr.Forbidden("you can only delete your own messages")
	}
	if err := s.store.Messages().SoftDelete(ctx, m.ID, s.clock()); err != nil {
		return s.fail("delete message", err)
	}
	s.publish(m.Scope(), realtime.EventMessageDeleted, map[string]uuid.UUID{"id": m.ID})
	return nil
}

// TogglePin flips the pinned flag. Anyone who can write to the
// conversation may pin or unpin.
func (s *Service) TogglePin(ctx context.Context, p auth.Principal, messageID uuid.UUID) (*models.Message, error) {
	m, _, err := s.loadLiveMessage(ctx, p, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireWrite(ctx, m.Scope(), p.UserID); err != nil {
		return nil, s.fail("check write access", err)
	}
	now := s.clock()
	pinned := !m.Pinned
	if err := s.store.Messages().SetPinned(ctx, m.ID, pinned, p.UserID, now); err != nil {
		return nil, s.fail("toggle pin", err)
	}
	m.Pinned = pinned
	if pinned {
		m.PinnedBy, m.PinnedAt = &p.UserID, &now
	} else {
		m.PinnedBy, m.PinnedAt = nil, nil
	}
	s.publish(m.Scope(), realtime.EventMessageUpdated, m)
	return m, nil
}

func (s *Service) GetPinned(ctx context.Context, p auth.Principal, scope models.Scope) ([]MessageView, error) {
	if !scope.Valid() {
		return []MessageView{}, nil
	}
	access, _, err := s.authz.ConversationAccess(ctx, scope, p.UserID)
	if err != nil {
		return nil, s.fail("check conversation access", err)
	}
	if !access.CanRead {
		return []MessageView{}, nil
	}
	msgs, err := s.store.Messages().ListPinned(ctx, scope)
	if err != nil {
		return nil, s.fail("list pinned", err)
	}
	return s.hydrate(ctx, msgs)
}

// CanSubscribe reports whether p may receive realtime events for scope.
func (s *Service) CanSubscribe(ctx context.Context, p auth.Principal, scope models.Scope) (bool, error) {
	if !p.Authenticated() || !scope.Valid() {
		return false, nil
	}
	access, _, err := s.authz.ConversationAccess(ctx, scope, p.UserID)
	if err != nil {
		return false, s.fail("check conversation access", err)
	}
	return access.CanRead, nil
}

// ResolveLinkPreviews fetches previews for the composer. Unreachable or
// metadata-less URLs are simply absent from the result.
func (s *Service) ResolveLinkPreviews(ctx context.Context, p auth.Principal, urls []string) ([]models.LinkPreview, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	if s.previews == nil || len(urls) == 0 {
		return []models.LinkPreview{}, nil
	}
	return s.previews.Resolve(ctx, urls), nil
}
