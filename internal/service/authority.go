package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

// Authority answers "may this user see or write here". It only reads, so it
// can run over the root store or over a transaction's store.
type Authority struct {
	store repository.Store
}

func NewAuthority(store repository.Store) *Authority {
	return &Authority{store: store}
}

// Access is the outcome of a conversation check. CanWrite implies CanRead.
type Access struct {
	CanRead  bool
	CanWrite bool
}

var fullAccess = Access{CanRead: true, CanWrite: true}

// Conversation is a resolved channel or DM. Exactly one of Channel or DM is set.
type Conversation struct {
	Scope       models.Scope
	WorkspaceID uuid.UUID
	Channel     *models.Channel
	DM          *models.DirectMessage
}

// WorkspaceRole returns the user's role, with ok=false for non-members.
func (a *Authority) WorkspaceRole(ctx context.Context, workspaceID, userID uuid.UUID) (models.Role, bool, error) {
	if userID == uuid.Nil {
		return "", false, nil
	}
	m, err := a.store.Workspaces().GetMember(ctx, workspaceID, userID)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	return m.Role, true, nil
}

// RequireWorkspaceMember is WorkspaceRole for mutations.
func (a *Authority) RequireWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID) (models.Role, error) {
	role, ok, err := a.WorkspaceRole(ctx, workspaceID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.ErrNotWorkspaceMember
	}
	return role, nil
}

// ChannelAccess: public channels are open to every workspace member, private
// channels only to their members. A nil channel means it does not exist.
func (a *Authority) ChannelAccess(ctx context.Context, channelID, userID uuid.UUID) (Access, *models.Channel, error) {
	ch, err := a.store.Channels().GetByID(ctx, channelID)
	if err != nil || ch == nil {
		return Access{}, nil, err
	}
	_, ok, err := a.WorkspaceRole(ctx, ch.WorkspaceID, userID)
	if err != nil || !ok {
		return Access{}, ch, err
	}
	if !ch.IsPrivate {
		return fullAccess, ch, nil
	}
	member, err := a.store.Channels().IsMember(ctx, channelID, userID)
	if err != nil {
		return Access{}, ch, err
	}
	return Access{CanRead: member, CanWrite: member}, ch, nil
}

// DMAccess requires the user to be a participant who still belongs to the
// workspace.
func (a *Authority) DMAccess(ctx context.Context, dmID, userID uuid.UUID) (bool, *models.DirectMessage, error) {
	dm, err := a.store.DirectMessages().GetByID(ctx, dmID)
	if err != nil || dm == nil {
		return false, nil, err
	}
	if !dm.HasParticipant(userID) {
		return false, dm, nil
	}
	_, ok, err := a.WorkspaceRole(ctx, dm.WorkspaceID, userID)
	if err != nil {
		return false, dm, err
	}
	return ok, dm, nil
}

// ConversationAccess dispatches on the scope kind. conv is nil when the
// conversation does not exist.
func (a *Authority) ConversationAccess(ctx context.Context, scope models.Scope, userID uuid.UUID) (Access, *Conversation, error) {
	if scope.IsChannel() {
		access, ch, err := a.ChannelAccess(ctx, scope.ChannelID, userID)
		if err != nil || ch == nil {
			return Access{}, nil, err
		}
		return access, &Conversation{Scope: scope, WorkspaceID: ch.WorkspaceID, Channel: ch}, nil
	}
	ok, dm, err := a.DMAccess(ctx, scope.DMID, userID)
	if err != nil || dm == nil {
		return Access{}, nil, err
	}
	access := Access{}
	if ok {
		access = fullAccess
	}
	return access, &Conversation{Scope: scope, WorkspaceID: dm.WorkspaceID, DM: dm}, nil
}

// RequireWrite resolves scope for a mutation and maps every denial to the
// matching error: missing conversation, non-member of the workspace, or a
// member without access to this particular conversation.
func (a *Authority) RequireWrite(ctx context.Context, scope models.Scope, userID uuid.UUID) (*Conversation, error) {
	access, conv, err := a.ConversationAccess(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		if scope.IsChannel() {
			return nil, apperr.ErrChannelNotFound
		}
		return nil, apperr.ErrConversationNotFound
	}
	if access.CanWrite {
		return conv, nil
	}
	if _, err := a.RequireWorkspaceMember(ctx, conv.WorkspaceID, userID); err != nil {
		return nil, err
	}
	if scope.IsChannel() {
		return nil, apperr.Forbidden("you are not a member of this private channel")
	}
	return nil, apperr.Forbidden("you are not a participant in this conversation")
}
