package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
)

// Conventions shared by every implementation:
//
//   - context.Context first on every method; all of them do I/O.
//   - Point lookups return (nil, nil) when the row does not exist.
//   - List methods return an empty slice, never nil, so JSON renders [].
//   - Unique-key violations surface as ErrConflict so services can turn
//     them into domain errors without knowing the storage engine.
//   - Callers generate IDs and timestamps; the store persists what it is given.

// ErrConflict is returned when an insert collides with a unique key.
var ErrConflict = errors.New("repository: unique constraint violation")

// Store groups the repositories and runs multi-step mutations atomically.
//
// InTx hands fn a Store whose repositories all share one transaction. If fn
// returns an error nothing it wrote is kept. Calling InTx on a Store that is
// already inside a transaction joins that transaction.
type Store interface {
	Users() UserRepository
	Workspaces() WorkspaceRepository
	Channels() ChannelRepository
	DirectMessages() DirectMessageRepository
	Messages() MessageRepository
	Reactions() ReactionRepository
	Invites() InviteRepository
	Notifications() NotificationRepository

	InTx(ctx context.Context, fn func(tx Store) error) error
}

// UserRepository handles accounts. Owned by the auth flow; the core reads it.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetMany returns the users that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
	SetAvatar(ctx context.Context, userID uuid.UUID, ref string) error
}

// WorkspaceRepository handles workspaces and their memberships.
type WorkspaceRepository interface {
	Create(ctx context.Context, w *models.Workspace) error
	GetByID(ctx context.Context, workspaceID uuid.UUID) (*models.Workspace, error)
	// ListForUser returns the workspaces userID belongs to, oldest first,
	// paired with the caller's membership.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]WorkspaceWithMember, error)
	Update(ctx context.Context, w *models.Workspace) error
	// DeleteCascade removes the workspace and everything that depends on it:
	// reactions, messages, channel notifications, channel members, channels,
	// DMs, invites, workspace members.
	DeleteCascade(ctx context.Context, workspaceID uuid.UUID) error

	AddMember(ctx context.Context, m *models.WorkspaceMember) error
	GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error)
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]models.WorkspaceMember, error)
	UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role models.Role) error
	// RemoveMemberCascade deletes the membership plus the user's channel
	// memberships and notification settings inside the workspace.
	// Returns false if there was no membership.
	RemoveMemberCascade(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error)
}

type WorkspaceWithMember struct {
	Workspace models.Workspace
	Member    models.WorkspaceMember
}

// ChannelRepository handles channels and channel membership.
type ChannelRepository interface {
	// Create returns ErrConflict if the name is taken in the workspace.
	Create(ctx context.Context, ch *models.Channel) error
	GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error)
	// ListByWorkspace returns every channel, oldest first.
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Channel, error)
	Update(ctx context.Context, ch *models.Channel) error
	// DeleteCascade removes the channel's notification settings, its
	// memberships and the channel row. Messages are retained.
	DeleteCascade(ctx context.Context, channelID uuid.UUID) error

	// AddMember returns ErrConflict if the user is already a member.
	AddMember(ctx context.Context, m *models.ChannelMember) error
	// RemoveMember returns false if the user was not a member.
	RemoveMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
	IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error)
	// MemberChannelIDs returns the channels in the workspace userID has joined.
	MemberChannelIDs(ctx context.Context, workspaceID, userID uuid.UUID) (map[uuid.UUID]bool, error)
}

// DirectMessageRepository handles DM conversations.
type DirectMessageRepository interface {
	// Create returns ErrConflict if a DM with the same ParticipantKey exists
	// in the workspace.
	Create(ctx context.Context, dm *models.DirectMessage) error
	GetByID(ctx context.Context, dmID uuid.UUID) (*models.DirectMessage, error)
	GetByParticipantKey(ctx context.Context, workspaceID uuid.UUID, key string) (*models.DirectMessage, error)
	// ListForUser returns DMs in the workspace that include userID, newest first.
	ListForUser(ctx context.Context, workspaceID, userID uuid.UUID) ([]models.DirectMessage, error)
	// UpdateParticipants returns ErrConflict if the new key collides.
	UpdateParticipants(ctx context.Context, dm *models.DirectMessage) error
}

// Cursor is a keyset position in a (CreatedAt, ID) ordered scan.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// MessageRepository handles message persistence. No method ever returns a
// message with DeletedAt set except GetByID.
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	// GetByID returns the row even if it was soft-deleted.
	GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error)
	// ListTimeline returns top-level, non-deleted messages of the scope,
	// newest first, strictly after the cursor position. At most limit rows.
	ListTimeline(ctx context.Context, scope models.Scope, after *Cursor, limit int) ([]models.Message, error)
	// ListThread returns non-deleted replies to parentID, oldest first,
	// strictly after the cursor position. At most limit rows.
	ListThread(ctx context.Context, parentID uuid.UUID, after *Cursor, limit int) ([]models.Message, error)
	// CountReplies returns the number of non-deleted replies per parent.
	// Parents without replies are absent from the map.
	CountReplies(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID]int, error)
	// ListPinned returns pinned, non-deleted messages of the scope, newest pin first.
	ListPinned(ctx context.Context, scope models.Scope) ([]models.Message, error)
	// ListChannelSince returns non-deleted messages in the channel strictly
	// after the (CreatedAt, ID) position and not sent by excludeSender,
	// oldest first.
	ListChannelSince(ctx context.Context, channelID uuid.UUID, after Cursor, excludeSender uuid.UUID, limit int) ([]models.Message, error)
	UpdateText(ctx context.Context, messageID uuid.UUID, text string, editedAt time.Time) error
	SetPinned(ctx context.Context, messageID uuid.UUID, pinned bool, by uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, messageID uuid.UUID, at time.Time) error
}

// ReactionRepository handles per-user-per-emoji reaction rows.
type ReactionRepository interface {
	// Toggle deletes the (message, user, emoji) row if present, otherwise
	// inserts it. Returns true if the row exists afterwards.
	Toggle(ctx context.Context, r *models.Reaction) (bool, error)
	// ListForMessages returns every reaction on the given messages, oldest first.
	ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.Reaction, error)
}

// InviteRepository handles workspace invitations.
type InviteRepository interface {
	Create(ctx context.Context, inv *models.Invite) error
	GetByToken(ctx context.Context, token string) (*models.Invite, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Invite, error)
	// MarkUsed sets UsedAt only if it is still unset. Returns false if the
	// invite was already used (or does not exist).
	MarkUsed(ctx context.Context, inviteID uuid.UUID, at time.Time) (bool, error)
}

// NotificationRepository handles per-user per-channel notification settings.
type NotificationRepository interface {
	Get(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelNotification, error)
	// Upsert inserts n or, if the (channel, user) row exists, updates only
	// Enabled and UpdatedAt, leaving the watermark alone.
	Upsert(ctx context.Context, n *models.ChannelNotification) error
	ListEnabled(ctx context.Context, userID uuid.UUID) ([]models.ChannelNotification, error)
	// AdvanceWatermark moves (LastSeen, LastSeenID) forward to the given
	// position. It never moves the watermark backwards.
	AdvanceWatermark(ctx context.Context, channelID, userID uuid.UUID, to Cursor) error
	// Delete removes the row when the user leaves or is removed from the channel.
	Delete(ctx context.Context, channelID, userID uuid.UUID) error
}
