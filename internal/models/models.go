package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a workspace-level role. There is exactly one owner per workspace.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role can administer the workspace
// (rename it, delete channels it did not create, invite people).
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User is an account owned by the identity provider. The messaging core
// only reads it to project sender identity onto messages.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	AvatarRef    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the public projection of a User joined onto other records.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

// Workspace is the top-level tenant.
// OwnerID never changes after creation.
type Workspace struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkspaceMember is unique per (WorkspaceID, UserID).
type WorkspaceMember struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Channel is a named conversation inside a workspace.
//
// Public channels are readable and writable by every workspace member.
// Private channels require a ChannelMember row.
type Channel struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// GeneralChannelName is created with every workspace.
const GeneralChannelName = "general"

type ChannelMember struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// DirectMessage is a conversation defined by its participant set.
// ParticipantKey is the canonical form of that set and is unique per workspace.
type DirectMessage struct {
	ID             uuid.UUID   `json:"id"`
	WorkspaceID    uuid.UUID   `json:"workspace_id"`
	Participants   []uuid.UUID `json:"participants"`
	ParticipantKey string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
}

// HasParticipant reports whether userID is part of the conversation.
func (d *DirectMessage) HasParticipant(userID uuid.UUID) bool {
	for _, p := range d.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Attachment is a stored file referenced by a message. URL is resolved once
// when the message is sent and is empty if resolution failed.
type Attachment struct {
	StorageRef  string `json:"storage_ref"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// LinkPreview is OpenGraph-style metadata for a URL in a message.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// Message belongs to exactly one of a channel or a DM.
//
// Messages are never physically removed: DeletedAt marks them deleted and
// every read path filters on it. Thread replies carry ParentMessageID and are
// excluded from the main timeline.
type Message struct {
	ID              uuid.UUID     `json:"id"`
	WorkspaceID     uuid.UUID     `json:"workspace_id"`
	ChannelID       *uuid.UUID    `json:"channel_id,omitempty"`
	DMID            *uuid.UUID    `json:"dm_id,omitempty"`
	SenderID        uuid.UUID     `json:"sender_id"`
	Text            string        `json:"text"`
	Attachments     []Attachment  `json:"attachments"`
	LinkPreviews    []LinkPreview `json:"link_previews"`
	ParentMessageID *uuid.UUID    `json:"parent_message_id,omitempty"`
	Pinned          bool          `json:"pinned"`
	PinnedBy        *uuid.UUID    `json:"pinned_by,omitempty"`
	PinnedAt        *time.Time    `json:"pinned_at,omitempty"`
	EditedAt        *time.Time    `json:"edited_at,omitempty"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// Scope returns the conversation the message belongs to.
func (m *Message) Scope() Scope {
	if m.ChannelID != nil {
		return Scope{ChannelID: *m.ChannelID}
	}
	if m.DMID != nil {
		return Scope{DMID: *m.DMID}
	}
	return Scope{}
}

// Scope identifies a conversation: exactly one of ChannelID or DMID is set.
type Scope struct {
	ChannelID uuid.UUID
	DMID      uuid.UUID
}

func ChannelScope(id uuid.UUID) Scope { return Scope{ChannelID: id} }
func DMScope(id uuid.UUID) Scope      { return Scope{DMID: id} }

// Valid reports whether exactly one side is set.
func (s Scope) Valid() bool {
	return (s.ChannelID != uuid.Nil) != (s.DMID != uuid.Nil)
}

func (s Scope) IsChannel() bool { return s.ChannelID != uuid.Nil }

// ID returns whichever identifier is set.
func (s Scope) ID() uuid.UUID {
	if s.IsChannel() {
		return s.ChannelID
	}
	return s.DMID
}

// Reaction is unique per (MessageID, UserID, Emoji); presence means reacted.
type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite is single-use: valid while UsedAt is nil and ExpiresAt is in the future.
type Invite struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	Email       string     `json:"email"`
	Token       string     `json:"token"`
	InvitedBy   uuid.UUID  `json:"invited_by"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ValidAt reports whether the invite can still be redeemed at now.
func (i *Invite) ValidAt(now time.Time) bool {
	return i.UsedAt == nil && i.ExpiresAt.After(now)
}

// ChannelNotification is unique per (ChannelID, UserID). The watermark is
// the (LastSeen, LastSeenID) position of the newest message the user has
// been notified about; the id breaks ties between messages created in the
// same instant.
type ChannelNotification struct {
	ChannelID  uuid.UUID `json:"channel_id"`
	UserID     uuid.UUID `json:"user_id"`
	Enabled    bool      `json:"enabled"`
	LastSeen   time.Time `json:"last_seen"`
	LastSeenID uuid.UUID `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
}
