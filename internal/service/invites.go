package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/repository"
)

const (
	inviteTTL        = 7 * 24 * time.Hour
	inviteTokenBytes = 32
)

func newInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateInvite issues a single-use token valid for seven days. Owners and
// admins only.
func (s *Service) CreateInvite(ctx context.Context, p auth.Principal, workspaceID uuid.UUID, email string) (*models.Invite, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionCreateInvite, p); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	role, err := s.authz.RequireWorkspaceMember(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("check membership", err)
	}
	if !role.CanManage() {
		return nil, apperr.Forbidden("only owners and admins can invite people")
	}
	token, err := newInviteToken()
	if err != nil {
		return nil, s.fail("generate invite token", err)
	}
	now := s.clock()
	inv := &models.Invite{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Email:       email,
		Token:       token,
		InvitedBy:   p.UserID,
		ExpiresAt:   now.Add(inviteTTL),
		CreatedAt:   now,
	}
	if err := s.store.Invites().Create(ctx, inv); err != nil {
		return nil, s.fail("create invite", err)
	}
	return inv, nil
}

// JoinByInvite redeems token for the caller. Marking the invite used and
// inserting the membership happen in one transaction; the conditional mark
// makes a concurrent second redemption fail instead of double-joining.
func (s *Service) JoinByInvite(ctx context.Context, p auth.Principal, token string) (*models.Workspace, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	var ws *models.Workspace
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		now := s.clock()
		inv, err := tx.Invites().GetByToken(ctx, token)
		if err != nil {
			return err
		}
		if inv == nil || !inv.ValidAt(now) {
			return apperr.ErrInvalidOrExpiredInvite
		}
		existing, err := tx.Workspaces().GetMember(ctx, inv.WorkspaceID, p.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.ErrAlreadyMember
		}
		marked, err := tx.Invites().MarkUsed(ctx, inv.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return apperr.ErrInvalidOrExpiredInvite
		}
		err = tx.Workspaces().AddMember(ctx, &models.WorkspaceMember{
			WorkspaceID: inv.WorkspaceID, UserID: p.UserID, Role: models.RoleMember, JoinedAt: now,
		})
		if errors.Is(err, repository.ErrConflict) {
			return apperr.ErrAlreadyMember
		}
		if err != nil {
			return err
		}
		if err := joinGeneral(ctx, tx, inv.WorkspaceID, p.UserID, now); err != nil {
			return err
		}
		ws, err = tx.Workspaces().GetByID(ctx, inv.WorkspaceID)
		return err
	})
	if err != nil {
		return nil, s.fail("join by invite", err)
	}
	return ws, nil
}

// joinGeneral adds a new member to #general if it still exists.
func joinGeneral(ctx context.Context, tx repository.Store, workspaceID, userID uuid.UUID, now time.Time) error {
	channels, err := tx.Channels().ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if ch.Name != models.GeneralChannelName || ch.IsPrivate {
			continue
		}
		err := tx.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: ch.ID, UserID: userID, JoinedAt: now})
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return err
		}
		return nil
	}
	return nil
}

// UpdateMemberRole changes target's role between admin and member.
// The owner's role never changes and ownership cannot be granted here.
// Only the owner promotes to admin or demotes an admin; admins manage
// plain members only.
func (s *Service) UpdateMemberRole(ctx context.Context, p auth.Principal, workspaceID, target uuid.UUID, newRole models.Role) error {
	if err := requireAuth(p); err != nil {
		return err
	}
	if !newRole.Valid() {
		return apperr.InvalidArg("invalid role")
	}
	actorRole, err := s.authz.RequireWorkspaceMember(ctx, workspaceID, p.UserID)
	if err != nil {
		return s.fail("check membership", err)
	}
	targetRole, ok, err := s.authz.WorkspaceRole(ctx, workspaceID, target)
	if err != nil {
		return s.fail("get target role", err)
	}
	if !ok {
		return apperr.NotFound("member not found")
	}
	if targetRole == models.RoleOwner {
		return apperr.ErrCannotChangeOwnerRole
	}
	if newRole == models.RoleOwner {
		return apperr.InvalidOperation("ownership cannot be transferred")
	}
	if !actorRole.CanManage() {
		return apperr.Forbidden("only owners and admins can change roles")
	}
	if actorRole != models.RoleOwner && (newRole == models.RoleAdmin || targetRole == models.RoleAdmin) {
		return apperr.Forbidden("only the owner can promote or demote admins")
	}
	if newRole == targetRole {
		return nil
	}
	if err := s.store.Workspaces().UpdateMemberRole(ctx, workspaceID, target, newRole); err != nil {
		return s.fail("update member role", err)
	}
	return nil
}

// ListInvites returns the workspace's invites to owners and admins; everyone
// else gets an empty list.
func (s *Service) ListInvites(ctx context.Context, p auth.Principal, workspaceID uuid.UUID) ([]models.Invite, error) {
	role, ok, err := s.authz.WorkspaceRole(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("get workspace role", err)
	}
	if !ok || !role.CanManage() {
		return []models.Invite{}, nil
	}
	invites, err := s.store.Invites().ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail("list invites", err)
	}
	return invites, nil
}

// InvitePreview is what the landing page shows before the user accepts.
type InvitePreview struct {
	WorkspaceID   uuid.UUID `json:"workspace_id"`
	WorkspaceName string    `json:"workspace_name"`
	Email         string    `json:"email"`
	ExpiresAt     time.Time `json:"expires_at"`
	Valid         bool      `json:"valid"`
}

// GetInvitePreview needs no authentication; holding the token is enough.
// Returns nil for unknown tokens.
func (s *Service) GetInvitePreview(ctx context.Context, token string) (*InvitePreview, error) {
	inv, err := s.store.Invites().GetByToken(ctx, token)
	if err != nil {
		return nil, s.fail("get invite", err)
	}
	if inv == nil {
		return nil, nil
	}
	ws, err := s.store.Workspaces().GetByID(ctx, inv.WorkspaceID)
	if err != nil {
		return nil, s.fail("get workspace", err)
	}
	if ws == nil {
		return nil, nil
	}
	return &InvitePreview{
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
		Email:         inv.Email,
		ExpiresAt:     inv.ExpiresAt,
		Valid:         inv.ValidAt(s.clock()),
	}, nil
}
