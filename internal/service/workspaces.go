package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/repository"
)

const (
	maxNameLen        = 80
	maxDescriptionLen = 500
)

// WorkspaceView is a workspace as seen by one of its members.
type WorkspaceView struct {
	models.Workspace
	Role models.Role `json:"role"`
}

type MemberView struct {
	User     models.UserSummary `json:"user"`
	Role     models.Role        `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
}

func cleanName(name, what string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.InvalidArg(what + " name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", apperr.InvalidArg(what + " name is too long")
	}
	return name, nil
}

func cleanDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return "", apperr.InvalidArg("description is too long")
	}
	return desc, nil
}

// CreateWorkspace makes the caller the owner and creates #general with the
// caller in it, all in one transaction.
func (s *Service) CreateWorkspace(ctx context.Context, p auth.Principal, name, description string) (*models.Workspace, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	name, err := cleanName(name, "workspace")
	if err != nil {
		return nil, err
	}
	if description, err = cleanDescription(description); err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionCreateWorkspace, p); err != nil {
		return nil, err
	}

	now := s.clock()
	ws := &models.Workspace{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		OwnerID:     p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	general := &models.Channel{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		Name:        models.GeneralChannelName,
		CreatedBy:   p.UserID,
		CreatedAt:   now,
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Workspaces().Create(ctx, ws); err != nil {
			return err
		}
		if err := tx.Workspaces().AddMember(ctx, &models.WorkspaceMember{
			WorkspaceID: ws.ID, UserID: p.UserID, Role: models.RoleOwner, JoinedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.Channels().Create(ctx, general); err != nil {
			return err
		}
		return tx.Channels().AddMember(ctx, &models.ChannelMember{
			ChannelID: general.ID, UserID: p.UserID, JoinedAt: now,
		})
	})
	if err != nil {
		return nil, s.fail("create workspace", err)
	}
	return ws, nil
}

func (s *Service) ListWorkspaces(ctx context.Context, p auth.Principal) ([]WorkspaceView, error) {
	out := make([]WorkspaceView, 0)
	if !p.Authenticated() {
		return out, nil
	}
	rows, err := s.store.Workspaces().ListForUser(ctx, p.UserID)
	if err != nil {
		return nil, s.fail("list workspaces", err)
	}
	for _, r := range rows {
		out = append(out, WorkspaceView{Workspace: r.Workspace, Role: r.Member.Role})
	}
	return out, nil
}

// GetWorkspace returns nil unless the caller is a member.
func (s *Service) GetWorkspace(ctx context.Context, p auth.Principal, workspaceID uuid.UUID) (*WorkspaceView, error) {
	role, ok, err := s.authz.WorkspaceRole(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("get workspace role", err)
	}
	if !ok {
		return nil, nil
	}
	ws, err := s.store.Workspaces().GetByID(ctx, workspaceID)
	if err != nil {
		return nil, s.fail("get workspace", err)
	}
	if ws == nil {
		return nil, nil
	}
	return &WorkspaceView{Workspace: *ws, Role: role}, nil
}

// UpdateWorkspace changes the fields that are non-nil. Owners and admins only.
func (s *Service) UpdateWorkspace(ctx context.Context, p auth.Principal, workspaceID uuid.UUID, name, description *string) (*models.Workspace, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	ws, err := s.store.Workspaces().GetByID(ctx, workspaceID)
	if err != nil {
		return nil, s.fail("get workspace", err)
	}
	if ws == nil {
		return nil, apperr.ErrWorkspaceNotFound
	}
	role, err := s.authz.RequireWorkspaceMember(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("check membership", err)
	}
	if !role.CanManage() {
		return nil, apperr.Forbidden("only owners and admins can edit the workspace")
	}
	if name != nil {
		if ws.Name, err = cleanName(*name, "workspace"); err != nil {
			return nil, err
		}
	}
	if description != nil {
		if ws.Description, err = cleanDescription(*description); err != nil {
			return nil, err
		}
	}
	ws.UpdatedAt = s.clock()
	if err := s.store.Workspaces().Update(ctx, ws); err != nil {
		return nil, s.fail("update workspace", err)
	}
	return ws, nil
}

// DeleteWorkspace removes the workspace and everything in it. Owner only.
func (s *Service) DeleteWorkspace(ctx context.Context, p auth.Principal, workspaceID uuid.UUID) error {
	if err := requireAuth(p); err != nil {
		return err
	}
	ws, err := s.store.Workspaces().GetByID(ctx, workspaceID)
	if err != nil {
		return s.fail("get workspace", err)
	}
	if ws == nil {
		return apperr.ErrWorkspaceNotFound
	}
	role, err := s.authz.RequireWorkspaceMember(ctx, workspaceID, p.UserID)
	if err != nil {
		return s.fail("check membership", err)
	}
	if role != models.RoleOwner {
		return apperr.Forbidden("only the workspace owner can delete it")
	}
	members, err := s.store.Workspaces().ListMembers(ctx, workspaceID)
	if err != nil {
		return s.fail("list workspace members", err)
	}
	memberIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.UserID)
	}
	// Collected before the cascade; afterwards there is nothing to list.
	scopes, err := s.conversationsOf(ctx, workspaceID, memberIDs...)
	if err != nil {
		return s.fail("list workspace conversations", err)
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		return tx.Workspaces().DeleteCascade(ctx, workspaceID)
	})
	if err != nil {
		return s.fail("delete workspace", err)
	}
	for _, id := range scopes {
		s.publisher.CloseScope(id)
	}
	return nil
}

func (s *Service) ListWorkspaceMembers(ctx context.Context, p auth.Principal, workspaceID uuid.UUID) ([]MemberView, error) {
	out := make([]MemberView, 0)
	_, ok, err := s.authz.WorkspaceRole(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("get workspace role", err)
	}
	if !ok {
		return out, nil
	}
	members, err := s.store.Workspaces().ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, s.fail("list workspace members", err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, s.fail("load members", err)
	}
	for _, m := range members {
		u, found := users[m.UserID]
		if !found {
			continue
		}
		out = append(out, MemberView{User: u, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return out, nil
}

// RemoveWorkspaceMember removes target from the workspace together with
// their channel memberships and notification settings. Anyone may remove
// themselves except the owner; owners remove anyone else, admins remove
// plain members only.
func (s *Service) RemoveWorkspaceMember(ctx context.Context, p auth.Principal, workspaceID, target uuid.UUID) error {
	if err := requireAuth(p); err != nil {
		return err
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
		return apperr.InvalidOperation("user is not a member of this workspace")
	}
	if targetRole == models.RoleOwner {
		return apperr.InvalidOperation("the workspace owner cannot be removed")
	}
	if target != p.UserID {
		if !actorRole.CanManage() {
			return apperr.Forbidden("only owners and admins can remove members")
		}
		if actorRole == models.RoleAdmin && targetRole == models.RoleAdmin {
			return apperr.Forbidden("only the owner can remove an admin")
		}
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		_, err := tx.Workspaces().RemoveMemberCascade(ctx, workspaceID, target)
		return err
	})
	if err != nil {
		return s.fail("remove workspace member", err)
	}
	// Every conversation in the workspace, public channels and the target's
	// own DMs included, stopped being readable to them.
	scopes, err := s.conversationsOf(ctx, workspaceID, target)
	if err != nil {
		return s.fail("list workspace conversations", err)
	}
	for _, id := range scopes {
		s.publisher.Evict(id, target)
	}
	return nil
}

// conversationsOf returns the ids of every channel in the workspace plus
// the DMs any of users take part in, without duplicates.
func (s *Service) conversationsOf(ctx context.Context, workspaceID uuid.UUID, users ...uuid.UUID) ([]uuid.UUID, error) {
	channels, err := s.store.Channels().ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(channels))
	out := make([]uuid.UUID, 0, len(channels))
	for _, ch := range channels {
		seen[ch.ID] = true
		out = append(out, ch.ID)
	}
	for _, u := range users {
		dms, err := s.store.DirectMessages().ListForUser(ctx, workspaceID, u)
		if err != nil {
			return nil, err
		}
		for _, dm := range dms {
			if !seen[dm.ID] {
				seen[dm.ID] = true
				out = append(out, dm.ID)
			}
		}
	}
	return out, nil
}
