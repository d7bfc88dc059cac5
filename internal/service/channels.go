package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/repository"
)

type ChannelView struct {
	models.Channel
	IsMember bool `json:"is_member"`
}

func channelNameTaken(name string) error {
	return apperr.InvalidOperation(fmt.Sprintf("a channel named %q already exists", name))
}

// CreateChannel creates a channel and joins the caller to it.
func (s *Service) CreateChannel(ctx context.Context, p auth.Principal, workspaceID uuid.UUID, name, description string, isPrivate bool) (*models.Channel, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	name, err := cleanName(name, "channel")
	if err != nil {
		return nil, err
	}
	if description, err = cleanDescription(description); err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionCreateChannel, p); err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireWorkspaceMember(ctx, workspaceID, p.UserID); err != nil {
		return nil, s.fail("check membership", err)
	}

	now := s.clock()
	ch := &models.Channel{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   p.UserID,
		CreatedAt:   now,
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Channels().Create(ctx, ch); err != nil {
			return err
		}
		return tx.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: ch.ID, UserID: p.UserID, JoinedAt: now})
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, channelNameTaken(name)
	}
	if err != nil {
		return nil, s.fail("create channel", err)
	}
	return ch, nil
}

// ListChannels returns the public channels of the workspace plus the
// private ones the caller belongs to.
func (s *Service) ListChannels(ctx context.Context, p auth.Principal, workspaceID uuid.UUID) ([]ChannelView, error) {
	out := make([]ChannelView, 0)
	_, ok, err := s.authz.WorkspaceRole(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("get workspace role", err)
	}
	if !ok {
		return out, nil
	}
	channels, err := s.store.Channels().ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail("list channels", err)
	}
	joined, err := s.store.Channels().MemberChannelIDs(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("list channel memberships", err)
	}
	for _, ch := range channels {
		if ch.IsPrivate && !joined[ch.ID] {
			continue
		}
		out = append(out, ChannelView{Channel: ch, IsMember: joined[ch.ID]})
	}
	return out, nil
}

// GetChannel returns nil if the channel does not exist or the caller cannot read it.
func (s *Service) GetChannel(ctx context.Context, p auth.Principal, channelID uuid.UUID) (*ChannelView, error) {
	access, ch, err := s.authz.ChannelAccess(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("check channel access", err)
	}
	if !access.CanRead {
		return nil, nil
	}
	member, err := s.store.Channels().IsMember(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("check channel membership", err)
	}
	return &ChannelView{Channel: *ch, IsMember: member}, nil
}

// loadChannelForMutation returns the channel and the caller's workspace role.
func (s *Service) loadChannelForMutation(ctx context.Context, p auth.Principal, channelID uuid.UUID) (*models.Channel, models.Role, error) {
	if err := requireAuth(p); err != nil {
		return nil, "", err
	}
	ch, err := s.store.Channels().GetByID(ctx, channelID)
	if err != nil {
		return nil, "", s.fail("get channel", err)
	}
	if ch == nil {
		return nil, "", apperr.ErrChannelNotFound
	}
	role, err := s.authz.RequireWorkspaceMember(ctx, ch.WorkspaceID, p.UserID)
	if err != nil {
		return nil, "", s.fail("check membership", err)
	}
	return ch, role, nil
}

func canAdminChannel(ch *models.Channel, userID uuid.UUID, role models.Role) bool {
	return ch.CreatedBy == userID || role.CanManage()
}

// AddChannelMember lets any channel member bring in another workspace member.
func (s *Service) AddChannelMember(ctx context.Context, p auth.Principal, channelID, target uuid.UUID) error {
	ch, _, err := s.loadChannelForMutation(ctx, p, channelID)
	if err != nil {
		return err
	}
	member, err := s.store.Channels().IsMember(ctx, channelID, p.UserID)
	if err != nil {
		return s.fail("check channel membership", err)
	}
	if !member {
		return apperr.ErrNotChannelMember
	}
	if _, ok, err := s.authz.WorkspaceRole(ctx, ch.WorkspaceID, target); err != nil {
		return s.fail("get target role", err)
	} else if !ok {
		return apperr.InvalidReference("user is not a member of this workspace")
	}
	err = s.store.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: channelID, UserID: target, JoinedAt: s.clock()})
	if errors.Is(err, repository.ErrConflict) {
		return apperr.InvalidOperation("user is already a member of this channel")
	}
	if err != nil {
		return s.fail("add channel member", err)
	}
	return nil
}

// RemoveChannelMember is for the channel creator and workspace owners/admins.
func (s *Service) RemoveChannelMember(ctx context.Context, p auth.Principal, channelID, target uuid.UUID) error {
	ch, role, err := s.loadChannelForMutation(ctx, p, channelID)
	if err != nil {
		return err
	}
	if !canAdminChannel(ch, p.UserID, role) {
		return apperr.Forbidden("only the channel creator or a workspace admin can remove members")
	}
	return s.dropChannelMember(ctx, ch, target, apperr.InvalidOperation("user is not a member of this channel"))
}

// dropChannelMember removes the membership and the notification row in one
// transaction, returning notMember if there was nothing to remove. Leaving
// a private channel also ends the user's live subscription to it; a public
// one stays readable to every workspace member.
func (s *Service) dropChannelMember(ctx context.Context, ch *models.Channel, userID uuid.UUID, notMember error) error {
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		removed, err := tx.Channels().RemoveMember(ctx, ch.ID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return notMember
		}
		return tx.Notifications().Delete(ctx, ch.ID, userID)
	})
	if err != nil {
		return s.fail("remove channel member", err)
	}
	if ch.IsPrivate {
		s.publisher.Evict(ch.ID, userID)
	}
	return nil
}

func (s *Service) UpdateChannel(ctx context.Context, p auth.Principal, channelID uuid.UUID, name, description *string) (*models.Channel, error) {
	ch, role, err := s.loadChannelForMutation(ctx, p, channelID)
	if err != nil {
		return nil, err
	}
	if !canAdminChannel(ch, p.UserID, role) {
		return nil, apperr.Forbidden("only the channel creator or a workspace admin can edit the channel")
	}
	if name != nil {
		if ch.Name, err = cleanName(*name, "channel"); err != nil {
			return nil, err
		}
	}
	if description != nil {
		if ch.Description, err = cleanDescription(*description); err != nil {
			return nil, err
		}
	}
	err = s.store.Channels().Update(ctx, ch)
	if errors.Is(err, repository.ErrConflict) {
		return nil, channelNameTaken(ch.Name)
	}
	if err != nil {
		return nil, s.fail("update channel", err)
	}
	return ch, nil
}

// DeleteChannel removes the channel, its memberships and notification
// settings. Its messages stay in storage but are no longer reachable.
func (s *Service) DeleteChannel(ctx context.Context, p auth.Principal, channelID uuid.UUID) error {
	ch, role, err := s.loadChannelForMutation(ctx, p, channelID)
	if err != nil {
		return err
	}
	if !canAdminChannel(ch, p.UserID, role) {
		return apperr.Forbidden("only the channel creator or a workspace admin can delete the channel")
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		return tx.Channels().DeleteCascade(ctx, channelID)
	})
	if err != nil {
		return s.fail("delete channel", err)
	}
	s.publisher.CloseScope(channelID)
	return nil
}

// JoinChannel joins a public channel. Joining twice is not an error.
func (s *Service) JoinChannel(ctx context.Context, p auth.Principal, channelID uuid.UUID) error {
	ch, _, err := s.loadChannelForMutation(ctx, p, channelID)
	if err != nil {
		return err
	}
	if ch.IsPrivate {
		return apperr.Forbidden("private channels can only be joined by invitation")
	}
	err = s.store.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: channelID, UserID: p.UserID, JoinedAt: s.clock()})
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return s.fail("join channel", err)
	}
	return nil
}

func (s *Service) LeaveChannel(ctx context.Context, p auth.Principal, channelID uuid.UUID) error {
	ch, _, err := s.loadChannelForMutation(ctx, p, channelID)
	if err != nil {
		return err
	}
	return s.dropChannelMember(ctx, ch, p.UserID, apperr.ErrNotChannelMember)
}

func (s *Service) ListChannelMembers(ctx context.Context, p auth.Principal, channelID uuid.UUID) ([]models.UserSummary, error) {
	out := make([]models.UserSummary, 0)
	access, _, err := s.authz.ChannelAccess(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("check channel access", err)
	}
	if !access.CanRead {
		return out, nil
	}
	members, err := s.store.Channels().ListMembers(ctx, channelID)
	if err != nil {
		return nil, s.fail("list channel members", err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, s.fail("load channel members", err)
	}
	for _, m := range members {
		if u, ok := users[m.UserID]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
