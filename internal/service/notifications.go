package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
	"go.uber.org/zap"
)

// notifyBatch caps how many messages one poll returns per channel. Anything
// beyond it is picked up by the next poll.
const notifyBatch = 50

// SetChannelNotifications turns notifications for one channel on or off.
// A new row starts its watermark at now, so history is never replayed.
func (s *Service) SetChannelNotifications(ctx context.Context, p auth.Principal, channelID uuid.UUID, enabled bool) (*models.ChannelNotification, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	access, ch, err := s.authz.ChannelAccess(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("check channel access", err)
	}
	if ch == nil {
		return nil, apperr.ErrChannelNotFound
	}
	if !access.CanRead {
		if _, err := s.authz.RequireWorkspaceMember(ctx, ch.WorkspaceID, p.UserID); err != nil {
			return nil, s.fail("check membership", err)
		}
		return nil, apperr.ErrNotChannelMember
	}
	now := s.clock()
	err = s.store.Notifications().Upsert(ctx, &models.ChannelNotification{
		ChannelID: channelID,
		UserID:    p.UserID,
		Enabled:   enabled,
		LastSeen:  now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, s.fail("upsert channel notification", err)
	}
	n, err := s.store.Notifications().Get(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("get channel notification", err)
	}
	return n, nil
}

// GetChannelNotifications returns the caller's setting, defaulting to
// disabled. Nil if the caller cannot read the channel.
func (s *Service) GetChannelNotifications(ctx context.Context, p auth.Principal, channelID uuid.UUID) (*models.ChannelNotification, error) {
	access, _, err := s.authz.ChannelAccess(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("check channel access", err)
	}
	if !access.CanRead {
		return nil, nil
	}
	n, err := s.store.Notifications().Get(ctx, channelID, p.UserID)
	if err != nil {
		return nil, s.fail("get channel notification", err)
	}
	if n == nil {
		n = &models.ChannelNotification{ChannelID: channelID, UserID: p.UserID}
	}
	return n, nil
}

// GetUnnotifiedMessages collects, for every channel the caller enabled and
// can still read, the messages from others past the watermark, then
// advances each watermark to the last one returned. A failure between
// the read and the advance means the next poll repeats them; nothing is lost.
//
// The watermark is a (created_at, id) position, the same keyset the
// timeline pages with. A timestamp alone would skip the rest of a batch
// cut off in the middle of messages created in the same instant.
func (s *Service) GetUnnotifiedMessages(ctx context.Context, p auth.Principal) ([]MessageView, error) {
	if !p.Authenticated() {
		return []MessageView{}, nil
	}
	settings, err := s.store.Notifications().ListEnabled(ctx, p.UserID)
	if err != nil {
		return nil, s.fail("list channel notifications", err)
	}
	var collected []models.Message
	for _, n := range settings {
		access, _, err := s.authz.ChannelAccess(ctx, n.ChannelID, p.UserID)
		if err != nil {
			return nil, s.fail("check channel access", err)
		}
		if !access.CanRead {
			continue
		}
		mark := repository.Cursor{CreatedAt: n.LastSeen, ID: n.LastSeenID}
		msgs, err := s.store.Messages().ListChannelSince(ctx, n.ChannelID, mark, p.UserID, notifyBatch)
		if err != nil {
			return nil, s.fail("list unnotified messages", err)
		}
		if len(msgs) == 0 {
			continue
		}
		collected = append(collected, msgs...)
		last := msgs[len(msgs)-1]
		next := repository.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if err := s.store.Notifications().AdvanceWatermark(ctx, n.ChannelID, p.UserID, next); err != nil {
			// Already-collected messages are still returned; they will be
			// delivered again on the next poll.
			s.logger.Warn("advance notification watermark", zap.String("channel_id", n.ChannelID.String()), zap.Error(err))
		}
	}
	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].CreatedAt.Before(collected[j].CreatedAt)
	})
	return s.hydrate(ctx, collected)
}
