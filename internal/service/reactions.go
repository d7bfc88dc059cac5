package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/realtime"
)

const maxEmojiLen = 64

type ReactionGroup struct {
	Emoji   string      `json:"emoji"`
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

// GroupReactions folds reaction rows into one group per emoji, in order of
// first appearance. Counts are never stored; this is the only source.
func GroupReactions(rows []models.Reaction) []ReactionGroup {
	groups := make([]ReactionGroup, 0)
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji, UserIDs: []uuid.UUID{}})
		}
		groups[i].Count++
		groups[i].UserIDs = append(groups[i].UserIDs, r.UserID)
	}
	return groups
}

type ReactionEvent struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	Reacted   bool      `json:"reacted"`
}

// ToggleReaction adds the caller's emoji reaction or removes it if present.
// It returns whether the caller has reacted afterwards. Retrying a toggle
// flips it again.
func (s *Service) ToggleReaction(ctx context.Context, p auth.Principal, messageID uuid.UUID, emoji string) (bool, error) {
	if err := requireAuth(p); err != nil {
		return false, err
	}
	if err := s.limit(ctx, ratelimit.ActionAddReaction, p); err != nil {
		return false, err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiLen {
		return false, apperr.InvalidArg("invalid emoji")
	}
	m, _, err := s.loadLiveMessage(ctx, p, messageID)
	if err != nil {
		return false, err
	}
	if _, err := s.authz.RequireWrite(ctx, m.Scope(), p.UserID); err != nil {
		return false, s.fail("check write access", err)
	}
	reacted, err := s.store.Reactions().Toggle(ctx, &models.Reaction{
		MessageID: m.ID,
		UserID:    p.UserID,
		Emoji:     emoji,
		CreatedAt: s.clock(),
	})
	if err != nil {
		return false, s.fail("toggle reaction", err)
	}
	s.publish(m.Scope(), realtime.EventReactionToggled, ReactionEvent{MessageID: m.ID, UserID: p.UserID, Emoji: emoji, Reacted: reacted})
	return reacted, nil
}
