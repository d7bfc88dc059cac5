package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
)

type reactionRepo struct{ s *Store }

func (r reactionRepo) Toggle(ctx context.Context, rx *models.Reaction) (bool, error) {
	defer r.s.lock()()
	key := reactionKey{rx.MessageID, rx.UserID, rx.Emoji}
	if _, ok := r.s.st.reactions[key]; ok {
		delete(r.s.st.reactions, key)
		return false, nil
	}
	r.s.st.reactions[key] = *rx
	return true, nil
}

func (r reactionRepo) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.Reaction, error) {
	defer r.s.lock()()
	want := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = true
	}
	out := make([]models.Reaction, 0)
	for key, rx := range r.s.st.reactions {
		if want[key.messageID] {
			out = append(out, rx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].Emoji != out[j].Emoji {
			return out[i].Emoji < out[j].Emoji
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}
