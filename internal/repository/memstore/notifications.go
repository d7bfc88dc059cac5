package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r notificationRepo) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelNotification, error) {
	defer r.s.lock()()
	n, ok := r.s.st.notifications[pairKey{channelID, userID}]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r notificationRepo) Upsert(ctx context.Context, n *models.ChannelNotification) error {
	defer r.s.lock()()
	key := pairKey{n.ChannelID, n.UserID}
	existing, ok := r.s.st.notifications[key]
	if !ok {
		r.s.st.notifications[key] = *n
		return nil
	}
	existing.Enabled = n.Enabled
	existing.UpdatedAt = n.UpdatedAt
	r.s.st.notifications[key] = existing
	return nil
}

func (r notificationRepo) ListEnabled(ctx context.Context, userID uuid.UUID) ([]models.ChannelNotification, error) {
	defer r.s.lock()()
	out := make([]models.ChannelNotification, 0)
	for key, n := range r.s.st.notifications {
		if key.b == userID && n.Enabled {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r notificationRepo) AdvanceWatermark(ctx context.Context, channelID, userID uuid.UUID, to repository.Cursor) error {
	defer r.s.lock()()
	key := pairKey{channelID, userID}
	n, ok := r.s.st.notifications[key]
	if !ok || !before(n.LastSeen, n.LastSeenID, to.CreatedAt, to.ID) {
		return nil
	}
	n.LastSeen, n.LastSeenID = to.CreatedAt, to.ID
	r.s.st.notifications[key] = n
	return nil
}

func (r notificationRepo) Delete(ctx context.Context, channelID, userID uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.st.notifications, pairKey{channelID, userID})
	return nil
}
