package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type NotificationStore struct {
	q querier
}

func (s *NotificationStore) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelNotification, error) {
	query := `
		SELECT channel_id, user_id, enabled, last_seen, last_seen_id, updated_at
		FROM channel_notifications
		WHERE channel_id = $1 AND user_id = $2`

	var n models.ChannelNotification
	err := s.q.QueryRow(ctx, query, channelID, userID).Scan(&n.ChannelID, &n.UserID, &n.Enabled, &n.LastSeen, &n.LastSeenID, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel notification: %w", err)
	}
	return &n, nil
}

func (s *NotificationStore) Upsert(ctx context.Context, n *models.ChannelNotification) error {
	query := `
		INSERT INTO channel_notifications (channel_id, user_id, enabled, last_seen, last_seen_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel_id, user_id)
		DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`

	if _, err := s.q.Exec(ctx, query, n.ChannelID, n.UserID, n.Enabled, n.LastSeen, n.LastSeenID, n.UpdatedAt); err != nil {
		return fmt.Errorf("upsert channel notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListEnabled(ctx context.Context, userID uuid.UUID) ([]models.ChannelNotification, error) {
	query := `
		SELECT channel_id, user_id, enabled, last_seen, last_seen_id, updated_at
		FROM channel_notifications
		WHERE user_id = $1 AND enabled
		ORDER BY channel_id`

	rows, err := s.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list channel notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.ChannelNotification, 0)
	for rows.Next() {
		var n models.ChannelNotification
		if err := rows.Scan(&n.ChannelID, &n.UserID, &n.Enabled, &n.LastSeen, &n.LastSeenID, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan channel notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel notifications: %w", err)
	}
	return out, nil
}

// AdvanceWatermark is a conditional update so two concurrent polls can't
// move the watermark backwards. The row comparison orders the same way as
// ListChannelSince, so a batch that ends halfway through messages sharing
// one timestamp resumes at the next id, not the next timestamp.
func (s *NotificationStore) AdvanceWatermark(ctx context.Context, channelID, userID uuid.UUID, to repository.Cursor) error {
	query := `
		UPDATE channel_notifications
		SET last_seen = $3, last_seen_id = $4
		WHERE channel_id = $1 AND user_id = $2 AND (last_seen, last_seen_id) < ($3, $4)`

	if _, err := s.q.Exec(ctx, query, channelID, userID, to.CreatedAt, to.ID); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

func (s *NotificationStore) Delete(ctx context.Context, channelID, userID uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM channel_notifications WHERE channel_id = $1 AND user_id = $2`, channelID, userID); err != nil {
		return fmt.Errorf("delete channel notification: %w", err)
	}
	return nil
}
