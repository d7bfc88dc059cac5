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

type ChannelStore struct {
	q querier
}

func (s *ChannelStore) Create(ctx context.Context, ch *models.Channel) error {
	// channels_by_workspace_name is on lower(name): "General" collides with "general".
	query := `
		INSERT INTO channels (id, workspace_id, name, description, is_private, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query, ch.ID, ch.WorkspaceID, ch.Name, ch.Description, ch.IsPrivate, ch.CreatedBy, ch.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	query := `
		SELECT id, workspace_id, name, description, is_private, created_by, created_at
		FROM channels
		WHERE id = $1`

	var ch models.Channel
	err := s.q.QueryRow(ctx, query, channelID).Scan(
		&ch.ID,
		&ch.WorkspaceID,
		&ch.Name,
		&ch.Description,
		&ch.IsPrivate,
		&ch.CreatedBy,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Channel, error) {
	query := `
		SELECT id, workspace_id, name, description, is_private, created_by, created_at
		FROM channels
		WHERE workspace_id = $1
		ORDER BY created_at, id`

	rows, err := s.q.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(
			&ch.ID,
			&ch.WorkspaceID,
			&ch.Name,
			&ch.Description,
			&ch.IsPrivate,
			&ch.CreatedBy,
			&ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}

func (s *ChannelStore) Update(ctx context.Context, ch *models.Channel) error {
	query := `
		UPDATE channels
		SET name = $2, description = $3
		WHERE id = $1`

	if _, err := s.q.Exec(ctx, query, ch.ID, ch.Name, ch.Description); err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}

// DeleteCascade leaves messages in place; they carry no foreign key to channels.
func (s *ChannelStore) DeleteCascade(ctx context.Context, channelID uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM channel_notifications WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("delete channel notifications: %w", err)
	}
	if _, err := s.q.Exec(ctx, `DELETE FROM channel_members WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("delete channel members: %w", err)
	}
	if _, err := s.q.Exec(ctx, `DELETE FROM channels WHERE id = $1`, channelID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}
