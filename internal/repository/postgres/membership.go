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

// Workspace and channel membership rows. Inserts are not idempotent: a
// duplicate (parent, user) pair surfaces as ErrConflict and the service
// decides whether that is an error for the caller.

func (s *WorkspaceStore) AddMember(ctx context.Context, m *models.WorkspaceMember) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.q.Exec(ctx, query, m.WorkspaceID, m.UserID, m.Role, m.JoinedAt); err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("add workspace member: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error) {
	query := `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`

	var m models.WorkspaceMember
	err := s.q.QueryRow(ctx, query, workspaceID, userID).Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace member: %w", err)
	}
	return &m, nil
}

func (s *WorkspaceStore) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]models.WorkspaceMember, error) {
	query := `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY joined_at, user_id`

	rows, err := s.q.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close()

	members := make([]models.WorkspaceMember, 0)
	for rows.Next() {
		var m models.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan workspace member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspace members: %w", err)
	}
	return members, nil
}

func (s *WorkspaceStore) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role models.Role) error {
	query := `
		UPDATE workspace_members
		SET role = $3
		WHERE workspace_id = $1 AND user_id = $2`

	if _, err := s.q.Exec(ctx, query, workspaceID, userID, role); err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) RemoveMemberCascade(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error) {
	if _, err := s.q.Exec(ctx, `
		DELETE FROM channel_notifications
		WHERE user_id = $2 AND channel_id IN (SELECT id FROM channels WHERE workspace_id = $1)`,
		workspaceID, userID); err != nil {
		return false, fmt.Errorf("delete member notifications: %w", err)
	}
	if _, err := s.q.Exec(ctx, `
		DELETE FROM channel_members
		WHERE user_id = $2 AND channel_id IN (SELECT id FROM channels WHERE workspace_id = $1)`,
		workspaceID, userID); err != nil {
		return false, fmt.Errorf("delete member channels: %w", err)
	}

	tag, err := s.q.Exec(ctx, `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	if err != nil {
		return false, fmt.Errorf("remove workspace member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ChannelStore) AddMember(ctx context.Context, m *models.ChannelMember) error {
	query := `
		INSERT INTO channel_members (channel_id, user_id, joined_at)
		VALUES ($1, $2, $3)`

	if _, err := s.q.Exec(ctx, query, m.ChannelID, m.UserID, m.JoinedAt); err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("add channel member: %w", err)
	}
	return nil
}

func (s *ChannelStore) RemoveMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM channel_members
		WHERE channel_id = $1 AND user_id = $2`

	tag, err := s.q.Exec(ctx, query, channelID, userID)
	if err != nil {
		return false, fmt.Errorf("remove channel member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ChannelStore) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM channel_members WHERE channel_id = $1 AND user_id = $2)`

	var exists bool
	if err := s.q.QueryRow(ctx, query, channelID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check channel member: %w", err)
	}
	return exists, nil
}

func (s *ChannelStore) ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error) {
	query := `
		SELECT channel_id, user_id, joined_at
		FROM channel_members
		WHERE channel_id = $1
		ORDER BY joined_at, user_id`

	rows, err := s.q.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}
	defer rows.Close()

	members := make([]models.ChannelMember, 0)
	for rows.Next() {
		var m models.ChannelMember
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan channel member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel members: %w", err)
	}
	return members, nil
}

func (s *ChannelStore) MemberChannelIDs(ctx context.Context, workspaceID, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	query := `
		SELECT cm.channel_id
		FROM channel_members cm
		JOIN channels c ON c.id = cm.channel_id
		WHERE c.workspace_id = $1 AND cm.user_id = $2`

	rows, err := s.q.Query(ctx, query, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("list member channels: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member channel: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member channels: %w", err)
	}
	return out, nil
}
