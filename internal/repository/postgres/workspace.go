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

type WorkspaceStore struct {
	q querier
}

func (s *WorkspaceStore) Create(ctx context.Context, w *models.Workspace) error {
	query := `
		INSERT INTO workspaces (id, name, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.q.Exec(ctx, query, w.ID, w.Name, w.Description, w.OwnerID, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetByID(ctx context.Context, workspaceID uuid.UUID) (*models.Workspace, error) {
	query := `
		SELECT id, name, description, owner_id, created_at, updated_at
		FROM workspaces
		WHERE id = $1`

	var w models.Workspace
	err := s.q.QueryRow(ctx, query, workspaceID).Scan(
		&w.ID,
		&w.Name,
		&w.Description,
		&w.OwnerID,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &w, nil
}

func (s *WorkspaceStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]repository.WorkspaceWithMember, error) {
	query := `
		SELECT w.id, w.name, w.description, w.owner_id, w.created_at, w.updated_at,
		       m.workspace_id, m.user_id, m.role, m.joined_at
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = $1
		ORDER BY w.created_at, w.id`

	rows, err := s.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	out := make([]repository.WorkspaceWithMember, 0)
	for rows.Next() {
		var wm repository.WorkspaceWithMember
		if err := rows.Scan(
			&wm.Workspace.ID,
			&wm.Workspace.Name,
			&wm.Workspace.Description,
			&wm.Workspace.OwnerID,
			&wm.Workspace.CreatedAt,
			&wm.Workspace.UpdatedAt,
			&wm.Member.WorkspaceID,
			&wm.Member.UserID,
			&wm.Member.Role,
			&wm.Member.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, wm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return out, nil
}

func (s *WorkspaceStore) Update(ctx context.Context, w *models.Workspace) error {
	query := `
		UPDATE workspaces
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1`

	if _, err := s.q.Exec(ctx, query, w.ID, w.Name, w.Description, w.UpdatedAt); err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

// DeleteCascade deletes dependents leaf-first. Callers run it inside InTx.
func (s *WorkspaceStore) DeleteCascade(ctx context.Context, workspaceID uuid.UUID) error {
	steps := []struct {
		name  string
		query string
	}{
		{"reactions", `DELETE FROM reactions WHERE message_id IN (SELECT id FROM messages WHERE workspace_id = $1)`},
		{"messages", `DELETE FROM messages WHERE workspace_id = $1`},
		{"channel notifications", `DELETE FROM channel_notifications WHERE channel_id IN (SELECT id FROM channels WHERE workspace_id = $1)`},
		{"channel members", `DELETE FROM channel_members WHERE channel_id IN (SELECT id FROM channels WHERE workspace_id = $1)`},
		{"channels", `DELETE FROM channels WHERE workspace_id = $1`},
		{"direct messages", `DELETE FROM direct_messages WHERE workspace_id = $1`},
		{"invites", `DELETE FROM invites WHERE workspace_id = $1`},
		{"workspace members", `DELETE FROM workspace_members WHERE workspace_id = $1`},
		{"workspace", `DELETE FROM workspaces WHERE id = $1`},
	}
	for _, step := range steps {
		if _, err := s.q.Exec(ctx, step.query, workspaceID); err != nil {
			return fmt.Errorf("delete %s: %w", step.name, err)
		}
	}
	return nil
}
