package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type InviteStore struct {
	q querier
}

const inviteColumns = `id, workspace_id, email, token, invited_by, expires_at, used_at, created_at`

func scanInvite(row pgx.Row) (*models.Invite, error) {
	var inv models.Invite
	err := row.Scan(
		&inv.ID,
		&inv.WorkspaceID,
		&inv.Email,
		&inv.Token,
		&inv.InvitedBy,
		&inv.ExpiresAt,
		&inv.UsedAt,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InviteStore) Create(ctx context.Context, inv *models.Invite) error {
	query := `
		INSERT INTO invites (id, workspace_id, email, token, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query, inv.ID, inv.WorkspaceID, inv.Email, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (s *InviteStore) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	inv, err := scanInvite(s.q.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Invite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM invites
		WHERE workspace_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.q.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]models.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return invites, nil
}

// MarkUsed is the single-use guard: only one redeemer can flip used_at.
func (s *InviteStore) MarkUsed(ctx context.Context, inviteID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx, `UPDATE invites SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, inviteID, at)
	if err != nil {
		return false, fmt.Errorf("mark invite used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
