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

type DMStore struct {
	q querier
}

const dmColumns = `id, workspace_id, participants, participant_key, created_at`

func scanDM(row pgx.Row) (*models.DirectMessage, error) {
	var dm models.DirectMessage
	if err := row.Scan(&dm.ID, &dm.WorkspaceID, &dm.Participants, &dm.ParticipantKey, &dm.CreatedAt); err != nil {
		return nil, err
	}
	return &dm, nil
}

func (s *DMStore) Create(ctx context.Context, dm *models.DirectMessage) error {
	query := `
		INSERT INTO direct_messages (id, workspace_id, participants, participant_key, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q.Exec(ctx, query, dm.ID, dm.WorkspaceID, dm.Participants, dm.ParticipantKey, dm.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert dm: %w", err)
	}
	return nil
}

func (s *DMStore) GetByID(ctx context.Context, dmID uuid.UUID) (*models.DirectMessage, error) {
	dm, err := scanDM(s.q.QueryRow(ctx, `SELECT `+dmColumns+` FROM direct_messages WHERE id = $1`, dmID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dm: %w", err)
	}
	return dm, nil
}

func (s *DMStore) GetByParticipantKey(ctx context.Context, workspaceID uuid.UUID, key string) (*models.DirectMessage, error) {
	query := `SELECT ` + dmColumns + ` FROM direct_messages WHERE workspace_id = $1 AND participant_key = $2`

	dm, err := scanDM(s.q.QueryRow(ctx, query, workspaceID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dm by participants: %w", err)
	}
	return dm, nil
}

func (s *DMStore) ListForUser(ctx context.Context, workspaceID, userID uuid.UUID) ([]models.DirectMessage, error) {
	query := `
		SELECT ` + dmColumns + `
		FROM direct_messages
		WHERE workspace_id = $1 AND participants @> ARRAY[$2::uuid]
		ORDER BY created_at DESC, id DESC`

	rows, err := s.q.Query(ctx, query, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("list dms: %w", err)
	}
	defer rows.Close()

	dms := make([]models.DirectMessage, 0)
	for rows.Next() {
		dm, err := scanDM(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dm: %w", err)
		}
		dms = append(dms, *dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dms: %w", err)
	}
	return dms, nil
}

func (s *DMStore) UpdateParticipants(ctx context.Context, dm *models.DirectMessage) error {
	query := `
		UPDATE direct_messages
		SET participants = $2, participant_key = $3
		WHERE id = $1`

	if _, err := s.q.Exec(ctx, query, dm.ID, dm.Participants, dm.ParticipantKey); err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update dm participants: %w", err)
	}
	return nil
}
