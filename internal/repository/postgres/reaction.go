package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/teamchat/internal/models"
)

type ReactionStore struct {
	q querier
}

// Toggle is one statement: the CTE deletes an existing row and the insert
// only fires when nothing was deleted. Both halves see the same snapshot,
// and the primary key rejects a concurrent duplicate insert.
//
// Why not SELECT, then INSERT or DELETE?
//   - Two requests for the same (message, user, emoji) can both read
//     "absent" and both insert; one hits the primary key and the caller
//     sees an error for a plain double-click.
//   - A single statement needs no transaction and holds no lock across a
//     round trip.
//
// Result: RETURNING true means the reaction now exists. No row means it was
// removed, or a concurrent toggle inserted first and ON CONFLICT skipped
// ours; either way the caller ends up not having added one.
func (s *ReactionStore) Toggle(ctx context.Context, r *models.Reaction) (bool, error) {
	query := `
		WITH removed AS (
			DELETE FROM reactions
			WHERE message_id = $1 AND user_id = $2 AND emoji = $3
			RETURNING 1
		)
		INSERT INTO reactions (message_id, user_id, emoji, created_at)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (SELECT 1 FROM removed)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
		RETURNING true`

	var reacted bool
	err := s.q.QueryRow(ctx, query, r.MessageID, r.UserID, r.Emoji, r.CreatedAt).Scan(&reacted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("toggle reaction: %w", err)
	}
	return reacted, nil
}

func (s *ReactionStore) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.Reaction, error) {
	reactions := make([]models.Reaction, 0)
	if len(messageIDs) == 0 {
		return reactions, nil
	}

	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at, emoji, user_id`

	rows, err := s.q.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}
