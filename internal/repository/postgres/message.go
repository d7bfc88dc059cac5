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

type MessageStore struct {
	q querier
}

const messageColumns = `id, workspace_id, channel_id, dm_id, sender_id, text, attachments, link_previews,
	parent_message_id, pinned, pinned_by, pinned_at, edited_at, deleted_at, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.WorkspaceID,
		&m.ChannelID,
		&m.DMID,
		&m.SenderID,
		&m.Text,
		&m.Attachments,
		&m.LinkPreviews,
		&m.ParentMessageID,
		&m.Pinned,
		&m.PinnedBy,
		&m.PinnedAt,
		&m.EditedAt,
		&m.DeletedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	// jsonb 'null' scans to a nil slice; callers render [].
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	if m.LinkPreviews == nil {
		m.LinkPreviews = []models.LinkPreview{}
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *MessageStore) Create(ctx context.Context, m *models.Message) error {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	previews := m.LinkPreviews
	if previews == nil {
		previews = []models.LinkPreview{}
	}

	query := `
		INSERT INTO messages (id, workspace_id, channel_id, dm_id, sender_id, text,
			attachments, link_previews, parent_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.q.Exec(ctx, query,
		m.ID, m.WorkspaceID, m.ChannelID, m.DMID, m.SenderID, m.Text,
		attachments, previews, m.ParentMessageID, m.CreatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	m, err := scanMessage(s.q.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// scopeFilter picks the column and partial index for a conversation.
func scopeFilter(scope models.Scope) string {
	if scope.IsChannel() {
		return "channel_id = $1"
	}
	return "dm_id = $1"
}

// ListTimeline is a keyset scan over (created_at, id) descending, so the
// cursor predicate is a row comparison rather than an OFFSET.
func (s *MessageStore) ListTimeline(ctx context.Context, scope models.Scope, after *repository.Cursor, limit int) ([]models.Message, error) {
	var query string
	var args []any

	if after != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE ` + scopeFilter(scope) + ` AND parent_message_id IS NULL AND deleted_at IS NULL
			  AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`
		args = []any{scope.ID(), after.CreatedAt, after.ID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE ` + scopeFilter(scope) + ` AND parent_message_id IS NULL AND deleted_at IS NULL
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		args = []any{scope.ID(), limit}
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectMessages(rows)
}

func (s *MessageStore) ListThread(ctx context.Context, parentID uuid.UUID, after *repository.Cursor, limit int) ([]models.Message, error) {
	var query string
	var args []any

	if after != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE parent_message_id = $1 AND deleted_at IS NULL
			  AND (created_at, id) > ($2, $3)
			ORDER BY created_at, id
			LIMIT $4`
		args = []any{parentID, after.CreatedAt, after.ID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE parent_message_id = $1 AND deleted_at IS NULL
			ORDER BY created_at, id
			LIMIT $2`
		args = []any{parentID, limit}
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	return collectMessages(rows)
}

func (s *MessageStore) CountReplies(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int)
	if len(parentIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT parent_message_id, count(*)
		FROM messages
		WHERE parent_message_id = ANY($1) AND deleted_at IS NULL
		GROUP BY parent_message_id`

	rows, err := s.q.Query(ctx, query, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("count replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan reply count: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reply counts: %w", err)
	}
	return out, nil
}

func (s *MessageStore) ListPinned(ctx context.Context, scope models.Scope) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ` + scopeFilter(scope) + ` AND pinned AND deleted_at IS NULL
		ORDER BY pinned_at DESC, id DESC`

	rows, err := s.q.Query(ctx, query, scope.ID())
	if err != nil {
		return nil, fmt.Errorf("list pinned: %w", err)
	}
	return collectMessages(rows)
}

func (s *MessageStore) ListChannelSince(ctx context.Context, channelID uuid.UUID, after repository.Cursor, excludeSender uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND deleted_at IS NULL AND (created_at, id) > ($2, $3) AND sender_id <> $4
		ORDER BY created_at, id
		LIMIT $5`

	rows, err := s.q.Query(ctx, query, channelID, after.CreatedAt, after.ID, excludeSender, limit)
	if err != nil {
		return nil, fmt.Errorf("list channel since: %w", err)
	}
	return collectMessages(rows)
}

func (s *MessageStore) UpdateText(ctx context.Context, messageID uuid.UUID, text string, editedAt time.Time) error {
	if _, err := s.q.Exec(ctx, `UPDATE messages SET text = $2, edited_at = $3 WHERE id = $1`, messageID, text, editedAt); err != nil {
		return fmt.Errorf("update message text: %w", err)
	}
	return nil
}

func (s *MessageStore) SetPinned(ctx context.Context, messageID uuid.UUID, pinned bool, by uuid.UUID, at time.Time) error {
	query := `
		UPDATE messages
		SET pinned = $2,
		    pinned_by = CASE WHEN $2 THEN $3::uuid END,
		    pinned_at = CASE WHEN $2 THEN $4::timestamptz END
		WHERE id = $1`

	if _, err := s.q.Exec(ctx, query, messageID, pinned, by, at); err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	return nil
}

func (s *MessageStore) SoftDelete(ctx context.Context, messageID uuid.UUID, at time.Time) error {
	query := `UPDATE messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	if _, err := s.q.Exec(ctx, query, messageID, at); err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	return nil
}
