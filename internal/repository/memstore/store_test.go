package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedWorkspace(t *testing.T, s *Store) (models.Workspace, models.Channel) {
	t.Helper()
	ctx := context.Background()
	owner := uuid.New()
	ws := models.Workspace{ID: uuid.New(), Name: "Acme", OwnerID: owner, CreatedAt: t0, UpdatedAt: t0}
	ch := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "general", CreatedBy: owner, CreatedAt: t0}
	require.NoError(t, s.Workspaces().Create(ctx, &ws))
	require.NoError(t, s.Workspaces().AddMember(ctx, &models.WorkspaceMember{WorkspaceID: ws.ID, UserID: owner, Role: models.RoleOwner, JoinedAt: t0}))
	require.NoError(t, s.Channels().Create(ctx, &ch))
	require.NoError(t, s.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: ch.ID, UserID: owner, JoinedAt: t0}))
	return ws, ch
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	ws, _ := seedWorkspace(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Store) error {
		extra := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "random", CreatedAt: t0}
		if err := tx.Channels().Create(ctx, &extra); err != nil {
			return err
		}
		// nested InTx joins the outer transaction
		return tx.InTx(ctx, func(inner repository.Store) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	channels, err := s.Channels().ListByWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestInTxRollsBackOnCancelledContext(t *testing.T) {
	s := New()
	ws, _ := seedWorkspace(t, s)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.InTx(ctx, func(tx repository.Store) error {
		extra := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "random", CreatedAt: t0}
		if err := tx.Channels().Create(ctx, &extra); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	channels, err := s.Channels().ListByWorkspace(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.Len(t, channels, 1, "the reported failure left nothing behind")
}

func TestChannelNameUniqueCaseInsensitive(t *testing.T) {
	s := New()
	ws, _ := seedWorkspace(t, s)
	dup := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "General", CreatedAt: t0}
	err := s.Channels().Create(context.Background(), &dup)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestTimelineKeyset(t *testing.T) {
	s := New()
	ctx := context.Background()
	ws, ch := seedWorkspace(t, s)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		m := models.Message{
			ID: uuid.New(), WorkspaceID: ws.ID, ChannelID: &ch.ID, SenderID: ws.OwnerID,
			Text: "m", CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.Messages().Create(ctx, &m))
		ids = append(ids, m.ID)
	}

	first, err := s.Messages().ListTimeline(ctx, models.ChannelScope(ch.ID), nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[4], first[0].ID)
	assert.Equal(t, ids[3], first[1].ID)

	last := first[1]
	next, err := s.Messages().ListTimeline(ctx, models.ChannelScope(ch.ID), &repository.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, 10)
	require.NoError(t, err)
	require.Len(t, next, 3)
	assert.Equal(t, ids[2], next[0].ID)
	assert.Equal(t, ids[0], next[2].ID)
}

func TestWatermarkNeverMovesBackwards(t *testing.T) {
	s := New()
	ctx := context.Background()
	ch, user := uuid.New(), uuid.New()
	repo := s.Notifications()

	require.NoError(t, repo.Upsert(ctx, &models.ChannelNotification{ChannelID: ch, UserID: user, Enabled: true, LastSeen: t0, UpdatedAt: t0}))
	require.NoError(t, repo.AdvanceWatermark(ctx, ch, user, repository.Cursor{CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, repo.AdvanceWatermark(ctx, ch, user, repository.Cursor{CreatedAt: t0.Add(time.Second)}))

	// re-enabling keeps the watermark
	require.NoError(t, repo.Upsert(ctx, &models.ChannelNotification{ChannelID: ch, UserID: user, Enabled: true, LastSeen: t0, UpdatedAt: t0.Add(time.Hour)}))

	n, err := repo.Get(ctx, ch, user)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, t0.Add(time.Minute), n.LastSeen)
}

func TestDeleteWorkspaceCascade(t *testing.T) {
	s := New()
	ctx := context.Background()
	ws, ch := seedWorkspace(t, s)

	m := models.Message{ID: uuid.New(), WorkspaceID: ws.ID, ChannelID: &ch.ID, SenderID: ws.OwnerID, Text: "hi", CreatedAt: t0}
	require.NoError(t, s.Messages().Create(ctx, &m))
	_, err := s.Reactions().Toggle(ctx, &models.Reaction{MessageID: m.ID, UserID: ws.OwnerID, Emoji: "👍", CreatedAt: t0})
	require.NoError(t, err)

	require.NoError(t, s.Workspaces().DeleteCascade(ctx, ws.ID))

	got, err := s.Workspaces().GetByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	msg, err := s.Messages().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, msg)
	rx, err := s.Reactions().ListForMessages(ctx, []uuid.UUID{m.ID})
	require.NoError(t, err)
	assert.Empty(t, rx)
	member, err := s.Channels().IsMember(ctx, ch.ID, ws.OwnerID)
	require.NoError(t, err)
	assert.False(t, member)
}
