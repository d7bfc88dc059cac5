package postgres

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/lalith-99/teamchat/internal/db"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

// testPool is nil when Docker is unavailable; every test skips then.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("teamchat"),
		tcpostgres.WithUsername("teamchat"),
		tcpostgres.WithPassword("password"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("postgres container unavailable, skipping integration tests: %s", err)
		os.Exit(m.Run())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}
	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("open pool: %v", err)
	}
	if _, err := db.Migrate(ctx, testPool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	if testPool == nil {
		t.Skip("postgres not available")
	}
	t.Cleanup(func() {
		_, err := testPool.Exec(context.Background(), `
			TRUNCATE reactions, messages, channel_notifications, channel_members, channels,
			         direct_messages, invites, workspace_members, workspaces, users`)
		require.NoError(t, err)
	})
	return New(testPool)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) (models.User, models.Workspace, models.Channel) {
	t.Helper()
	ctx := context.Background()
	u := models.User{ID: uuid.New(), Email: "a@acme.test", DisplayName: "A", CreatedAt: now}
	require.NoError(t, s.Users().Create(ctx, &u))
	ws := models.Workspace{ID: uuid.New(), Name: "Acme", OwnerID: u.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Workspaces().Create(ctx, &ws))
	require.NoError(t, s.Workspaces().AddMember(ctx, &models.WorkspaceMember{WorkspaceID: ws.ID, UserID: u.ID, Role: models.RoleOwner, JoinedAt: now}))
	ch := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "general", CreatedBy: u.ID, CreatedAt: now}
	require.NoError(t, s.Channels().Create(ctx, &ch))
	return u, ws, ch
}

func TestMigrateIsIdempotent(t *testing.T) {
	if testPool == nil {
		t.Skip("postgres not available")
	}
	applied, err := db.Migrate(context.Background(), testPool)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestInTxRollback(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, ws, _ := seed(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Store) error {
		ch := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "random", CreatedBy: ws.OwnerID, CreatedAt: now}
		require.NoError(t, tx.Channels().Create(ctx, &ch))
		return boom
	})
	require.ErrorIs(t, err, boom)

	channels, err := s.Channels().ListByWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestUniqueViolationsMapToConflict(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, ws, ch := seed(t, s)

	dup := models.Channel{ID: uuid.New(), WorkspaceID: ws.ID, Name: "GENERAL", CreatedBy: u.ID, CreatedAt: now}
	assert.ErrorIs(t, s.Channels().Create(ctx, &dup), repository.ErrConflict)

	require.NoError(t, s.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: ch.ID, UserID: u.ID, JoinedAt: now}))
	assert.ErrorIs(t, s.Channels().AddMember(ctx, &models.ChannelMember{ChannelID: ch.ID, UserID: u.ID, JoinedAt: now}), repository.ErrConflict)
}

func TestMessagesTimelineAndThread(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, ws, ch := seed(t, s)

	var top []uuid.UUID
	for i := 0; i < 3; i++ {
		m := models.Message{
			ID: uuid.New(), WorkspaceID: ws.ID, ChannelID: &ch.ID, SenderID: u.ID, Text: "hi",
			Attachments: []models.Attachment{{StorageRef: "ref", Name: "a.png", ContentType: "image/png", Size: 10}},
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.Messages().Create(ctx, &m))
		top = append(top, m.ID)
	}
	reply := models.Message{ID: uuid.New(), WorkspaceID: ws.ID, ChannelID: &ch.ID, SenderID: u.ID, Text: "re", ParentMessageID: &top[0], CreatedAt: now.Add(time.Minute)}
	require.NoError(t, s.Messages().Create(ctx, &reply))

	page, err := s.Messages().ListTimeline(ctx, models.ChannelScope(ch.ID), nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, top[2], page[0].ID)
	assert.Len(t, page[0].Attachments, 1)
	assert.Empty(t, page[0].LinkPreviews)

	rest, err := s.Messages().ListTimeline(ctx, models.ChannelScope(ch.ID), &repository.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, top[0], rest[0].ID)

	counts, err := s.Messages().CountReplies(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{top[0]: 1}, counts)

	require.NoError(t, s.Messages().SoftDelete(ctx, reply.ID, now.Add(2*time.Minute)))
	thread, err := s.Messages().ListThread(ctx, top[0], nil, 10)
	require.NoError(t, err)
	assert.Empty(t, thread)

	stored, err := s.Messages().GetByID(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Deleted())
}

func TestReactionToggle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, ws, ch := seed(t, s)
	m := models.Message{ID: uuid.New(), WorkspaceID: ws.ID, ChannelID: &ch.ID, SenderID: u.ID, Text: "hi", CreatedAt: now}
	require.NoError(t, s.Messages().Create(ctx, &m))

	rx := &models.Reaction{MessageID: m.ID, UserID: u.ID, Emoji: "🎉", CreatedAt: now}
	reacted, err := s.Reactions().Toggle(ctx, rx)
	require.NoError(t, err)
	assert.True(t, reacted)
	reacted, err = s.Reactions().Toggle(ctx, rx)
	require.NoError(t, err)
	assert.False(t, reacted)

	rows, err := s.Reactions().ListForMessages(ctx, []uuid.UUID{m.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDirectMessageParticipantKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, ws, _ := seed(t, s)
	other := uuid.New()

	dm := models.DirectMessage{ID: uuid.New(), WorkspaceID: ws.ID, Participants: []uuid.UUID{u.ID, other}, ParticipantKey: "k", CreatedAt: now}
	require.NoError(t, s.DirectMessages().Create(ctx, &dm))
	again := dm
	again.ID = uuid.New()
	assert.ErrorIs(t, s.DirectMessages().Create(ctx, &again), repository.ErrConflict)

	list, err := s.DirectMessages().ListForUser(ctx, ws.ID, other)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.ElementsMatch(t, []uuid.UUID{u.ID, other}, list[0].Participants)
}

func TestInviteMarkUsedOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, ws, _ := seed(t, s)

	inv := models.Invite{ID: uuid.New(), WorkspaceID: ws.ID, Email: "b@acme.test", Token: "tok", InvitedBy: u.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.Invites().Create(ctx, &inv))

	ok, err := s.Invites().MarkUsed(ctx, inv.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Invites().MarkUsed(ctx, inv.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatermarkIsMonotonic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, _, ch := seed(t, s)

	require.NoError(t, s.Notifications().Upsert(ctx, &models.ChannelNotification{ChannelID: ch.ID, UserID: u.ID, Enabled: true, LastSeen: now, UpdatedAt: now}))
	require.NoError(t, s.Notifications().AdvanceWatermark(ctx, ch.ID, u.ID, repository.Cursor{CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, s.Notifications().AdvanceWatermark(ctx, ch.ID, u.ID, repository.Cursor{CreatedAt: now.Add(time.Second)}))

	n, err := s.Notifications().Get(ctx, ch.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.True(t, n.LastSeen.Equal(now.Add(time.Minute)))
}
