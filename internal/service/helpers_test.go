package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/blob"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/repository/memstore"
)

// stepClock moves forward one millisecond per reading so every write gets a
// strictly later timestamp.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeBlob struct {
	broken map[string]bool
}

func (b *fakeBlob) GenerateUploadURL(ctx context.Context) (*blob.Upload, error) {
	ref := "uploads/" + uuid.NewString()
	return &blob.Upload{URL: "https://blob.test/put/" + ref, StorageRef: ref, ExpiresAt: time.Now().Add(15 * time.Minute)}, nil
}

func (b *fakeBlob) GetURL(ctx context.Context, ref string) (string, error) {
	if b.broken[ref] {
		return "", errors.New("object store unavailable")
	}
	return "https://blob.test/get/" + ref, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []realtime.Event
	evicted []eviction
}

// eviction records a revoked subscription; a nil user means the whole scope.
type eviction struct {
	scope uuid.UUID
	user  uuid.UUID
}

func (p *recordingPublisher) Evict(scopeID, userID uuid.UUID) {
	p.mu.Lock()
	p.evicted = append(p.evicted, eviction{scopeID, userID})
	p.mu.Unlock()
}

func (p *recordingPublisher) CloseScope(scopeID uuid.UUID) {
	p.Evict(scopeID, uuid.Nil)
}

func (p *recordingPublisher) evictions() []eviction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]eviction(nil), p.evicted...)
}

func (p *recordingPublisher) Publish(scopeID uuid.UUID, evt realtime.Event) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	svc   *Service
	store *memstore.Store
	clock *stepClock
	blob  *fakeBlob
	pub   *recordingPublisher
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	e := &testEnv{
		store: memstore.New(),
		clock: &stepClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)},
		blob:  &fakeBlob{broken: map[string]bool{}},
		pub:   &recordingPublisher{},
	}
	d := Deps{
		Store:     e.store,
		Blob:      e.blob,
		Publisher: e.pub,
		Logger:    zap.NewNop(),
		JWTSecret: "test-secret",
		Now:       e.clock.Now,
	}
	for _, m := range mutate {
		m(&d)
	}
	e.svc = New(d)
	return e
}

// user inserts an account directly, skipping bcrypt.
func (e *testEnv) user(t *testing.T, name string) auth.Principal {
	t.Helper()
	u := &models.User{
		ID:          uuid.New(),
		Email:       name + "@example.com",
		DisplayName: name,
		CreatedAt:   e.clock.Now(),
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return auth.Principal{UserID: u.ID, Email: u.Email}
}

// workspace creates a workspace owned by owner and returns it with #general.
func (e *testEnv) workspace(t *testing.T, owner auth.Principal, name string) (*models.Workspace, *models.Channel) {
	t.Helper()
	ctx := context.Background()
	ws, err := e.svc.CreateWorkspace(ctx, owner, name, "")
	require.NoError(t, err)
	channels, err := e.store.Channels().ListByWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	return ws, &channels[0]
}

func (e *testEnv) addMember(t *testing.T, ws *models.Workspace, p auth.Principal, role models.Role) {
	t.Helper()
	require.NoError(t, e.store.Workspaces().AddMember(context.Background(), &models.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: p.UserID, Role: role, JoinedAt: e.clock.Now(),
	}))
}

func (e *testEnv) send(t *testing.T, p auth.Principal, ws *models.Workspace, scope models.Scope, text string) *models.Message {
	t.Helper()
	in := SendMessageInput{WorkspaceID: ws.ID, Text: text}
	if scope.IsChannel() {
		in.ChannelID = &scope.ChannelID
	} else {
		in.DMID = &scope.DMID
	}
	m, err := e.svc.SendMessage(context.Background(), p, in)
	require.NoError(t, err)
	return m
}

func assertCode(t *testing.T, want apperr.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperr.CodeOf(err), "error: %v", err)
}

func messageIDs(views []MessageView) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}
