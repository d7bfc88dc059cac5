// Package memstore is an in-process implementation of the repository
// contracts. It backs STORE_DRIVER=memory and the service tests.
//
// One mutex guards all state. InTx holds it for the whole callback and
// restores a snapshot if the callback fails, which gives the same
// all-or-nothing behaviour as a Postgres transaction.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type pairKey struct {
	a, b uuid.UUID
}

type reactionKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
	emoji     string
}

type state struct {
	users         map[uuid.UUID]models.User
	workspaces    map[uuid.UUID]models.Workspace
	wsMembers     map[pairKey]models.WorkspaceMember
	channels      map[uuid.UUID]models.Channel
	chMembers     map[pairKey]models.ChannelMember
	dms           map[uuid.UUID]models.DirectMessage
	messages      map[uuid.UUID]models.Message
	reactions     map[reactionKey]models.Reaction
	invites       map[uuid.UUID]models.Invite
	notifications map[pairKey]models.ChannelNotification
}

func newState() *state {
	return &state{
		users:         make(map[uuid.UUID]models.User),
		workspaces:    make(map[uuid.UUID]models.Workspace),
		wsMembers:     make(map[pairKey]models.WorkspaceMember),
		channels:      make(map[uuid.UUID]models.Channel),
		chMembers:     make(map[pairKey]models.ChannelMember),
		dms:           make(map[uuid.UUID]models.DirectMessage),
		messages:      make(map[uuid.UUID]models.Message),
		reactions:     make(map[reactionKey]models.Reaction),
		invites:       make(map[uuid.UUID]models.Invite),
		notifications: make(map[pairKey]models.ChannelNotification),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies the maps. Values are structs; slices inside them are never
// mutated in place, so sharing them between snapshots is safe.
func (st *state) clone() *state {
	return &state{
		users:         cloneMap(st.users),
		workspaces:    cloneMap(st.workspaces),
		wsMembers:     cloneMap(st.wsMembers),
		channels:      cloneMap(st.channels),
		chMembers:     cloneMap(st.chMembers),
		dms:           cloneMap(st.dms),
		messages:      cloneMap(st.messages),
		reactions:     cloneMap(st.reactions),
		invites:       cloneMap(st.invites),
		notifications: cloneMap(st.notifications),
	}
}

type Store struct {
	st   *state
	mu   *sync.Mutex
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), mu: &sync.Mutex{}}
}

// lock acquires the store mutex unless the caller already holds it
// through InTx. Use as: defer s.lock()()
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// InTx runs fn with the store lock held and restores a snapshot if fn
// fails. A context cancelled by the time fn returns also rolls back, the
// way a Postgres commit on a dead context does, so the caller never sees
// an error for work that was kept.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &Store{st: s.st, mu: s.mu, inTx: true}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

func (s *Store) Users() repository.UserRepository                   { return userRepo{s} }
func (s *Store) Workspaces() repository.WorkspaceRepository         { return workspaceRepo{s} }
func (s *Store) Channels() repository.ChannelRepository             { return channelRepo{s} }
func (s *Store) DirectMessages() repository.DirectMessageRepository { return dmRepo{s} }
func (s *Store) Messages() repository.MessageRepository             { return messageRepo{s} }
func (s *Store) Reactions() repository.ReactionRepository           { return reactionRepo{s} }
func (s *Store) Invites() repository.InviteRepository               { return inviteRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository   { return notificationRepo{s} }

// before reports whether (t1, id1) sorts before (t2, id2).
func before(t1 time.Time, id1 uuid.UUID, t2 time.Time, id2 uuid.UUID) bool {
	if !t1.Equal(t2) {
		return t1.Before(t2)
	}
	return bytes.Compare(id1[:], id2[:]) < 0
}

func sortMessages(msgs []models.Message, desc bool) {
	sort.Slice(msgs, func(i, j int) bool {
		if desc {
			return before(msgs[j].CreatedAt, msgs[j].ID, msgs[i].CreatedAt, msgs[i].ID)
		}
		return before(msgs[i].CreatedAt, msgs[i].ID, msgs[j].CreatedAt, msgs[j].ID)
	})
}

func copyIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}
