package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type channelRepo struct{ s *Store }

func (r channelRepo) nameTaken(ch *models.Channel) bool {
	for _, existing := range r.s.st.channels {
		if existing.ID != ch.ID && existing.WorkspaceID == ch.WorkspaceID && strings.EqualFold(existing.Name, ch.Name) {
			return true
		}
	}
	return false
}

func (r channelRepo) Create(ctx context.Context, ch *models.Channel) error {
	defer r.s.lock()()
	if r.nameTaken(ch) {
		return repository.ErrConflict
	}
	r.s.st.channels[ch.ID] = *ch
	return nil
}

func (r channelRepo) GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	defer r.s.lock()()
	ch, ok := r.s.st.channels[channelID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (r channelRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Channel, error) {
	defer r.s.lock()()
	out := make([]models.Channel, 0)
	for _, ch := range r.s.st.channels {
		if ch.WorkspaceID == workspaceID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (r channelRepo) Update(ctx context.Context, ch *models.Channel) error {
	defer r.s.lock()()
	if _, ok := r.s.st.channels[ch.ID]; !ok {
		return nil
	}
	if r.nameTaken(ch) {
		return repository.ErrConflict
	}
	r.s.st.channels[ch.ID] = *ch
	return nil
}

// deleteChannelDependents removes notification settings and memberships.
func deleteChannelDependents(st *state, channelID uuid.UUID) {
	for key := range st.notifications {
		if key.a == channelID {
			delete(st.notifications, key)
		}
	}
	for key := range st.chMembers {
		if key.a == channelID {
			delete(st.chMembers, key)
		}
	}
}

func (r channelRepo) DeleteCascade(ctx context.Context, channelID uuid.UUID) error {
	defer r.s.lock()()
	deleteChannelDependents(r.s.st, channelID)
	delete(r.s.st.channels, channelID)
	return nil
}

func (r channelRepo) AddMember(ctx context.Context, m *models.ChannelMember) error {
	defer r.s.lock()()
	key := pairKey{m.ChannelID, m.UserID}
	if _, ok := r.s.st.chMembers[key]; ok {
		return repository.ErrConflict
	}
	r.s.st.chMembers[key] = *m
	return nil
}

func (r channelRepo) RemoveMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	defer r.s.lock()()
	key := pairKey{channelID, userID}
	if _, ok := r.s.st.chMembers[key]; !ok {
		return false, nil
	}
	delete(r.s.st.chMembers, key)
	return true, nil
}

func (r channelRepo) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	defer r.s.lock()()
	_, ok := r.s.st.chMembers[pairKey{channelID, userID}]
	return ok, nil
}

func (r channelRepo) ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error) {
	defer r.s.lock()()
	out := make([]models.ChannelMember, 0)
	for key, m := range r.s.st.chMembers {
		if key.a == channelID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].JoinedAt, out[i].UserID, out[j].JoinedAt, out[j].UserID)
	})
	return out, nil
}

func (r channelRepo) MemberChannelIDs(ctx context.Context, workspaceID, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	defer r.s.lock()()
	out := make(map[uuid.UUID]bool)
	for key := range r.s.st.chMembers {
		if key.b != userID {
			continue
		}
		if ch, ok := r.s.st.channels[key.a]; ok && ch.WorkspaceID == workspaceID {
			out[key.a] = true
		}
	}
	return out, nil
}
