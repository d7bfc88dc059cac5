package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type dmRepo struct{ s *Store }

func (r dmRepo) keyTaken(dm *models.DirectMessage) bool {
	for _, existing := range r.s.st.dms {
		if existing.ID != dm.ID && existing.WorkspaceID == dm.WorkspaceID && existing.ParticipantKey == dm.ParticipantKey {
			return true
		}
	}
	return false
}

func (r dmRepo) Create(ctx context.Context, dm *models.DirectMessage) error {
	defer r.s.lock()()
	if r.keyTaken(dm) {
		return repository.ErrConflict
	}
	stored := *dm
	stored.Participants = copyIDs(dm.Participants)
	r.s.st.dms[dm.ID] = stored
	return nil
}

func (r dmRepo) GetByID(ctx context.Context, dmID uuid.UUID) (*models.DirectMessage, error) {
	defer r.s.lock()()
	dm, ok := r.s.st.dms[dmID]
	if !ok {
		return nil, nil
	}
	dm.Participants = copyIDs(dm.Participants)
	return &dm, nil
}

func (r dmRepo) GetByParticipantKey(ctx context.Context, workspaceID uuid.UUID, key string) (*models.DirectMessage, error) {
	defer r.s.lock()()
	for _, dm := range r.s.st.dms {
		if dm.WorkspaceID == workspaceID && dm.ParticipantKey == key {
			dm.Participants = copyIDs(dm.Participants)
			return &dm, nil
		}
	}
	return nil, nil
}

func (r dmRepo) ListForUser(ctx context.Context, workspaceID, userID uuid.UUID) ([]models.DirectMessage, error) {
	defer r.s.lock()()
	out := make([]models.DirectMessage, 0)
	for _, dm := range r.s.st.dms {
		dm := dm // per-iteration copy (pre-Go 1.22 loopvar semantics)
		if dm.WorkspaceID == workspaceID && dm.HasParticipant(userID) {
			dm.Participants = copyIDs(dm.Participants)
			out = append(out, dm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

func (r dmRepo) UpdateParticipants(ctx context.Context, dm *models.DirectMessage) error {
	defer r.s.lock()()
	stored, ok := r.s.st.dms[dm.ID]
	if !ok {
		return nil
	}
	if r.keyTaken(dm) {
		return repository.ErrConflict
	}
	stored.Participants = copyIDs(dm.Participants)
	stored.ParticipantKey = dm.ParticipantKey
	r.s.st.dms[dm.ID] = stored
	return nil
}
