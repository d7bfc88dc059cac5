package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type inviteRepo struct{ s *Store }

func (r inviteRepo) Create(ctx context.Context, inv *models.Invite) error {
	defer r.s.lock()()
	for _, existing := range r.s.st.invites {
		if existing.Token == inv.Token {
			return repository.ErrConflict
		}
	}
	r.s.st.invites[inv.ID] = *inv
	return nil
}

func (r inviteRepo) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	defer r.s.lock()()
	for _, inv := range r.s.st.invites {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, nil
}

func (r inviteRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Invite, error) {
	defer r.s.lock()()
	out := make([]models.Invite, 0)
	for _, inv := range r.s.st.invites {
		if inv.WorkspaceID == workspaceID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

func (r inviteRepo) MarkUsed(ctx context.Context, inviteID uuid.UUID, at time.Time) (bool, error) {
	defer r.s.lock()()
	inv, ok := r.s.st.invites[inviteID]
	if !ok || inv.UsedAt != nil {
		return false, nil
	}
	inv.UsedAt = &at
	r.s.st.invites[inviteID] = inv
	return true, nil
}
