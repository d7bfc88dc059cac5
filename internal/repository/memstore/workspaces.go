package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type workspaceRepo struct{ s *Store }

func (r workspaceRepo) Create(ctx context.Context, w *models.Workspace) error {
	defer r.s.lock()()
	if _, ok := r.s.st.workspaces[w.ID]; ok {
		return repository.ErrConflict
	}
	r.s.st.workspaces[w.ID] = *w
	return nil
}

func (r workspaceRepo) GetByID(ctx context.Context, workspaceID uuid.UUID) (*models.Workspace, error) {
	defer r.s.lock()()
	w, ok := r.s.st.workspaces[workspaceID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r workspaceRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]repository.WorkspaceWithMember, error) {
	defer r.s.lock()()
	out := make([]repository.WorkspaceWithMember, 0)
	for key, m := range r.s.st.wsMembers {
		if key.b != userID {
			continue
		}
		w, ok := r.s.st.workspaces[key.a]
		if !ok {
			continue
		}
		out = append(out, repository.WorkspaceWithMember{Workspace: w, Member: m})
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].Workspace.CreatedAt, out[i].Workspace.ID, out[j].Workspace.CreatedAt, out[j].Workspace.ID)
	})
	return out, nil
}

func (r workspaceRepo) Update(ctx context.Context, w *models.Workspace) error {
	defer r.s.lock()()
	if _, ok := r.s.st.workspaces[w.ID]; !ok {
		return nil
	}
	r.s.st.workspaces[w.ID] = *w
	return nil
}

func (r workspaceRepo) DeleteCascade(ctx context.Context, workspaceID uuid.UUID) error {
	defer r.s.lock()()
	st := r.s.st

	for id, m := range st.messages {
		if m.WorkspaceID != workspaceID {
			continue
		}
		for key := range st.reactions {
			if key.messageID == id {
				delete(st.reactions, key)
			}
		}
		delete(st.messages, id)
	}
	for id, ch := range st.channels {
		if ch.WorkspaceID != workspaceID {
			continue
		}
		deleteChannelDependents(st, id)
		delete(st.channels, id)
	}
	for id, dm := range st.dms {
		if dm.WorkspaceID == workspaceID {
			delete(st.dms, id)
		}
	}
	for id, inv := range st.invites {
		if inv.WorkspaceID == workspaceID {
			delete(st.invites, id)
		}
	}
	for key := range st.wsMembers {
		if key.a == workspaceID {
			delete(st.wsMembers, key)
		}
	}
	delete(st.workspaces, workspaceID)
	return nil
}

func (r workspaceRepo) AddMember(ctx context.Context, m *models.WorkspaceMember) error {
	defer r.s.lock()()
	key := pairKey{m.WorkspaceID, m.UserID}
	if _, ok := r.s.st.wsMembers[key]; ok {
		return repository.ErrConflict
	}
	r.s.st.wsMembers[key] = *m
	return nil
}

func (r workspaceRepo) GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error) {
	defer r.s.lock()()
	m, ok := r.s.st.wsMembers[pairKey{workspaceID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r workspaceRepo) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]models.WorkspaceMember, error) {
	defer r.s.lock()()
	out := make([]models.WorkspaceMember, 0)
	for key, m := range r.s.st.wsMembers {
		if key.a == workspaceID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].JoinedAt, out[i].UserID, out[j].JoinedAt, out[j].UserID)
	})
	return out, nil
}

func (r workspaceRepo) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role models.Role) error {
	defer r.s.lock()()
	key := pairKey{workspaceID, userID}
	m, ok := r.s.st.wsMembers[key]
	if !ok {
		return nil
	}
	m.Role = role
	r.s.st.wsMembers[key] = m
	return nil
}

func (r workspaceRepo) RemoveMemberCascade(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error) {
	defer r.s.lock()()
	st := r.s.st
	key := pairKey{workspaceID, userID}
	if _, ok := st.wsMembers[key]; !ok {
		return false, nil
	}
	for id, ch := range st.channels {
		if ch.WorkspaceID != workspaceID {
			continue
		}
		delete(st.chMembers, pairKey{id, userID})
		delete(st.notifications, pairKey{id, userID})
	}
	delete(st.wsMembers, key)
	return true, nil
}
