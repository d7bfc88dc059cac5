package memstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	defer r.s.lock()()
	for _, existing := range r.s.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrConflict
		}
	}
	r.s.st.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.st.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r userRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	defer r.s.lock()()
	out := make(map[uuid.UUID]models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r userRepo) SetAvatar(ctx context.Context, userID uuid.UUID, ref string) error {
	defer r.s.lock()()
	u, ok := r.s.st.users[userID]
	if !ok {
		return nil
	}
	u.AvatarRef = ref
	r.s.st.users[userID] = u
	return nil
}
