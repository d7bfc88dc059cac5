package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/repository"
)

type DMView struct {
	models.DirectMessage
	Members []models.UserSummary `json:"members"`
}

// participantSet dedupes ids, adds self and sorts, so the same group of
// people always yields the same key.
func participantSet(self uuid.UUID, ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{self: true}
	out := []uuid.UUID{self}
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func participantKey(sorted []uuid.UUID) string {
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

// CreateDM returns the existing conversation for this participant set if
// there is one, otherwise creates it.
func (s *Service) CreateDM(ctx context.Context, p auth.Principal, workspaceID uuid.UUID, participants []uuid.UUID) (*models.DirectMessage, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionCreateDM, p); err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireWorkspaceMember(ctx, workspaceID, p.UserID); err != nil {
		return nil, s.fail("check membership", err)
	}
	set := participantSet(p.UserID, participants)
	if len(set) < 2 {
		return nil, apperr.InvalidArg("a direct message needs at least one other participant")
	}
	key := participantKey(set)

	var dm *models.DirectMessage
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		authz := NewAuthority(tx)
		for _, id := range set {
			if _, ok, err := authz.WorkspaceRole(ctx, workspaceID, id); err != nil {
				return err
			} else if !ok {
				return apperr.InvalidReference("every participant must be a member of this workspace")
			}
		}
		existing, err := tx.DirectMessages().GetByParticipantKey(ctx, workspaceID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			dm = existing
			return nil
		}
		dm = &models.DirectMessage{
			ID:             uuid.New(),
			WorkspaceID:    workspaceID,
			Participants:   set,
			ParticipantKey: key,
			CreatedAt:      s.clock(),
		}
		return tx.DirectMessages().Create(ctx, dm)
	})
	// Lost a race with a concurrent create; the winner's row is the answer.
	if errors.Is(err, repository.ErrConflict) {
		dm, err = s.store.DirectMessages().GetByParticipantKey(ctx, workspaceID, key)
		if err == nil && dm == nil {
			err = errors.New("dm vanished after conflict")
		}
	}
	if err != nil {
		return nil, s.fail("create dm", err)
	}
	return dm, nil
}

// AddDMParticipant grows the conversation in place. The new participant set
// must not match another existing conversation.
func (s *Service) AddDMParticipant(ctx context.Context, p auth.Principal, dmID, target uuid.UUID) (*models.DirectMessage, error) {
	if err := requireAuth(p); err != nil {
		return nil, err
	}
	ok, dm, err := s.authz.DMAccess(ctx, dmID, p.UserID)
	if err != nil {
		return nil, s.fail("check dm access", err)
	}
	if dm == nil {
		return nil, apperr.ErrConversationNotFound
	}
	if !ok {
		if _, err := s.authz.RequireWorkspaceMember(ctx, dm.WorkspaceID, p.UserID); err != nil {
			return nil, s.fail("check membership", err)
		}
		return nil, apperr.Forbidden("you are not a participant in this conversation")
	}
	if dm.HasParticipant(target) {
		return nil, apperr.InvalidOperation("user is already a participant")
	}
	if _, member, err := s.authz.WorkspaceRole(ctx, dm.WorkspaceID, target); err != nil {
		return nil, s.fail("get target role", err)
	} else if !member {
		return nil, apperr.InvalidReference("user is not a member of this workspace")
	}

	grown := append(append([]uuid.UUID{}, dm.Participants...), target)
	dm.Participants = participantSet(p.UserID, grown)
	dm.ParticipantKey = participantKey(dm.Participants)
	err = s.store.DirectMessages().UpdateParticipants(ctx, dm)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.InvalidOperation("a conversation with these participants already exists")
	}
	if err != nil {
		return nil, s.fail("update dm participants", err)
	}
	return dm, nil
}

func (s *Service) ListDMs(ctx context.Context, p auth.Principal, workspaceID uuid.UUID) ([]DMView, error) {
	out := make([]DMView, 0)
	_, ok, err := s.authz.WorkspaceRole(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("get workspace role", err)
	}
	if !ok {
		return out, nil
	}
	dms, err := s.store.DirectMessages().ListForUser(ctx, workspaceID, p.UserID)
	if err != nil {
		return nil, s.fail("list dms", err)
	}
	var ids []uuid.UUID
	for _, dm := range dms {
		ids = append(ids, dm.Participants...)
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, s.fail("load dm participants", err)
	}
	for _, dm := range dms {
		out = append(out, dmView(dm, users))
	}
	return out, nil
}

// GetDM returns nil unless the caller is a participant.
func (s *Service) GetDM(ctx context.Context, p auth.Principal, dmID uuid.UUID) (*DMView, error) {
	ok, dm, err := s.authz.DMAccess(ctx, dmID, p.UserID)
	if err != nil {
		return nil, s.fail("check dm access", err)
	}
	if !ok {
		return nil, nil
	}
	users, err := s.summaries(ctx, dm.Participants)
	if err != nil {
		return nil, s.fail("load dm participants", err)
	}
	v := dmView(*dm, users)
	return &v, nil
}

func dmView(dm models.DirectMessage, users map[uuid.UUID]models.UserSummary) DMView {
	v := DMView{DirectMessage: dm, Members: make([]models.UserSummary, 0, len(dm.Participants))}
	for _, id := range dm.Participants {
		if u, ok := users[id]; ok {
			v.Members = append(v.Members, u)
		}
	}
	return v
}
