package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/lalith-99/teamchat/internal/repository"
)

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, m *models.Message) error {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[m.ID]; ok {
		return repository.ErrConflict
	}
	r.s.st.messages[m.ID] = *m
	return nil
}

func (r messageRepo) GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	defer r.s.lock()()
	m, ok := r.s.st.messages[messageID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func inScope(m models.Message, scope models.Scope) bool {
	if scope.IsChannel() {
		return m.ChannelID != nil && *m.ChannelID == scope.ChannelID
	}
	return m.DMID != nil && *m.DMID == scope.DMID
}

func (r messageRepo) ListTimeline(ctx context.Context, scope models.Scope, after *repository.Cursor, limit int) ([]models.Message, error) {
	defer r.s.lock()()
	out := make([]models.Message, 0)
	for _, m := range r.s.st.messages {
		m := m // per-iteration copy (pre-Go 1.22 loopvar semantics)
		if m.Deleted() || m.ParentMessageID != nil || !inScope(m, scope) {
			continue
		}
		// newest first, so "after" the cursor means older than it
		if after != nil && !before(m.CreatedAt, m.ID, after.CreatedAt, after.ID) {
			continue
		}
		out = append(out, m)
	}
	sortMessages(out, true)
	return truncate(out, limit), nil
}

func (r messageRepo) ListThread(ctx context.Context, parentID uuid.UUID, after *repository.Cursor, limit int) ([]models.Message, error) {
	defer r.s.lock()()
	out := make([]models.Message, 0)
	for _, m := range r.s.st.messages {
		m := m // per-iteration copy (pre-Go 1.22 loopvar semantics)
		if m.Deleted() || m.ParentMessageID == nil || *m.ParentMessageID != parentID {
			continue
		}
		if after != nil && !before(after.CreatedAt, after.ID, m.CreatedAt, m.ID) {
			continue
		}
		out = append(out, m)
	}
	sortMessages(out, false)
	return truncate(out, limit), nil
}

func (r messageRepo) CountReplies(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	defer r.s.lock()()
	want := make(map[uuid.UUID]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID]int)
	for _, m := range r.s.st.messages {
		m := m // per-iteration copy (pre-Go 1.22 loopvar semantics)
		if m.Deleted() || m.ParentMessageID == nil || !want[*m.ParentMessageID] {
			continue
		}
		out[*m.ParentMessageID]++
	}
	return out, nil
}

func (r messageRepo) ListPinned(ctx context.Context, scope models.Scope) ([]models.Message, error) {
	defer r.s.lock()()
	out := make([]models.Message, 0)
	for _, m := range r.s.st.messages {
		m := m // per-iteration copy (pre-Go 1.22 loopvar semantics)
		if m.Pinned && !m.Deleted() && inScope(m, scope) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(*out[j].PinnedAt, out[j].ID, *out[i].PinnedAt, out[i].ID)
	})
	return out, nil
}

func (r messageRepo) ListChannelSince(ctx context.Context, channelID uuid.UUID, after repository.Cursor, excludeSender uuid.UUID, limit int) ([]models.Message, error) {
	defer r.s.lock()()
	out := make([]models.Message, 0)
	for _, m := range r.s.st.messages {
		m := m // per-iteration copy (pre-Go 1.22 loopvar semantics)
		if m.Deleted() || m.ChannelID == nil || *m.ChannelID != channelID {
			continue
		}
		if m.SenderID == excludeSender || !before(after.CreatedAt, after.ID, m.CreatedAt, m.ID) {
			continue
		}
		out = append(out, m)
	}
	sortMessages(out, false)
	return truncate(out, limit), nil
}

func (r messageRepo) UpdateText(ctx context.Context, messageID uuid.UUID, text string, editedAt time.Time) error {
	defer r.s.lock()()
	m, ok := r.s.st.messages[messageID]
	if !ok {
		return nil
	}
	m.Text = text
	m.EditedAt = &editedAt
	r.s.st.messages[messageID] = m
	return nil
}

func (r messageRepo) SetPinned(ctx context.Context, messageID uuid.UUID, pinned bool, by uuid.UUID, at time.Time) error {
	defer r.s.lock()()
	m, ok := r.s.st.messages[messageID]
	if !ok {
		return nil
	}
	m.Pinned = pinned
	if pinned {
		m.PinnedBy = &by
		m.PinnedAt = &at
	} else {
		m.PinnedBy = nil
		m.PinnedAt = nil
	}
	r.s.st.messages[messageID] = m
	return nil
}

func (r messageRepo) SoftDelete(ctx context.Context, messageID uuid.UUID, at time.Time) error {
	defer r.s.lock()()
	m, ok := r.s.st.messages[messageID]
	if !ok || m.Deleted() {
		return nil
	}
	m.DeletedAt = &at
	r.s.st.messages[messageID] = m
	return nil
}

func truncate(msgs []models.Message, limit int) []models.Message {
	if limit > 0 && len(msgs) > limit {
		return msgs[:limit]
	}
	return msgs
}
