package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/repository"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// PageRequest asks for the page after Cursor. An empty Cursor starts at the
// beginning; Limit <= 0 means DefaultPageSize.
type PageRequest struct {
	Cursor string
	Limit  int
}

type Page[T any] struct {
	Items          []T    `json:"items"`
	ContinueCursor string `json:"continue_cursor"`
	IsDone         bool   `json:"is_done"`
}

func emptyPage[T any]() *Page[T] {
	return &Page[T]{Items: make([]T, 0), IsDone: true}
}

func (r PageRequest) size() int {
	switch {
	case r.Limit <= 0:
		return DefaultPageSize
	case r.Limit > MaxPageSize:
		return MaxPageSize
	}
	return r.Limit
}

// Cursors are base64url("<unix-nanos>:<uuid>") of the last item returned.
//
// Why keyset instead of OFFSET?
//   - OFFSET rescans every skipped row, so page 200 costs 200 pages.
//   - New messages shift OFFSET positions between requests; a reader
//     paging back through history would see duplicates or miss rows.
//   - (created_at, id) is unique and matches the timeline index, so the
//     next page is an index seek from the last row returned.
//
// The id half matters: two messages can share a timestamp, and a cursor
// on time alone would skip one of them at a page boundary.
//
// The token is opaque to clients so the encoding can change without an
// API version bump.
func encodeCursor(createdAt time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d:%s", createdAt.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*repository.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	invalid := apperr.InvalidArg("invalid cursor")
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, invalid
	}
	nanos, idPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, invalid
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, invalid
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return nil, invalid
	}
	return &repository.Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
