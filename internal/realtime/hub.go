// Package realtime pushes conversation events to websocket subscribers.
//
// Each conversation (channel or DM) gets a room, created on first
// subscription and run by its own goroutine. A room releases itself once
// its last client leaves, so the number of goroutines tracks the number of
// watched conversations, not every conversation ever opened. Publishing to
// a conversation nobody watches is a no-op.
//
// Read access is checked when a socket subscribes. When access is later
// revoked (a member is removed, a channel or workspace deleted) the service
// calls Evict or CloseScope, which the room handles before any event
// published after it, so a revoked client never sees a later message.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/metrics"
	"go.uber.org/zap"
)

const (
	EventMessageCreated  = "message.created"
	EventMessageUpdated  = "message.updated"
	EventMessageDeleted  = "message.deleted"
	EventReactionToggled = "reaction.toggled"
	EventTyping          = "typing"
)

// ErrHubClosed is returned by Serve after Close.
var ErrHubClosed = errors.New("realtime hub closed")

type Event struct {
	Type    string    `json:"type"`
	ScopeID uuid.UUID `json:"scope_id"`
	Payload any       `json:"payload"`
}

// Publisher is what the service layer depends on.
type Publisher interface {
	Publish(scopeID uuid.UUID, evt Event)
	// Evict disconnects userID's sockets on scopeID.
	Evict(scopeID, userID uuid.UUID)
	// CloseScope disconnects every socket on scopeID.
	CloseScope(scopeID uuid.UUID)
}

type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]*room
	closed  bool
	origins map[string]bool
	logger  *zap.Logger
}

// NewHub accepts websocket upgrades from allowedOrigins; an empty list
// allows any origin.
func NewHub(logger *zap.Logger, allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Hub{rooms: make(map[uuid.UUID]*room), origins: origins, logger: logger}
}

func (h *Hub) getRoom(scopeID uuid.UUID) (*room, error) {
	h.mu.RLock()
	r, closed := h.rooms[scopeID], h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrHubClosed
	}
	if r != nil {
		return r, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if r = h.rooms[scopeID]; r != nil {
		return r, nil
	}
	r = newRoom(h, scopeID)
	h.rooms[scopeID] = r
	go r.run()
	return r, nil
}

func (h *Hub) lookup(scopeID uuid.UUID) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[scopeID]
}

// join registers c with the room for scopeID. A room that released itself
// between lookup and registration is replaced by a fresh one.
func (h *Hub) join(scopeID uuid.UUID, c *Client) error {
	for {
		r, err := h.getRoom(scopeID)
		if err != nil {
			return err
		}
		c.room = r
		select {
		case r.register <- c:
			return nil
		case <-r.done:
		}
	}
}

// release forgets r once its goroutine has decided to exit.
func (h *Hub) release(r *room) {
	h.mu.Lock()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
	}
	h.mu.Unlock()
}

// Publish never blocks the caller: when a room's queue is full the event
// is dropped and logged.
func (h *Hub) Publish(scopeID uuid.UUID, evt Event) {
	r := h.lookup(scopeID)
	if r == nil {
		return
	}

	evt.ScopeID = scopeID
	b, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("marshal realtime event", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	select {
	case r.broadcast <- b:
		metrics.RealtimeEventsTotal.WithLabelValues(evt.Type).Inc()
	case <-r.done:
	default:
		h.logger.Warn("realtime room queue full, dropping event",
			zap.Stringer("scope_id", scopeID),
			zap.String("type", evt.Type),
		)
	}
}

// Evict blocks until the room has dropped userID's clients. Events queued
// before the call may still be delivered; none published after it are.
func (h *Hub) Evict(scopeID, userID uuid.UUID) {
	if r := h.lookup(scopeID); r != nil {
		r.evictUser(userID)
	}
}

// CloseScope drops every client of scopeID, e.g. when the conversation is
// deleted.
func (h *Hub) CloseScope(scopeID uuid.UUID) {
	if r := h.lookup(scopeID); r != nil {
		r.evictUser(uuid.Nil)
	}
}

// Close disconnects every subscriber and refuses new ones. Used on
// shutdown, before the HTTP server drains.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()
	for _, r := range rooms {
		r.evictUser(uuid.Nil)
	}
}

func (h *Hub) Online(scopeID uuid.UUID) int {
	r := h.lookup(scopeID)
	if r == nil {
		return 0
	}
	return r.Online()
}

// roomCount reports how many rooms are live.
func (h *Hub) roomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

type room struct {
	id         uuid.UUID
	hub        *Hub
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	// evict carries a user id; uuid.Nil means everyone.
	evict     chan uuid.UUID
	broadcast chan []byte
	// done is closed when run returns. Senders select on it so they never
	// block on a room that is gone.
	done   chan struct{}
	online int32
}

func newRoom(h *Hub, id uuid.UUID) *room {
	return &room{
		id:         id,
		hub:        h,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		evict:      make(chan uuid.UUID),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (r *room) run() {
	defer close(r.done)
	for {
		select {
		case c := <-r.register:
			r.clients[c] = true
			metrics.WSConnections.Inc()
			r.updateOnline()
		case c := <-r.unregister:
			if _, ok := r.clients[c]; ok {
				r.drop(c)
			}
		case userID := <-r.evict:
			for c := range r.clients {
				if userID == uuid.Nil || c.userID == userID {
					r.drop(c)
				}
			}
		case msg := <-r.broadcast:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer; its write pump exits when send closes
					r.drop(c)
				}
			}
		}
		if len(r.clients) == 0 {
			// Leave the map before done closes so a concurrent join
			// retries against a new room.
			r.hub.release(r)
			return
		}
	}
}

func (r *room) evictUser(userID uuid.UUID) {
	select {
	case r.evict <- userID:
	case <-r.done:
	}
}

func (r *room) leave(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

func (r *room) drop(c *Client) {
	delete(r.clients, c)
	close(c.send)
	metrics.WSConnections.Dec()
	r.updateOnline()
}

func (r *room) updateOnline() {
	atomic.StoreInt32(&r.online, int32(len(r.clients)))
}

func (r *room) Online() int { return int(atomic.LoadInt32(&r.online)) }
