package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4 << 10
)

type Client struct {
	room   *room
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

// inbound is the only thing clients may send: typing indicators.
// Messages go through the HTTP API so they pass the same checks.
type inbound struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// Serve upgrades the request and subscribes userID to scopeID until the
// connection closes. The caller must already have checked read access.
//
// recheck, when set, runs once more after the client has joined the room.
// Access revoked between the caller's check and the join is not seen by
// Evict, because there was nothing to evict yet; the second check closes
// that window.
func (h *Hub) Serve(w http.ResponseWriter, req *http.Request, scopeID, userID uuid.UUID, recheck func() bool) error {
	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}

	c := &Client{conn: conn, send: make(chan []byte, 64), userID: userID}
	if err := h.join(scopeID, c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		_ = conn.Close()
		return err
	}
	if recheck != nil && !recheck() {
		c.room.leave(c)
	}

	go c.writePump()
	c.readPump(h)
	return nil
}

func (h *Hub) checkOrigin(req *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := req.Header.Get("Origin")
	return origin == "" || h.origins[origin]
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		c.room.leave(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type != EventTyping {
			continue
		}
		h.Publish(c.room.id, Event{
			Type:    EventTyping,
			Payload: map[string]any{"user_id": c.userID, "is_typing": in.IsTyping},
		})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
