// Package realtime implements the broadcast fan-out: one logical channel per
// conversation, delivering message events to every live subscriber except the
// publisher. The hub holds no durable state; a restart only drops
// subscriptions and clients recover by re-listing the conversation.
package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Hub coordinates websocket sessions and per-conversation channels.
type Hub struct {
	mu          sync.RWMutex
	sessions    map[string]*Connection
	channels    map[uuid.UUID]map[string]*Connection // conversationID -> sessionID -> connection
	sessionSubs map[string]map[uuid.UUID]struct{}    // sessionID -> subscribed conversationIDs
}

// NewHub constructs an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		sessions:    make(map[string]*Connection),
		channels:    make(map[uuid.UUID]map[string]*Connection),
		sessionSubs: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Attach registers a connection and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	h.sessionSubs[conn.ID] = make(map[uuid.UUID]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes a connection and all its subscriptions.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Subscribe adds the connection to the conversation's channel. Membership
// authorization happens before this call, at the transport layer.
func (h *Hub) Subscribe(conversationID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[conn.ID]; !ok {
		return
	}

	channel := h.channels[conversationID]
	if channel == nil {
		channel = make(map[string]*Connection)
		h.channels[conversationID] = channel
	}
	channel[conn.ID] = conn
	h.sessionSubs[conn.ID][conversationID] = struct{}{}
}

// Unsubscribe removes the connection from the conversation's channel.
func (h *Hub) Unsubscribe(conversationID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	h.unsubscribeLocked(conversationID, conn.ID)
	h.mu.Unlock()
}

// Publish fans payload out to every subscriber of the conversation except
// connections belonging to excludeUserID (the sender already holds the
// message). Returns the number of connections the payload was handed to;
// delivery past that point is best-effort.
func (h *Hub) Publish(conversationID uuid.UUID, payload []byte, excludeUserID uuid.UUID) int {
	h.mu.RLock()
	channel := h.channels[conversationID]
	if len(channel) == 0 {
		h.mu.RUnlock()
		return 0
	}

	delivered := 0
	for _, conn := range channel {
		if excludeUserID != uuid.Nil && conn.UserID == excludeUserID {
			continue
		}
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	h.mu.RUnlock()
	return delivered
}

// Close terminates all tracked connections and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.channels = make(map[uuid.UUID]map[string]*Connection)
	h.sessionSubs = make(map[string]map[uuid.UUID]struct{})
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "hub shutdown")
	}
}

func (h *Hub) detachLocked(sessionID string) {
	if _, ok := h.sessions[sessionID]; !ok {
		return
	}
	delete(h.sessions, sessionID)
	for conversationID := range h.sessionSubs[sessionID] {
		h.unsubscribeLocked(conversationID, sessionID)
	}
	delete(h.sessionSubs, sessionID)
}

func (h *Hub) unsubscribeLocked(conversationID uuid.UUID, sessionID string) {
	channel := h.channels[conversationID]
	if channel == nil {
		return
	}
	delete(channel, sessionID)
	if len(channel) == 0 {
		delete(h.channels, conversationID)
	}
	if subs, ok := h.sessionSubs[sessionID]; ok {
		delete(subs, conversationID)
	}
}
