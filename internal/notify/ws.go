package notify

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession wraps one connected client socket. gorilla/websocket allows only
// one concurrent writer, hence the mutex.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds live sessions keyed by account id. Two instances exist:
// one scoped to driver connections and one to generic user connections.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

// Add registers a session, closing any previous connection for the same id.
// It reports whether an existing session was replaced.
func (r *WSRegistry) Add(id string, conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[id]
	if ok {
		_ = old.conn.Close()
	}
	r.sessions[id] = &WSSession{conn: conn}
	return ok
}

// Remove drops the session only if it still owns the given connection. On a
// reconnect the replaced connection's reader must not tear down the fresh
// session Add just installed. It reports whether a session was removed.
func (r *WSRegistry) Remove(id string, conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.conn != conn {
		return false
	}
	_ = s.conn.Close()
	delete(r.sessions, id)
	return true
}

func (r *WSRegistry) Deliver(_ context.Context, recipientID, _ string, payload any) error {
	r.mu.RLock()
	s, ok := r.sessions[recipientID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoRecipient
	}
	return s.WriteJSON(payload)
}
