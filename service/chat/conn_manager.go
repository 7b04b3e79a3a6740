package chat

import (
	"sync"
)

// ConnManager is the connection registry: the single source of truth for
// "is user X reachable on this node". byID tracks every open connection
// (authenticated or not) for the liveness sweep; byUser maps an
// authenticated user to its one live connection.
//
// Single-active-session policy: Bind overwrites, last writer wins. The
// previous connection is orphaned, not closed; routing just stops targeting
// it. Multi-device would turn byUser into a set and fan Send out, but this
// node models one session per user.
type ConnManager struct {
	mu     sync.RWMutex
	byID   map[string]*WsConn
	byUser map[int64]*WsConn
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		byID:   make(map[string]*WsConn),
		byUser: make(map[int64]*WsConn),
	}
}

// Track registers a freshly opened connection for the liveness sweep.
func (m *ConnManager) Track(c *WsConn) {
	m.mu.Lock()
	m.byID[c.ID] = c
	m.mu.Unlock()
}

// Untrack drops the connection from the sweep set.
func (m *ConnManager) Untrack(c *WsConn) {
	m.mu.Lock()
	delete(m.byID, c.ID)
	m.mu.Unlock()
}

// Bind makes c the live connection for userID, replacing any previous one
// atomically.
func (m *ConnManager) Bind(userID int64, c *WsConn) {
	c.bindUser(userID)
	m.mu.Lock()
	m.byUser[userID] = c
	m.mu.Unlock()
}

func (m *ConnManager) Lookup(userID int64) (*WsConn, bool) {
	m.mu.RLock()
	c, ok := m.byUser[userID]
	m.mu.RUnlock()
	return c, ok
}

// Unbind removes the user's mapping. Idempotent: unbinding an absent user is
// a no-op.
func (m *ConnManager) Unbind(userID int64) {
	m.mu.Lock()
	delete(m.byUser, userID)
	m.mu.Unlock()
}

// UnbindConn removes the mapping only if c is still the bound connection,
// and reports whether it was. A stale connection dying after a rebind must
// not unmap the new one.
func (m *ConnManager) UnbindConn(userID int64, c *WsConn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byUser[userID]; ok && cur == c {
		delete(m.byUser, userID)
		return true
	}
	return false
}

// SendRaw writes an already-encoded frame to the user's live connection.
// Returns false when the user is offline or the connection is not writable;
// that is expected steady-state, not an error.
func (m *ConnManager) SendRaw(userID int64, data []byte) bool {
	c, ok := m.Lookup(userID)
	if !ok {
		return false
	}
	return c.Enqueue(data)
}

// Send encodes and delivers one frame to one user.
func (m *ConnManager) Send(userID int64, out *Outbound) bool {
	data, err := Encode(out)
	if err != nil {
		return false
	}
	return m.SendRaw(userID, data)
}

// Snapshot returns all tracked connections; the liveness sweep iterates it
// outside the lock.
func (m *ConnManager) Snapshot() []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WsConn, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close terminates every tracked connection; used on shutdown.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := make([]*WsConn, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.byID = make(map[string]*WsConn)
	m.byUser = make(map[int64]*WsConn)
	m.mu.Unlock()
	for _, c := range conns {
		c.terminate()
	}
}
