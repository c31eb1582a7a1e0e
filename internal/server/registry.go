package server

import (
	"sync"
)

// ConnectionRegistry maps a username to every live connection that
// user currently owns, so a private message reaches all open tabs and
// devices. Process-local only; disconnects discard entries.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]map[*Client]struct{}),
	}
}

func (r *ConnectionRegistry) Register(username string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[username] == nil {
		r.conns[username] = make(map[*Client]struct{})
	}
	r.conns[username][c] = struct{}{}
}

// Unregister removes the connection; once a user's set empties the
// entry itself is dropped. No-op for unknown users or connections.
func (r *ConnectionRegistry) Unregister(username string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[username]
	if !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, username)
	}
}

// Lookup returns a snapshot of the user's live connections. Fan-out
// targets are computed against this snapshot at emit time.
func (r *ConnectionRegistry) Lookup(username string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[username]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}
