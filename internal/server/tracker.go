package server

import (
	"sync"
)

// RoomTracker records which rooms each live connection has joined. It
// makes userJoined idempotent per connection and hands disconnect the
// exact set of broadcast groups to unsubscribe from. Persisted
// membership is never touched here.
type RoomTracker struct {
	mu     sync.Mutex
	joined map[*Client]map[string]struct{}
}

func NewRoomTracker() *RoomTracker {
	return &RoomTracker{
		joined: make(map[*Client]map[string]struct{}),
	}
}

// JoinIfNew records the (connection, room) pair and reports whether it
// was new. Only a true return should trigger the join side effects.
func (t *RoomTracker) JoinIfNew(c *Client, roomId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rooms, ok := t.joined[c]
	if ok {
		if _, joined := rooms[roomId]; joined {
			return false
		}
	} else {
		rooms = make(map[string]struct{})
		t.joined[c] = rooms
	}

	rooms[roomId] = struct{}{}
	return true
}

// Release forgets a single room for the connection, so an explicit
// leave followed by a rejoin is seen as new again.
func (t *RoomTracker) Release(c *Client, roomId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rooms, ok := t.joined[c]; ok {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(t.joined, c)
		}
	}
}

// ReleaseRoom forgets a room across every connection, used when the
// room is deleted.
func (t *RoomTracker) ReleaseRoom(roomId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c, rooms := range t.joined {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(t.joined, c)
		}
	}
}

// ReleaseAll returns and clears every room the connection had joined.
// A second call for the same connection returns an empty set.
func (t *RoomTracker) ReleaseAll(c *Client) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	rooms := t.joined[c]
	delete(t.joined, c)

	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	return ids
}
