package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cdiaz/chatwire/internal/database"
	"github.com/cdiaz/chatwire/internal/stats"
)

const dbTimeout = 10 * time.Second

// Metric names registered by the chat server.
const (
	MetricActiveConnections = "NumActiveConnections"
	MetricActiveRooms       = "NumActiveRooms"
	MetricMessages          = "NumMessages"
	MetricPrivateMessages   = "NumPrivateMessages"
)

// ChatServer is the live-event hub. It owns the connection registry,
// the per-connection room tracker and the broadcast groups, and routes
// every inbound event through persistence and out to the affected
// connections.
type ChatServer struct {
	log         *log.Logger
	db          database.ChatRepository
	stats       stats.StatsProvider
	registry    *ConnectionRegistry
	tracker     *RoomTracker
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	// groups maps a room id to the set of connections currently
	// subscribed to its broadcasts.
	groups     map[string]map[*Client]struct{}
	groupsLock sync.RWMutex
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:      logger,
		db:       db,
		stats:    sp,
		registry: NewConnectionRegistry(),
		tracker:  NewRoomTracker(),
		clients:  make(map[*Client]struct{}),
		groups:   make(map[string]map[*Client]struct{}),
	}

	sp.RegisterMetric(MetricActiveConnections)
	sp.RegisterMetric(MetricActiveRooms)
	sp.RegisterMetric(MetricMessages)
	sp.RegisterMetric(MetricPrivateMessages)

	return cs, nil
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr(MetricActiveConnections)
}

func (cs *ChatServer) DeregisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(MetricActiveConnections)
}

// subscribe adds the connection to a room's broadcast group, creating
// the group on first use.
func (cs *ChatServer) subscribe(c *Client, roomId string) {
	cs.groupsLock.Lock()
	defer cs.groupsLock.Unlock()

	if cs.groups[roomId] == nil {
		cs.groups[roomId] = make(map[*Client]struct{})
		cs.stats.Incr(MetricActiveRooms)
	}
	cs.groups[roomId][c] = struct{}{}
}

func (cs *ChatServer) unsubscribe(c *Client, roomId string) {
	cs.groupsLock.Lock()
	defer cs.groupsLock.Unlock()

	group, ok := cs.groups[roomId]
	if !ok {
		return
	}

	delete(group, c)
	if len(group) == 0 {
		delete(cs.groups, roomId)
		cs.stats.Decr(MetricActiveRooms)
	}
}

// groupMembers returns a snapshot of the room's broadcast group.
func (cs *ChatServer) groupMembers(roomId string) []*Client {
	cs.groupsLock.RLock()
	defer cs.groupsLock.RUnlock()

	group := cs.groups[roomId]
	members := make([]*Client, 0, len(group))
	for c := range group {
		members = append(members, c)
	}
	return members
}

// EvictGroup drops a room's broadcast group entirely, used when the
// room itself is deleted through the REST layer.
func (cs *ChatServer) EvictGroup(roomId string) {
	cs.groupsLock.Lock()
	defer cs.groupsLock.Unlock()

	if _, ok := cs.groups[roomId]; ok {
		delete(cs.groups, roomId)
		cs.stats.Decr(MetricActiveRooms)
	}

	cs.tracker.ReleaseRoom(roomId)
}

// broadcastGroup queues the event on every member of the room's
// broadcast group except skip. Targets are resolved at emit time.
func (cs *ChatServer) broadcastGroup(roomId string, ev *ServerEvent, skip *Client) {
	for _, c := range targetsExcept(cs.groupMembers(roomId), skip) {
		c.queueEvent(ev)
	}
}

// broadcastAll queues the event on every connected client.
func (cs *ChatServer) broadcastAll(ev *ServerEvent) {
	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.queueEvent(ev)
	}
}

// targetsExcept filters skip out of a fan-out target snapshot.
func targetsExcept(clients []*Client, skip *Client) []*Client {
	targets := make([]*Client, 0, len(clients))
	for _, c := range clients {
		if c == skip {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

// Shutdown stops every live connection and waits for them to
// deregister, or returns the context's error.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.conn.Close()
	}
	cs.clientsLock.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		cs.clientsLock.Lock()
		remaining := len(cs.clients)
		cs.clientsLock.Unlock()
		if remaining == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
