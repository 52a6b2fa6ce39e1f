package core

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
)

// Registry tracks live connections per identity and room membership.
// Presence is derived from it: a user is online iff it holds at least one connection.
//
// Lock order: Registry.mu before CallBook.mu.
type Registry struct {
	mu     sync.RWMutex
	conns  map[UserID]map[*Client]struct{}
	rooms  map[RoomID]*Room
	joined map[*Client]map[RoomID]struct{}
	closed bool
	log    *zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[UserID]map[*Client]struct{}),
		rooms:  make(map[RoomID]*Room),
		joined: make(map[*Client]map[RoomID]struct{}),
		log:    logger,
	}
}

// Connect registers an authenticated client and joins it to its personal room.
// The first connection of an identity broadcasts it online to everyone.
// Connecting an already registered client is a no-op.
func (r *Registry) Connect(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrHubClosed
	}
	if r.liveLocked(c) {
		return nil
	}
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}

	set, ok := r.conns[c.User]
	first := !ok
	if first {
		set = make(map[*Client]struct{})
		r.conns[c.User] = set
		metrics.OnlineUsers.Inc()
	}
	set[c] = struct{}{}
	r.joined[c] = make(map[RoomID]struct{})
	c.setState(StateActive)
	metrics.LiveConnections.Inc()

	r.joinLocked(c, PersonalRoom(c.User))

	r.log.Debug().
		Str("user_id", string(c.User)).
		Str("client_id", c.ID).
		Int("connections", len(set)).
		Msg("client connected")

	if first {
		r.broadcastLocked(presenceEvent(c.User, true))
	}
	return nil
}

// disconnect removes c and closes its event channel.
// When c was the identity's last connection, onLast runs under the write lock
// before the offline transition is broadcast. Returns false if c was not live.
func (r *Registry) disconnect(c *Client, onLast func(UserID)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.liveLocked(c) {
		return false
	}

	for room := range r.joined[c] {
		r.leaveLocked(c, room)
	}
	delete(r.joined, c)

	set := r.conns[c.User]
	delete(set, c)
	c.setState(StateClosed)
	close(c.Events)
	metrics.LiveConnections.Dec()

	r.log.Debug().
		Str("user_id", string(c.User)).
		Str("client_id", c.ID).
		Int("connections", len(set)).
		Msg("client disconnected")

	if len(set) > 0 {
		return true
	}

	delete(r.conns, c.User)
	metrics.OnlineUsers.Dec()
	if onLast != nil {
		onLast(c.User)
	}
	r.broadcastLocked(presenceEvent(c.User, false))
	return true
}

// close refuses further connections and returns the clients still registered.
func (r *Registry) close() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	clients := make([]*Client, 0, len(r.joined))
	for c := range r.joined {
		clients = append(clients, c)
	}
	return clients
}

// Join subscribes a live client to room. Returns false if c is not live.
func (r *Registry) Join(c *Client, room RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.liveLocked(c) {
		return false
	}
	r.joinLocked(c, room)
	return true
}

// Leave unsubscribes a live client from room. Leaving a room not joined is a no-op.
func (r *Registry) Leave(c *Client, room RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.liveLocked(c) {
		return false
	}
	r.leaveLocked(c, room)
	return true
}

// Online reports whether u has at least one live connection.
func (r *Registry) Online(u UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked(u)
}

// Live reports whether c is registered and not yet torn down.
func (r *Registry) Live(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.liveLocked(c)
}

// Connections returns the number of live connections of u.
func (r *Registry) Connections(u UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[u])
}

// InRoom reports whether c is subscribed to room.
func (r *Registry) InRoom(c *Client, room RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[c][room]
	return ok
}

// EmitToRoom delivers ev to every client subscribed to room.
func (r *Registry) EmitToRoom(room RoomID, ev *Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emitToRoomLocked(room, ev, "")
}

// EmitToRoomExcept delivers ev to room, skipping every connection of except.
func (r *Registry) EmitToRoomExcept(room RoomID, except UserID, ev *Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emitToRoomLocked(room, ev, except)
}

// EmitToClient delivers ev to c only if it is still live.
func (r *Registry) EmitToClient(c *Client, ev *Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emitToClientLocked(c, ev)
}

// Broadcast delivers ev to every live connection.
func (r *Registry) Broadcast(ev *Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcastLocked(ev)
}

func (r *Registry) liveLocked(c *Client) bool {
	_, ok := r.joined[c]
	return ok
}

func (r *Registry) onlineLocked(u UserID) bool {
	return len(r.conns[u]) > 0
}

func (r *Registry) joinLocked(c *Client, id RoomID) {
	room, ok := r.rooms[id]
	if !ok {
		room = NewRoom(id)
		r.rooms[id] = room
	}
	if room.AddClient(c) {
		r.joined[c][id] = struct{}{}
	}
}

func (r *Registry) leaveLocked(c *Client, id RoomID) {
	room, ok := r.rooms[id]
	if !ok {
		return
	}
	room.RemoveClient(c)
	delete(r.joined[c], id)
	if room.Empty() {
		delete(r.rooms, id)
	}
}

func (r *Registry) emitToRoomLocked(id RoomID, ev *Event, except UserID) int {
	room, ok := r.rooms[id]
	if !ok {
		return 0
	}
	return room.Broadcast(ev, except)
}

func (r *Registry) emitToClientLocked(c *Client, ev *Event) bool {
	if !r.liveLocked(c) {
		return false
	}
	return c.trySend(ev)
}

func (r *Registry) broadcastLocked(ev *Event) int {
	delivered := 0
	for c := range r.joined {
		if c.trySend(ev) {
			delivered++
		}
	}
	return delivered
}

func presenceEvent(u UserID, online bool) *Event {
	return &Event{
		Kind:     EventPresenceUpdate,
		Presence: &Presence{User: u, Online: online},
	}
}
