package core

import "strings"

// RoomID names a broadcast scope.
type RoomID string

const (
	personalRoomPrefix = "user:"
	groupRoomPrefix    = "group:"
)

// PersonalRoom is the room every connection of u joins on connect.
func PersonalRoom(u UserID) RoomID {
	return RoomID(personalRoomPrefix + string(u))
}

// GroupRoom is the room mirroring a durable group.
func GroupRoom(groupID string) RoomID {
	return RoomID(groupRoomPrefix + groupID)
}

// IsGroup reports whether r was built by GroupRoom.
func (r RoomID) IsGroup() bool {
	return strings.HasPrefix(string(r), groupRoomPrefix)
}

// Room groups clients subscribed to the same channel.
// Rooms are owned by the Registry and guarded by its lock.
type Room struct {
	ID      RoomID
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(id RoomID) *Room {
	return &Room{
		ID:      id,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients in the room, skipping clients of except.
func (r *Room) Broadcast(event *Event, except UserID) int {
	delivered := 0
	for client := range r.clients {
		if except != "" && client.User == except {
			continue
		}
		// Slow consumers lose the event; trySend counts the drop.
		if client.trySend(event) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of subscribed clients.
func (r *Room) Len() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
