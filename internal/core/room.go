package core

import (
	"github.com/jonboulle/clockwork"

	"github.com/vovakirdan/typeduel-server/internal/room"
)

// Room is the canonical state of one duel room. Only the hub goroutine
// touches it.
type Room struct {
	ID string

	players      []room.Player
	ready        room.ReadySet
	finished     room.ReadySet
	status       room.Status
	sessionID    string
	disconnected []room.Player

	members map[*Client]string

	expiry     clockwork.Timer
	generation uint64
}

// NewRoom constructs an empty waiting room.
func NewRoom(id string) *Room {
	return &Room{
		ID:       id,
		ready:    room.NewReadySet(),
		finished: room.NewReadySet(),
		status:   room.StatusWaiting,
		members:  make(map[*Client]string),
	}
}

// Empty returns true if no players are seated.
func (r *Room) Empty() bool {
	return len(r.players) == 0
}

// Snapshot returns a deep copy of the room.
func (r *Room) Snapshot() *room.Snapshot {
	snap := &room.Snapshot{
		ID:           r.ID,
		Players:      r.players,
		Ready:        r.ready.IDs(r.players),
		Status:       r.status,
		SessionID:    r.sessionID,
		Disconnected: r.disconnected,
	}
	return snap.Clone()
}

func (r *Room) roster() []room.Player {
	return append([]room.Player(nil), r.players...)
}

func (r *Room) bind(c *Client, playerID string) {
	r.unbindPlayer(playerID)
	r.members[c] = playerID
	c.Room = r.ID
	c.PlayerID = playerID
}

// unbindPlayer detaches every connection seated as playerID.
func (r *Room) unbindPlayer(playerID string) {
	for c, id := range r.members {
		if id == playerID {
			delete(r.members, c)
			c.Room, c.PlayerID = "", ""
		}
	}
}

// Broadcast sends an event to all connections in the room.
func (r *Room) Broadcast(ev *Event) {
	for c := range r.members {
		c.send(ev)
	}
}

// BroadcastExcept sends an event to every connection not seated as playerID.
func (r *Room) BroadcastExcept(playerID string, ev *Event) {
	for c, id := range r.members {
		if id != playerID {
			c.send(ev)
		}
	}
}
