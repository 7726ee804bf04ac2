package core

import "github.com/vovakirdan/typeduel-server/internal/room"

// EventKind is a notification the authority emits to clients.
type EventKind int

const (
	// EventRoomData answers a snapshot query. Snapshot is nil for an absent
	// or empty room.
	EventRoomData EventKind = iota
	// EventRoomCreated bootstraps the first player.
	EventRoomCreated
	// EventPlayerJoined carries the full roster.
	EventPlayerJoined
	// EventPlayerReady carries the full room after a readiness change.
	EventPlayerReady
	// EventPlayerDisconnected names a departed player and the remaining roster.
	EventPlayerDisconnected
	// EventPlayerStats relays an opponent's race summary.
	EventPlayerStats
	// EventRaceFinished carries the full room once the race cycle ended.
	EventRaceFinished
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in a room.
// Events are shared between recipients and must not be mutated.
type Event struct {
	Kind       EventKind
	Room       string
	Snapshot   *room.Snapshot
	Players    []room.Player
	PlayerID   string
	PlayerName string
	SessionID  string
	Stats      room.Stats
	Error      *CoreError
}

func errorEvent(room string, err *CoreError) *Event {
	return &Event{Kind: EventError, Room: room, Error: err}
}
