package core

import "github.com/vovakirdan/typeduel-server/internal/room"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandGetRoomData requests the current snapshot of a room.
	CommandGetRoomData CommandKind = iota
	// CommandCreateRoom creates a room with the sender as host.
	CommandCreateRoom
	// CommandJoinRoom appends the sender to a room.
	CommandJoinRoom
	// CommandPlayerReady marks the sender ready.
	CommandPlayerReady
	// CommandPlayerStats relays race stats to the other participants.
	CommandPlayerStats
	// CommandPlayerFinished reports the sender's race clock ran out.
	CommandPlayerFinished
	// CommandLeaveRoom removes the sender from a room.
	CommandLeaveRoom
)

func (k CommandKind) String() string {
	switch k {
	case CommandGetRoomData:
		return "get_room_data"
	case CommandCreateRoom:
		return "create_room"
	case CommandJoinRoom:
		return "join_room"
	case CommandPlayerReady:
		return "player_ready"
	case CommandPlayerStats:
		return "player_stats"
	case CommandPlayerFinished:
		return "player_finished"
	case CommandLeaveRoom:
		return "leave_room"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind       CommandKind
	Room       string
	PlayerID   string
	PlayerName string
	SessionID  string
	Stats      room.Stats
}
