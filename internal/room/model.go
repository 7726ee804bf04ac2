package room

// Status is the race state of a room.
type Status string

const (
	// StatusWaiting means the room is gathering players or readiness.
	StatusWaiting Status = "waiting"
	// StatusRunning means both players are racing.
	StatusRunning Status = "running"
)

const (
	// MaxPlayers is the number of seats in a duel room.
	MaxPlayers = 2
	// MinPlayers is how many ready players a race needs.
	MinPlayers = 2
)

// Player is a room participant. ID is stable across reconnects.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Stats is the race engine summary for one player.
type Stats struct {
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Errors   int     `json:"errors"`
}

// Snapshot is a complete, self-consistent view of a room.
type Snapshot struct {
	ID           string   `json:"id"`
	Players      []Player `json:"players"`
	Ready        []string `json:"ready"`
	Status       Status   `json:"status"`
	SessionID    string   `json:"sessionId,omitempty"`
	Disconnected []Player `json:"disconnectedPlayers,omitempty"`
}

// Empty reports whether the snapshot has no players.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Players) == 0
}

// Clone returns a deep copy so holders never share slices with the authority.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = append([]Player(nil), s.Players...)
	out.Ready = append([]string(nil), s.Ready...)
	out.Disconnected = append([]Player(nil), s.Disconnected...)
	return &out
}
