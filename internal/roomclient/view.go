package roomclient

import (
	"fmt"
	"time"

	"github.com/vovakirdan/typeduel-server/internal/racetimer"
	"github.com/vovakirdan/typeduel-server/internal/room"
)

// View is a read-only projection of the client state for rendering.
type View struct {
	RoomID    string
	PlayerID  string
	Phase     Phase
	Status    room.Status
	SessionID string
	Players   []room.Player
	Ready     []string

	AmIHost              bool
	Opponent             *room.Player
	IsRoomFull           bool
	ReadyCount           int
	ReadyLabel           string
	OpponentStats        *room.Stats
	OpponentDisconnected bool
	Disconnected         []room.Player

	RaceState racetimer.State
	Remaining time.Duration
	LastError error
}

// View returns the current projection.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		RoomID:               c.roomID,
		PlayerID:             c.params.PlayerID,
		Phase:                c.phase,
		Status:               c.status,
		SessionID:            c.sessionID,
		Players:              append([]room.Player(nil), c.players...),
		Ready:                c.ready.IDs(c.players),
		Opponent:             c.opponent(),
		IsRoomFull:           len(c.players) >= room.MaxPlayers,
		OpponentDisconnected: c.opponentDisconnected,
		Disconnected:         append([]room.Player(nil), c.disconnected...),
		RaceState:            c.timer.State(),
		Remaining:            c.timer.Remaining(),
		LastError:            c.lastError,
	}
	if host, ok := room.Host(c.players); ok {
		v.AmIHost = host.ID == c.params.PlayerID
	}
	v.ReadyCount = len(v.Ready)
	v.ReadyLabel = readyLabel(v.ReadyCount, len(c.players))
	if c.opponentStats != nil {
		s := *c.opponentStats
		v.OpponentStats = &s
	}
	return v
}

// StatusLine is the one-line room summary. Waiting always carries the
// ready count.
func (v View) StatusLine() string {
	switch {
	case v.Status == room.StatusRunning && v.RaceState == racetimer.Armed:
		return "Get ready..."
	case v.Status == room.StatusRunning:
		return fmt.Sprintf("Racing, %ds left", int(v.Remaining.Round(time.Second)/time.Second))
	case len(v.Players) < room.MinPlayers:
		return "Waiting for an opponent (" + v.ReadyLabel + ")"
	default:
		return "Waiting for players to get ready (" + v.ReadyLabel + ")"
	}
}

func readyLabel(ready, players int) string {
	if players < room.MinPlayers {
		players = room.MinPlayers
	}
	return fmt.Sprintf("%d/%d ready", ready, players)
}
