package roomclient

import (
	"context"

	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/room"
)

// Handle applies one message from the authority or the transport.
func (c *Client) Handle(ctx context.Context, msg proto.ServerMessage) {
	c.mu.Lock()
	if c.closed || !c.started {
		c.mu.Unlock()
		return
	}

	fx := &effects{}
	switch m := msg.(type) {
	case proto.RoomData:
		c.onRoomData(m, fx)
	case proto.RoomCreated:
		c.onRoomCreated(m, fx)
	case proto.PlayerJoined:
		c.onPlayerJoined(m, fx)
	case proto.PlayerReady:
		c.replaceSnapshot(m.Room, fx)
	case proto.RaceFinished:
		c.replaceSnapshot(m.Room, fx)
	case proto.PlayerDisconnected:
		c.onPlayerDisconnected(m, fx)
	case proto.PlayerStats:
		c.onPlayerStats(m)
	case proto.Reconnect:
		c.requery(fx)
	case proto.ErrorMessage:
		c.onError(m, fx)
	default:
		c.log.Warn().Str("event", msg.Event()).Msg("unhandled server message")
	}
	c.mu.Unlock()

	c.apply(ctx, fx)
}

func (c *Client) onRoomData(m proto.RoomData, fx *effects) {
	if c.phase != PhaseQuerying {
		// Only the query phase issues intents; later answers only refresh a
		// seated view.
		if m.Room != nil && room.Contains(m.Room.Players, c.params.PlayerID) {
			c.replaceSnapshot(*m.Room, fx)
		}
		return
	}

	switch {
	case m.Room.Empty():
		c.phase = PhaseCreating
		fx.queue(proto.CreateRoom{RoomName: c.roomID, PlayerName: c.params.PlayerName, PlayerID: c.params.PlayerID})
	case !room.Contains(m.Room.Players, c.params.PlayerID):
		c.phase = PhaseJoining
		c.replaceSnapshot(*m.Room, fx)
		fx.queue(proto.JoinRoom{RoomName: c.roomID, PlayerName: c.params.PlayerName, PlayerID: c.params.PlayerID})
	default:
		c.phase = PhaseJoined
		c.replaceSnapshot(*m.Room, fx)
	}
}

func (c *Client) onRoomCreated(m proto.RoomCreated, fx *effects) {
	prevStatus, prevSession := c.status, c.sessionID
	if m.RoomID != "" {
		c.roomID = m.RoomID
	}
	c.players = room.Normalize([]room.Player{{ID: m.PlayerID, Name: m.PlayerName}})
	c.ready = room.NewReadySet()
	c.status = room.StatusWaiting
	c.sessionID = m.SessionID
	c.disconnected = room.DropDisconnected(c.disconnected, m.PlayerID)
	c.readySent = false
	c.opponentDisconnected = false
	if m.PlayerID == c.params.PlayerID && !c.phase.seated() {
		c.phase = PhaseJoined
	}
	c.transition(prevStatus, prevSession, fx)
}

func (c *Client) onPlayerJoined(m proto.PlayerJoined, fx *effects) {
	prevStatus, prevSession := c.status, c.sessionID
	c.players = room.Normalize(m.Players)
	c.ready = c.ready.Filter(c.players)
	for _, p := range c.players {
		c.disconnected = room.DropDisconnected(c.disconnected, p.ID)
	}
	if c.opponent() != nil {
		c.opponentDisconnected = false
	}
	if room.Contains(c.players, c.params.PlayerID) && !c.phase.seated() {
		c.phase = PhaseJoined
		c.readySent = c.ready.Has(c.params.PlayerID)
	}
	c.status = room.Evaluate(c.players, c.ready, c.status).Status
	c.transition(prevStatus, prevSession, fx)
}

// replaceSnapshot overwrites the local room with a full broadcast.
func (c *Client) replaceSnapshot(snap room.Snapshot, fx *effects) {
	prevStatus, prevSession := c.status, c.sessionID
	if snap.ID != "" {
		c.roomID = snap.ID
	}
	c.players = room.Normalize(snap.Players)
	c.ready = room.NewReadySet(snap.Ready...).Filter(c.players)
	c.status = snap.Status
	if c.status == "" {
		c.status = room.Evaluate(c.players, c.ready, prevStatus).Status
	}
	c.sessionID = snap.SessionID
	c.disconnected = append([]room.Player(nil), snap.Disconnected...)

	if room.Contains(c.players, c.params.PlayerID) {
		if !c.phase.seated() {
			c.phase = PhaseJoined
		}
		if c.ready.Has(c.params.PlayerID) {
			c.readySent = true
		}
	}
	c.transition(prevStatus, prevSession, fx)
}

// transition reacts to the status change just applied and settles the
// phase.
func (c *Client) transition(prevStatus room.Status, prevSession string, fx *effects) {
	switch {
	case c.status == room.StatusRunning:
		if prevStatus != room.StatusRunning || prevSession != c.sessionID {
			c.opponentStats = nil
		}
		// Only a player on the roster races; Start is a no-op for an armed
		// session.
		if c.onRoster() {
			fx.startRace = c.sessionID
			c.log.Debug().Str("room", c.roomID).Str("session_id", c.sessionID).Msg("race armed")
		}
	case prevStatus == room.StatusRunning && c.status != room.StatusRunning:
		c.readySent = false
		c.ready = room.NewReadySet()
		fx.stopRace = true
		if c.phase.seated() {
			c.phase = PhaseWaiting
		}
		c.log.Debug().Str("room", c.roomID).Str("session_id", prevSession).Msg("race stopped")
	}
	c.settleLocked()
}

// settleLocked derives the seated phase from status and readiness.
func (c *Client) settleLocked() {
	if !c.phase.seated() {
		return
	}
	switch {
	case c.status == room.StatusRunning:
		c.phase = PhaseRacing
	case c.readySent:
		c.phase = PhaseReadyWait
	case c.phase == PhaseRacing || c.phase == PhaseWaiting:
		c.phase = PhaseWaiting
	default:
		c.phase = PhaseJoined
	}
}

func (c *Client) onPlayerStats(m proto.PlayerStats) {
	if m.PlayerID == c.params.PlayerID {
		return
	}
	if m.SessionID != "" && m.SessionID != c.sessionID {
		c.log.Debug().Str("session_id", m.SessionID).Str("current", c.sessionID).Msg("dropping stale stats")
		return
	}
	stats := m.Stats
	c.opponentStats = &stats
}

func (c *Client) onError(m proto.ErrorMessage, fx *effects) {
	c.lastError = m
	c.log.Warn().Str("code", m.Code).Str("msg", m.Msg).Msg("authority error")
	if m.Code != proto.ErrCodeRoomFull {
		return
	}
	// A create that lost the race is answered as a join, so both phases
	// can end up here.
	if c.phase == PhaseJoining || c.phase == PhaseCreating {
		if c.status == room.StatusRunning {
			fx.stopRace = true
		}
		c.phase = PhaseUninitialized
		c.status = room.StatusWaiting
		c.sessionID = ""
		c.readySent = false
		c.opponentStats = nil
	}
}

func (c *Client) onRoster() bool {
	return room.Contains(c.players, c.params.PlayerID)
}

// opponent returns the first other player on the roster.
func (c *Client) opponent() *room.Player {
	for _, p := range c.players {
		if p.ID != c.params.PlayerID {
			return &p
		}
	}
	return nil
}
