package roomclient

import (
	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/room"
)

// onPlayerDisconnected removes the departed player, fails host over and
// abandons a race the remaining roster can no longer hold.
func (c *Client) onPlayerDisconnected(m proto.PlayerDisconnected, fx *effects) {
	if m.PlayerID == c.params.PlayerID {
		c.log.Info().Str("room", c.roomID).Msg("authority dropped this player, re-querying")
		c.requery(fx)
		return
	}

	prevStatus, prevSession := c.status, c.sessionID
	departed, known := room.Find(c.players, m.PlayerID)
	if m.Players != nil {
		c.players = room.Normalize(m.Players)
	} else {
		c.players, _, _ = room.Remove(c.players, m.PlayerID)
	}
	if !known {
		departed = room.Player{ID: m.PlayerID}
	}
	c.disconnected = room.AddDisconnected(c.disconnected, departed)
	c.ready.Delete(m.PlayerID)
	c.ready = c.ready.Filter(c.players)
	c.opponentDisconnected = true

	c.status = room.Evaluate(c.players, c.ready, c.status).Status
	c.transition(prevStatus, prevSession, fx)

	if host, ok := room.Host(c.players); ok {
		c.log.Info().Str("room", c.roomID).Str("player_id", m.PlayerID).Str("host", host.ID).Msg("player disconnected")
	}
}

// requery goes back to the query phase so the next snapshot decides
// whether to create, join or resume. A running race keeps its timer until
// that snapshot says otherwise.
func (c *Client) requery(fx *effects) {
	c.phase = PhaseQuerying
	c.readySent = false
	fx.queue(c.queryLocked())
}
