package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/typeduel-server/internal/room"
)

// ErrUnknownType is returned when an envelope names no known message.
var ErrUnknownType = errors.New("unknown message type")

// ServerMessage is a broadcast or response from the authority, plus the
// locally raised Reconnect. The set of implementations is closed to this
// package.
type ServerMessage interface {
	Event() string
	serverMessage()
}

// RoomData answers GetRoomData. Room is nil when the room is absent or empty.
type RoomData struct {
	Room *room.Snapshot
}

// RoomCreated bootstraps the first player of a room.
type RoomCreated struct {
	RoomID     string `json:"roomId"`
	SessionID  string `json:"sessionId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// PlayerJoined carries the full roster after a join.
type PlayerJoined struct {
	RoomID  string        `json:"roomId"`
	Players []room.Player `json:"players"`
}

// PlayerReady carries the full room after a readiness change.
type PlayerReady struct {
	Room room.Snapshot
}

// PlayerDisconnected names a departed player. Players, when present, is the
// roster after removal.
type PlayerDisconnected struct {
	RoomID   string        `json:"roomId,omitempty"`
	PlayerID string        `json:"playerId"`
	Players  []room.Player `json:"players,omitempty"`
}

// PlayerStats relays an opponent's race summary.
type PlayerStats struct {
	PlayerID   string     `json:"playerId"`
	PlayerName string     `json:"playerName"`
	SessionID  string     `json:"sessionId,omitempty"`
	Stats      room.Stats `json:"stats"`
}

// RaceFinished carries the full room once every player finished.
type RaceFinished struct {
	Room room.Snapshot
}

// Reconnect signals the transport re-established the connection.
type Reconnect struct{}

// ErrorMessage is a domain error from the authority.
type ErrorMessage struct {
	Code string
	Msg  string
}

func (RoomData) Event() string           { return EventRoomData }
func (RoomCreated) Event() string        { return EventRoomCreated }
func (PlayerJoined) Event() string       { return EventPlayerJoined }
func (PlayerReady) Event() string        { return EventPlayerReady }
func (PlayerDisconnected) Event() string { return EventPlayerDisconnected }
func (PlayerStats) Event() string        { return EventPlayerStats }
func (RaceFinished) Event() string       { return EventRaceFinished }
func (Reconnect) Event() string          { return EventReconnect }
func (ErrorMessage) Event() string       { return "" }

func (RoomData) serverMessage()           {}
func (RoomCreated) serverMessage()        {}
func (PlayerJoined) serverMessage()       {}
func (PlayerReady) serverMessage()        {}
func (PlayerDisconnected) serverMessage() {}
func (PlayerStats) serverMessage()        {}
func (RaceFinished) serverMessage()       {}
func (Reconnect) serverMessage()          {}
func (ErrorMessage) serverMessage()       {}

func (e ErrorMessage) Error() string {
	return e.Code + ": " + e.Msg
}

// EncodeServer wraps a server message in the outbound envelope.
func EncodeServer(msg ServerMessage) Outbound {
	switch m := msg.(type) {
	case RoomData:
		return Outbound{Type: OutboundTypeEvent, Event: m.Event(), Data: m.Room}
	case PlayerReady:
		return Outbound{Type: OutboundTypeEvent, Event: m.Event(), Data: m.Room}
	case RaceFinished:
		return Outbound{Type: OutboundTypeEvent, Event: m.Event(), Data: m.Room}
	case RoomCreated, PlayerJoined, PlayerDisconnected, PlayerStats:
		return Outbound{Type: OutboundTypeEvent, Event: msg.Event(), Data: m}
	case Reconnect:
		return Outbound{Type: OutboundTypeEvent, Event: m.Event()}
	case ErrorMessage:
		return Outbound{Type: OutboundTypeError, Error: &Error{Code: m.Code, Msg: m.Msg}}
	default:
		return Outbound{Type: OutboundTypeError, Error: &Error{Code: "unknown", Msg: "unknown message"}}
	}
}

// DecodeServer unwraps an outbound envelope into its typed message.
func DecodeServer(raw RawOutbound) (ServerMessage, error) {
	if raw.Type == OutboundTypeError {
		if raw.Error == nil {
			return ErrorMessage{Code: "unknown", Msg: "unknown error"}, nil
		}
		return ErrorMessage{Code: raw.Error.Code, Msg: raw.Error.Msg}, nil
	}

	switch raw.Event {
	case EventRoomData:
		var snap *room.Snapshot
		if err := unmarshalData(raw, &snap); err != nil {
			return nil, err
		}
		return RoomData{Room: snap}, nil
	case EventRoomCreated:
		var m RoomCreated
		if err := unmarshalData(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EventPlayerJoined:
		var m PlayerJoined
		if err := unmarshalData(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EventPlayerReady:
		var snap room.Snapshot
		if err := unmarshalData(raw, &snap); err != nil {
			return nil, err
		}
		return PlayerReady{Room: snap}, nil
	case EventPlayerDisconnected:
		var m PlayerDisconnected
		if err := unmarshalData(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EventPlayerStats:
		var m PlayerStats
		if err := unmarshalData(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EventRaceFinished:
		var snap room.Snapshot
		if err := unmarshalData(raw, &snap); err != nil {
			return nil, err
		}
		return RaceFinished{Room: snap}, nil
	case EventReconnect:
		return Reconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, raw.Event)
	}
}

func unmarshalData(raw RawOutbound, v any) error {
	if len(raw.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", raw.Event, err)
	}
	return nil
}
