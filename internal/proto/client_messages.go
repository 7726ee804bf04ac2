package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/typeduel-server/internal/room"
)

// ClientMessage is an intent sent by a participant. The set of
// implementations is closed to this package.
type ClientMessage interface {
	Type() string
	clientMessage()
}

// GetRoomData asks the authority for the current room snapshot. PlayerID is
// optional; when it is on the roster the connection is re-attached.
type GetRoomData struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId,omitempty"`
}

// CreateRoom asks the authority to create a room with the sender as host.
type CreateRoom struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
}

// JoinRoom asks the authority to append the sender to a room.
type JoinRoom struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
}

// ReadyIntent confirms the sender is ready for the next race.
type ReadyIntent struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

// StatsReport carries the race engine summary of the sender.
type StatsReport struct {
	PlayerID   string     `json:"playerId"`
	PlayerName string     `json:"playerName"`
	RoomID     string     `json:"roomId,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Stats      room.Stats `json:"stats"`
}

// FinishIntent tells the authority the sender's race clock ran out.
type FinishIntent struct {
	PlayerID  string `json:"playerId"`
	RoomID    string `json:"roomId"`
	SessionID string `json:"sessionId"`
}

// LeaveRoom is an explicit departure.
type LeaveRoom struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

func (GetRoomData) Type() string  { return InboundTypeGetRoomData }
func (CreateRoom) Type() string   { return InboundTypeCreateRoom }
func (JoinRoom) Type() string     { return InboundTypeJoinRoom }
func (ReadyIntent) Type() string  { return InboundTypePlayerReady }
func (StatsReport) Type() string  { return InboundTypePlayerStats }
func (FinishIntent) Type() string { return InboundTypePlayerFinished }
func (LeaveRoom) Type() string    { return InboundTypeLeaveRoom }

func (GetRoomData) clientMessage()  {}
func (CreateRoom) clientMessage()   {}
func (JoinRoom) clientMessage()     {}
func (ReadyIntent) clientMessage()  {}
func (StatsReport) clientMessage()  {}
func (FinishIntent) clientMessage() {}
func (LeaveRoom) clientMessage()    {}

// EncodeClient wraps an intent in the inbound envelope.
func EncodeClient(msg ClientMessage) (Inbound, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Inbound{}, fmt.Errorf("marshal %s: %w", msg.Type(), err)
	}
	return Inbound{Type: msg.Type(), Data: data}, nil
}

// DecodeClient unwraps an inbound envelope into its typed intent.
func DecodeClient(in Inbound) (ClientMessage, error) {
	var msg ClientMessage
	switch in.Type {
	case InboundTypeGetRoomData:
		msg = &GetRoomData{}
	case InboundTypeCreateRoom:
		msg = &CreateRoom{}
	case InboundTypeJoinRoom:
		msg = &JoinRoom{}
	case InboundTypePlayerReady:
		msg = &ReadyIntent{}
	case InboundTypePlayerStats:
		msg = &StatsReport{}
	case InboundTypePlayerFinished:
		msg = &FinishIntent{}
	case InboundTypeLeaveRoom:
		msg = &LeaveRoom{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, msg); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", in.Type, err)
		}
	}
	return deref(msg), nil
}

func deref(msg ClientMessage) ClientMessage {
	switch m := msg.(type) {
	case *GetRoomData:
		return *m
	case *CreateRoom:
		return *m
	case *JoinRoom:
		return *m
	case *ReadyIntent:
		return *m
	case *StatsReport:
		return *m
	case *FinishIntent:
		return *m
	case *LeaveRoom:
		return *m
	}
	return msg
}
