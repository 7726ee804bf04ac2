package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeGetRoomData    = "getRoomData"
	InboundTypeCreateRoom     = "createRoom"
	InboundTypeJoinRoom       = "joinRoom"
	InboundTypePlayerReady    = "playerReady"
	InboundTypePlayerStats    = "playerStats"
	InboundTypePlayerFinished = "playerFinished"
	InboundTypeLeaveRoom      = "leaveRoom"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomData           = "roomData"
	EventRoomCreated        = "roomCreated"
	EventPlayerJoined       = "playerJoined"
	EventPlayerReady        = "playerReady"
	EventPlayerDisconnected = "playerDisconnected"
	EventPlayerStats        = "playerStats"
	EventRaceFinished       = "raceFinished"
	// EventReconnect never crosses the wire; the client transport raises it
	// after re-dialing.
	EventReconnect = "reconnect"
)

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RawOutbound is Outbound as seen by a decoder.
type RawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Error codes sent by the authority.
const (
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeRoomFull     = "room_full"
	ErrCodeRaceRunning  = "race_running"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeRateLimited  = "rate_limited"

	ErrCodeUnsupportedVersion = "unsupported_version"
)

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
