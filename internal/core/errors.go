package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeRoomFull     = "room_full"
	ErrCodeRaceRunning  = "race_running"
	ErrCodeBadRequest   = "bad_request"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrHubStopped   = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
