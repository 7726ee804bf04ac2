package roomclient

import "errors"

var (
	// ErrMissingParameters is returned by Start when room id, player id or
	// player name is empty. Nothing is sent.
	ErrMissingParameters = errors.New("room id, player id and player name are required")
	// ErrNotJoined is returned for intents that need a seat in the room.
	ErrNotJoined = errors.New("not joined to a room")
	// ErrRaceRunning is returned by Ready while a race is in progress.
	ErrRaceRunning = errors.New("race already running")
	// ErrClosed is returned after Close or Leave.
	ErrClosed = errors.New("room client closed")
)
