package store

import (
	"context"
	"time"
)

// RaceResult is the final stats one player reported for a race session.
type RaceResult struct {
	ID         int64
	SessionID  string
	RoomID     string
	PlayerID   string
	PlayerName string
	WPM        float64
	Accuracy   float64
	Errors     int
	RecordedAt time.Time
}

// ResultStore persists race results. A later report for the same session
// and player replaces the earlier one.
type ResultStore interface {
	SaveResult(ctx context.Context, res *RaceResult) error
	ListSessionResults(ctx context.Context, sessionID string) ([]*RaceResult, error)
	ListRoomResults(ctx context.Context, roomID string, limit int) ([]*RaceResult, error)
}

// Store combines all storage interfaces.
type Store interface {
	ResultStore
	Close() error
}
