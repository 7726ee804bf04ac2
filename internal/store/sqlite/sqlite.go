package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/typeduel-server/internal/store"
)

// Schema creates the tables the store needs. It is safe to run on every
// start.
const Schema = `
CREATE TABLE IF NOT EXISTS race_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	room_id     TEXT NOT NULL,
	player_id   TEXT NOT NULL,
	player_name TEXT NOT NULL,
	wpm         REAL NOT NULL DEFAULT 0,
	accuracy    REAL NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (session_id, player_id)
);
CREATE INDEX IF NOT EXISTS idx_race_results_room ON race_results (room_id, recorded_at);
`

// ApplySchema runs Schema against db.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the database at dbPath and makes sure the schema exists.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests use it with ":memory:" and a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:"
	// databases alive across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult inserts a result, replacing an earlier one for the same
// session and player.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *store.RaceResult) error {
	if res.RecordedAt.IsZero() {
		res.RecordedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO race_results (session_id, room_id, player_id, player_name, wpm, accuracy, errors, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, player_id) DO UPDATE SET
			room_id     = excluded.room_id,
			player_name = excluded.player_name,
			wpm         = excluded.wpm,
			accuracy    = excluded.accuracy,
			errors      = excluded.errors,
			recorded_at = excluded.recorded_at
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		res.SessionID, res.RoomID, res.PlayerID, res.PlayerName,
		res.WPM, res.Accuracy, res.Errors, res.RecordedAt.UTC(),
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("upsert race result: %w", err)
	}
	return nil
}

// ListSessionResults returns the results of one race, fastest first.
func (s *SQLiteStore) ListSessionResults(ctx context.Context, sessionID string) ([]*store.RaceResult, error) {
	query := `
		SELECT id, session_id, room_id, player_id, player_name, wpm, accuracy, errors, recorded_at
		FROM race_results
		WHERE session_id = ?
		ORDER BY wpm DESC, id ASC
	`
	return s.queryResults(ctx, query, sessionID)
}

// ListRoomResults returns the latest results recorded in a room, newest
// first.
func (s *SQLiteStore) ListRoomResults(ctx context.Context, roomID string, limit int) ([]*store.RaceResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, session_id, room_id, player_id, player_name, wpm, accuracy, errors, recorded_at
		FROM race_results
		WHERE room_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`
	return s.queryResults(ctx, query, roomID, limit)
}

func (s *SQLiteStore) queryResults(ctx context.Context, query string, args ...interface{}) ([]*store.RaceResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query race results: %w", err)
	}
	defer rows.Close()

	var results []*store.RaceResult
	for rows.Next() {
		var r store.RaceResult
		if err := rows.Scan(&r.ID, &r.SessionID, &r.RoomID, &r.PlayerID, &r.PlayerName,
			&r.WPM, &r.Accuracy, &r.Errors, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan race result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}
