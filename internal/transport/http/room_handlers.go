package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/core"
	"github.com/vovakirdan/typeduel-server/internal/room"
	"github.com/vovakirdan/typeduel-server/internal/store"
)

const defaultResultsLimit = 50

// RoomHandlers provides read-only HTTP handlers over live rooms and stored
// race results.
type RoomHandlers struct {
	hub     RoomRegistry
	results store.ResultStore
	log     *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance. results may be nil.
func NewRoomHandlers(hub RoomRegistry, results store.ResultStore, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub:     hub,
		results: results,
		log:     logger,
	}
}

// RaceResultResponse represents a stored result in API responses.
type RaceResultResponse struct {
	SessionID  string  `json:"sessionId"`
	RoomID     string  `json:"roomId"`
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	Errors     int     `json:"errors"`
	RecordedAt string  `json:"recordedAt"`
}

// GetRoom returns the live snapshot of a room.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	snap, err := h.hub.Snapshot(c.Request.Context(), c.Param("id"))
	if errors.Is(err, core.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("room", c.Param("id")).Msg("failed to read room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ListRooms returns every occupied room.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.hub.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]*room.Snapshot, 0, len(rooms))
	for _, r := range rooms {
		if !r.Empty() {
			response = append(response, r)
		}
	}
	c.JSON(http.StatusOK, response)
}

// SessionResults returns the stored results of one race.
// GET /api/sessions/:id/results
func (h *RoomHandlers) SessionResults(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "results store disabled"})
		return
	}
	results, err := h.results.ListSessionResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Error().Err(err).Str("session_id", c.Param("id")).Msg("failed to list session results")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toResultResponses(results))
}

// RoomResults returns the latest results recorded in a room.
// GET /api/rooms/:id/results?limit=N
func (h *RoomHandlers) RoomResults(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "results store disabled"})
		return
	}
	limit := defaultResultsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	results, err := h.results.ListRoomResults(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", c.Param("id")).Msg("failed to list room results")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toResultResponses(results))
}

func toResultResponses(results []*store.RaceResult) []RaceResultResponse {
	out := make([]RaceResultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, RaceResultResponse{
			SessionID:  r.SessionID,
			RoomID:     r.RoomID,
			PlayerID:   r.PlayerID,
			PlayerName: r.PlayerName,
			WPM:        r.WPM,
			Accuracy:   r.Accuracy,
			Errors:     r.Errors,
			RecordedAt: r.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
