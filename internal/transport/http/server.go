package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/config"
	"github.com/vovakirdan/typeduel-server/internal/core"
	"github.com/vovakirdan/typeduel-server/internal/room"
	"github.com/vovakirdan/typeduel-server/internal/store"
)

// RoomRegistry is the authority the transport talks to.
type RoomRegistry interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	Snapshot(ctx context.Context, roomID string) (*room.Snapshot, error)
	ListRooms(ctx context.Context) ([]*room.Snapshot, error)
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server: health, websocket and the read-only
// room API.
func NewServer(hub RoomRegistry, results store.ResultStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))

	rooms := NewRoomHandlers(hub, results, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms", rooms.ListRooms)
		api.GET("/rooms/:id", rooms.GetRoom)
		api.GET("/rooms/:id/results", rooms.RoomResults)
		api.GET("/sessions/:id/results", rooms.SessionResults)
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
