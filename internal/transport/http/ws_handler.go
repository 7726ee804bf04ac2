package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/config"
	"github.com/vovakirdan/typeduel-server/internal/core"
	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub            RoomRegistry
	log            *zerolog.Logger
	originPatterns []string
	maxBytes       int64
	rateLimit      int
	clock          clockwork.Clock
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub RoomRegistry, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:            hub,
		log:            logger,
		originPatterns: cfg.AllowedOrigins,
		maxBytes:       cfg.MaxMessageBytes,
		rateLimit:      cfg.InboundRateLimit,
		clock:          clockwork.NewRealClock(),
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxBytes > 0 {
		conn.SetReadLimit(h.maxBytes)
	}

	if v := r.URL.Query().Get("v"); v != "" && v != strconv.Itoa(proto.ProtocolVersion) {
		_ = wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: proto.ErrCodeUnsupportedVersion, Msg: "unsupported protocol version " + v},
		})
		conn.Close(websocket.StatusPolicyViolation, "unsupported protocol version")
		return
	}

	client := core.NewClient(utils.NewID(), "")
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(h.rateLimit, h.clock)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Str("client_id", client.ID).Msg("inbound rate limit exceeded")
			reject(client, proto.ErrCodeRateLimited, "too many messages")
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Str("type", inbound.Type).Msg("failed to map inbound")
			protoErr = &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "malformed payload"}
		}
		if protoErr != nil {
			reject(client, protoErr.Code, protoErr.Msg)
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reject queues an error for the client without blocking the read loop.
func reject(client *core.Client, code, msg string) {
	select {
	case client.Events <- &core.Event{Kind: core.EventError, Error: &core.CoreError{Code: code, Message: msg}}:
	default:
	}
}
