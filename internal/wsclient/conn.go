// Package wsclient owns the participant's websocket to the authority. It
// re-dials with backoff and raises proto.Reconnect after every re-dial.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/proto"
)

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 15 * time.Second
	writeTimeout     = 5 * time.Second
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("not connected")

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithReconnectDelay sets the initial and maximum re-dial backoff.
func WithReconnectDelay(base, max time.Duration) Option {
	return func(c *Conn) {
		if base > 0 {
			c.baseDelay = base
		}
		if max >= c.baseDelay {
			c.maxDelay = max
		}
	}
}

// OnConnect registers a callback run after each successful dial, before any
// message of that connection is dispatched. first is true once.
func OnConnect(fn func(first bool)) Option {
	return func(c *Conn) {
		c.onConnect = fn
	}
}

// Conn is a reconnecting websocket connection. Send is safe for concurrent
// use.
type Conn struct {
	url       string
	log       *zerolog.Logger
	baseDelay time.Duration
	maxDelay  time.Duration
	onConnect func(first bool)

	mu      sync.Mutex
	ws      *websocket.Conn
	handler func(context.Context, proto.ServerMessage)

	writeMu sync.Mutex
}

// New creates a connection to url. Nothing is dialed until Run.
func New(url string, opts ...Option) *Conn {
	nop := zerolog.Nop()
	c := &Conn{
		url:       url,
		log:       &nop,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHandler sets the receiver of decoded server messages.
func (c *Conn) SetHandler(fn func(context.Context, proto.ServerMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

// SetOnConnect replaces the callback registered with OnConnect.
func (c *Conn) SetOnConnect(fn func(first bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// Send encodes msg and writes it to the current connection.
func (c *Conn) Send(ctx context.Context, msg proto.ClientMessage) error {
	in, err := proto.EncodeClient(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wsjson.Write(writeCtx, ws, in); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type(), err)
	}
	return nil
}

// Run dials, reads and re-dials until ctx is cancelled.
func (c *Conn) Run(ctx context.Context) error {
	delay := c.baseDelay
	first := true
	for {
		ws, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("dial failed")
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, c.maxDelay)
			continue
		}
		delay = c.baseDelay

		c.mu.Lock()
		c.ws = ws
		onConnect := c.onConnect
		c.mu.Unlock()
		c.log.Info().Str("url", c.url).Bool("first", first).Msg("connected")

		if onConnect != nil {
			onConnect(first)
		}
		if !first {
			c.dispatch(ctx, proto.Reconnect{})
		}
		first = false

		err = c.readLoop(ctx, ws)

		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()

		if ctx.Err() != nil {
			_ = ws.Close(websocket.StatusNormalClosure, "bye")
			return ctx.Err()
		}
		_ = ws.CloseNow()
		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("connection lost")
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		var raw proto.RawOutbound
		if err := wsjson.Read(ctx, ws, &raw); err != nil {
			return err
		}
		msg, err := proto.DecodeServer(raw)
		if err != nil {
			c.log.Warn().Err(err).Str("event", raw.Event).Msg("dropping undecodable message")
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Conn) dispatch(ctx context.Context, msg proto.ServerMessage) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(ctx, msg)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
