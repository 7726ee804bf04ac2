// Package roomclient keeps one participant's view of a duel room in step
// with the authority. Every broadcast replaces the local state it touches;
// nothing is patched optimistically.
package roomclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/racetimer"
	"github.com/vovakirdan/typeduel-server/internal/room"
)

const sendTimeout = 5 * time.Second

// Conn delivers intents to the authority. The owner of the connection
// controls its lifecycle.
type Conn interface {
	Send(ctx context.Context, msg proto.ClientMessage) error
}

// RaceEngine is the keystroke engine driven by the race window.
type RaceEngine interface {
	StartRace(sessionID string)
	StopRace()
}

// Params identify the participant and the room it wants.
type Params struct {
	RoomID     string
	PlayerID   string
	PlayerName string
}

func (p Params) valid() bool {
	return p.RoomID != "" && p.PlayerID != "" && p.PlayerName != ""
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock driving the race timer.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithTimerConfig overrides the pre-race delay and race length.
func WithTimerConfig(cfg racetimer.Config) Option {
	return func(c *Client) {
		c.timerCfg = cfg
	}
}

// WithEngine attaches the race engine started and stopped by the timer.
func WithEngine(engine RaceEngine) Option {
	return func(c *Client) {
		c.engine = engine
	}
}

// OnChange registers an observer called with a fresh View after every
// state change. It runs without the client lock held.
func OnChange(fn func(View)) Option {
	return func(c *Client) {
		c.onChange = fn
	}
}

// Client is the room state machine of one participant. It is safe for
// concurrent use; each inbound message is applied atomically.
type Client struct {
	mu sync.Mutex

	conn     Conn
	params   Params
	clock    clockwork.Clock
	log      *zerolog.Logger
	timerCfg racetimer.Config
	timer    *racetimer.Timer
	engine   RaceEngine
	onChange func(View)

	phase   Phase
	started bool
	closed  bool

	roomID       string
	players      []room.Player
	ready        room.ReadySet
	status       room.Status
	sessionID    string
	disconnected []room.Player

	readySent            bool
	opponentStats        *room.Stats
	opponentDisconnected bool
	lastError            error
}

// New builds a client bound to conn. Nothing is sent until Start.
func New(conn Conn, params Params, opts ...Option) *Client {
	nop := zerolog.Nop()
	c := &Client{
		conn:     conn,
		params:   params,
		clock:    clockwork.NewRealClock(),
		log:      &nop,
		timerCfg: racetimer.DefaultConfig(),
		roomID:   params.RoomID,
		ready:    room.NewReadySet(),
		status:   room.StatusWaiting,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = racetimer.New(c.timerCfg,
		racetimer.WithClock(c.clock),
		racetimer.OnStart(c.raceStarted),
		racetimer.OnExpire(c.raceExpired),
	)
	return c
}

// effects are applied after the client lock is released.
type effects struct {
	send      []proto.ClientMessage
	startRace string
	stopRace  bool
}

func (fx *effects) queue(msg proto.ClientMessage) {
	fx.send = append(fx.send, msg)
}

// Start asks the authority for the room. A second call is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	if !c.params.valid() {
		c.lastError = ErrMissingParameters
		c.mu.Unlock()
		c.log.Warn().Str("room", c.params.RoomID).Str("player_id", c.params.PlayerID).Msg("missing room parameters")
		return ErrMissingParameters
	}
	c.started = true
	c.phase = PhaseQuerying
	fx := &effects{}
	fx.queue(c.queryLocked())
	c.mu.Unlock()

	c.apply(ctx, fx)
	return nil
}

// Ready confirms readiness once per race cycle.
func (c *Client) Ready(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case !c.phase.seated():
		c.mu.Unlock()
		return ErrNotJoined
	case c.status == room.StatusRunning:
		c.mu.Unlock()
		return ErrRaceRunning
	case c.readySent:
		c.mu.Unlock()
		return nil
	}
	c.readySent = true
	c.phase = PhaseReadyWait
	msg := proto.ReadyIntent{PlayerID: c.params.PlayerID, RoomID: c.roomID}
	c.mu.Unlock()

	if err := c.conn.Send(ctx, msg); err != nil {
		c.mu.Lock()
		c.readySent = false
		c.lastError = err
		c.settleLocked()
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("send ready: %w", err)
	}
	c.notify()
	return nil
}

// ReportStats forwards the race engine summary tagged with the current
// session.
func (c *Client) ReportStats(ctx context.Context, stats room.Stats) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.phase.seated() {
		c.mu.Unlock()
		return ErrNotJoined
	}
	msg := proto.StatsReport{
		PlayerID:   c.params.PlayerID,
		PlayerName: c.params.PlayerName,
		RoomID:     c.roomID,
		SessionID:  c.sessionID,
		Stats:      stats,
	}
	c.mu.Unlock()

	if err := c.conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("send stats: %w", err)
	}
	return nil
}

// Leave announces the departure and closes the client.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	seated := c.phase.seated()
	c.mu.Unlock()

	var err error
	if seated {
		if sendErr := c.conn.Send(ctx, proto.LeaveRoom{PlayerID: c.params.PlayerID, RoomID: c.roomID}); sendErr != nil {
			err = fmt.Errorf("send leave: %w", sendErr)
		}
	}
	c.Close()
	return err
}

// Close stops the race and ignores every later message and timer callback.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.timer.Stop()
	if c.engine != nil {
		c.engine.StopRace()
	}
}

func (c *Client) queryLocked() proto.ClientMessage {
	return proto.GetRoomData{RoomID: c.roomID, PlayerID: c.params.PlayerID}
}

// apply runs queued side effects and notifies the observer.
func (c *Client) apply(ctx context.Context, fx *effects) {
	if fx.stopRace {
		c.timer.Stop()
		if c.engine != nil {
			c.engine.StopRace()
		}
	}
	if fx.startRace != "" {
		c.timer.Start(fx.startRace)
	}
	for _, msg := range fx.send {
		if err := c.conn.Send(ctx, msg); err != nil {
			c.log.Warn().Err(err).Str("type", msg.Type()).Msg("failed to send intent")
			c.mu.Lock()
			c.lastError = err
			c.mu.Unlock()
		}
	}
	c.notify()
}

func (c *Client) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.View())
}

func (c *Client) raceStarted(sessionID string) {
	c.mu.Lock()
	current := !c.closed && c.onRoster() && c.status == room.StatusRunning && c.sessionID == sessionID
	c.mu.Unlock()
	if !current {
		return
	}
	c.log.Info().Str("room", c.roomID).Str("session_id", sessionID).Msg("race started")
	if c.engine != nil {
		c.engine.StartRace(sessionID)
	}
	c.notify()
}

func (c *Client) raceExpired(sessionID string) {
	c.mu.Lock()
	current := !c.closed && c.onRoster() && c.status == room.StatusRunning && c.sessionID == sessionID
	msg := proto.FinishIntent{PlayerID: c.params.PlayerID, RoomID: c.roomID, SessionID: sessionID}
	c.mu.Unlock()
	if !current {
		return
	}
	if c.engine != nil {
		c.engine.StopRace()
	}
	c.log.Info().Str("room", c.roomID).Str("session_id", sessionID).Msg("race time over")
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := c.conn.Send(ctx, msg); err != nil {
		c.log.Warn().Err(err).Msg("failed to send finish")
	}
	c.notify()
}
