package core

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/room"
	"github.com/vovakirdan/typeduel-server/internal/store"
)

// DefaultEmptyRoomGrace is how long an empty room survives before removal.
const DefaultEmptyRoomGrace = 30 * time.Second

const storeTimeout = 2 * time.Second

type clientCommand struct {
	client *Client
	cmd    *Command
}

type roomExpiry struct {
	room       string
	generation uint64
}

// Hub is the room authority. A single goroutine (Run) applies every
// mutation and fans the results out to room members.
type Hub struct {
	rooms   map[string]*Room
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbox      chan clientCommand
	queries    chan func()
	expired    chan roomExpiry
	done       chan struct{}

	results    store.ResultStore
	clock      clockwork.Clock
	grace      time.Duration
	newSession func() string
	log        *zerolog.Logger
}

// Option customizes a Hub.
type Option func(*Hub)

// WithClock replaces the clock used for empty-room expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Hub) { h.clock = clock }
}

// WithEmptyRoomGrace sets how long empty rooms are kept.
func WithEmptyRoomGrace(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.grace = d
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(gen func() string) Option {
	return func(h *Hub) { h.newSession = gen }
}

// NewHub creates a hub. results may be nil when stats need not be kept.
func NewHub(results store.ResultStore, opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan clientCommand, 64),
		queries:    make(chan func()),
		expired:    make(chan roomExpiry, 8),
		done:       make(chan struct{}),
		results:    results,
		clock:      clockwork.NewRealClock(),
		grace:      DefaultEmptyRoomGrace,
		newSession: uuid.NewString,
		log:        &nop,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			go h.forward(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.inbox:
			if _, ok := h.clients[in.client]; !ok {
				continue
			}
			h.handleCommand(in.client, in.cmd)
		case q := <-h.queries:
			q()
		case e := <-h.expired:
			h.handleExpiry(e)
		}
	}
}

// RegisterClient adds a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient removes a connection. A seated player is treated as
// disconnected.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Snapshot returns the current state of a room, or ErrRoomNotFound.
func (h *Hub) Snapshot(ctx context.Context, roomID string) (*room.Snapshot, error) {
	var snap *room.Snapshot
	err := h.query(ctx, func() {
		if r := h.rooms[roomID]; r != nil && !r.Empty() {
			snap = r.Snapshot()
		}
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrRoomNotFound
	}
	return snap, nil
}

// ListRooms returns every room the hub holds, including empty rooms still
// inside their grace period, ordered by id.
func (h *Hub) ListRooms(ctx context.Context) ([]*room.Snapshot, error) {
	var out []*room.Snapshot
	err := h.query(ctx, func() {
		out = make([]*room.Snapshot, 0, len(h.rooms))
		for _, r := range h.rooms {
			out = append(out, r.Snapshot())
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// query runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	q := func() {
		fn()
		close(finished)
	}
	select {
	case h.queries <- q:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) forward(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- clientCommand{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.done:
				return
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if r := h.rooms[c.Room]; r != nil && r.members[c] == c.PlayerID {
		h.depart(r, c.PlayerID)
	}
	close(c.done)
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		if r.expiry != nil {
			r.expiry.Stop()
		}
	}
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandGetRoomData:
		h.handleGetRoomData(c, cmd)
	case CommandCreateRoom:
		h.handleCreate(c, cmd)
	case CommandJoinRoom:
		h.handleJoin(c, cmd)
	case CommandPlayerReady:
		h.handleReady(c, cmd)
	case CommandPlayerStats:
		h.handleStats(c, cmd)
	case CommandPlayerFinished:
		h.handleFinished(c, cmd)
	case CommandLeaveRoom:
		h.handleLeave(c, cmd)
	default:
		c.send(errorEvent(cmd.Room, coreError(ErrCodeBadRequest, "unknown command")))
	}
}

func (h *Hub) handleGetRoomData(c *Client, cmd *Command) {
	r := h.rooms[cmd.Room]
	if r == nil || r.Empty() {
		c.send(&Event{Kind: EventRoomData, Room: cmd.Room})
		return
	}
	if cmd.PlayerID != "" && room.Contains(r.players, cmd.PlayerID) {
		h.attach(r, c, cmd.PlayerID)
		r.disconnected = room.DropDisconnected(r.disconnected, cmd.PlayerID)
		h.log.Debug().Str("room", r.ID).Str("player_id", cmd.PlayerID).Msg("connection re-attached")
	}
	c.send(&Event{Kind: EventRoomData, Room: r.ID, Snapshot: r.Snapshot()})
}

func (h *Hub) handleCreate(c *Client, cmd *Command) {
	if cmd.Room == "" || cmd.PlayerID == "" {
		c.send(errorEvent(cmd.Room, coreError(ErrCodeBadRequest, "room and player id are required")))
		return
	}

	r := h.rooms[cmd.Room]
	if r != nil && !r.Empty() {
		// Two clients raced past the query; the later create becomes a join.
		h.log.Info().Str("room", r.ID).Str("player_id", cmd.PlayerID).Msg("duplicate create handled as join")
		h.handleJoin(c, cmd)
		return
	}
	if r == nil {
		r = NewRoom(cmd.Room)
		h.rooms[r.ID] = r
	}
	h.cancelExpiry(r)

	r.players = room.Normalize([]room.Player{{ID: cmd.PlayerID, Name: cmd.PlayerName}})
	r.ready = room.NewReadySet()
	r.finished = room.NewReadySet()
	r.status = room.StatusWaiting
	r.sessionID = h.newSession()
	r.disconnected = room.DropDisconnected(r.disconnected, cmd.PlayerID)
	h.attach(r, c, cmd.PlayerID)

	h.log.Info().Str("room", r.ID).Str("player_id", cmd.PlayerID).Str("session_id", r.sessionID).Msg("room created")
	r.Broadcast(&Event{
		Kind:       EventRoomCreated,
		Room:       r.ID,
		PlayerID:   cmd.PlayerID,
		PlayerName: cmd.PlayerName,
		SessionID:  r.sessionID,
	})
}

func (h *Hub) handleJoin(c *Client, cmd *Command) {
	if cmd.Room == "" || cmd.PlayerID == "" {
		c.send(errorEvent(cmd.Room, coreError(ErrCodeBadRequest, "room and player id are required")))
		return
	}

	r := h.rooms[cmd.Room]
	if r == nil || r.Empty() {
		h.handleCreate(c, cmd)
		return
	}

	if !room.Contains(r.players, cmd.PlayerID) {
		if len(r.players) >= room.MaxPlayers {
			c.send(errorEvent(r.ID, coreError(ErrCodeRoomFull, "room is full")))
			return
		}
		r.players = room.Normalize(append(r.roster(), room.Player{ID: cmd.PlayerID, Name: cmd.PlayerName}))
		r.ready = r.ready.Filter(r.players)
		h.log.Info().Str("room", r.ID).Str("player_id", cmd.PlayerID).Int("players", len(r.players)).Msg("player joined")
	}
	r.disconnected = room.DropDisconnected(r.disconnected, cmd.PlayerID)
	h.attach(r, c, cmd.PlayerID)

	r.Broadcast(&Event{Kind: EventPlayerJoined, Room: r.ID, Players: r.roster()})
}

func (h *Hub) handleReady(c *Client, cmd *Command) {
	r, playerID, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}
	if r.status == room.StatusRunning {
		c.send(errorEvent(r.ID, coreError(ErrCodeRaceRunning, "race already running")))
		return
	}

	r.ready.Add(playerID)
	if d := room.Evaluate(r.players, r.ready, r.status); d.Transition == room.TransitionStart {
		r.status = room.StatusRunning
		r.sessionID = h.newSession()
		r.finished = room.NewReadySet()
		h.log.Info().Str("room", r.ID).Str("session_id", r.sessionID).Msg("race started")
	}

	r.Broadcast(&Event{Kind: EventPlayerReady, Room: r.ID, Snapshot: r.Snapshot()})
}

func (h *Hub) handleStats(c *Client, cmd *Command) {
	r, playerID, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}

	sessionID := cmd.SessionID
	if sessionID == "" {
		sessionID = r.sessionID
	}
	if sessionID != r.sessionID {
		h.log.Debug().Str("room", r.ID).Str("player_id", playerID).Str("session_id", sessionID).Msg("dropping stale stats")
		return
	}

	name := cmd.PlayerName
	if p, found := room.Find(r.players, playerID); found {
		name = p.Name
	}
	r.BroadcastExcept(playerID, &Event{
		Kind:       EventPlayerStats,
		Room:       r.ID,
		PlayerID:   playerID,
		PlayerName: name,
		SessionID:  sessionID,
		Stats:      cmd.Stats,
	})

	if h.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.results.SaveResult(ctx, &store.RaceResult{
		SessionID:  sessionID,
		RoomID:     r.ID,
		PlayerID:   playerID,
		PlayerName: name,
		WPM:        cmd.Stats.WPM,
		Accuracy:   cmd.Stats.Accuracy,
		Errors:     cmd.Stats.Errors,
		RecordedAt: h.clock.Now(),
	}); err != nil {
		h.log.Error().Err(err).Str("room", r.ID).Str("session_id", sessionID).Msg("failed to save race result")
	}
}

func (h *Hub) handleFinished(c *Client, cmd *Command) {
	r, playerID, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}
	if r.status != room.StatusRunning || cmd.SessionID != r.sessionID {
		h.log.Debug().Str("room", r.ID).Str("player_id", playerID).Msg("ignoring finish outside current race")
		return
	}

	r.finished.Add(playerID)
	for _, p := range r.players {
		if !r.finished.Has(p.ID) {
			return
		}
	}

	r.status = room.StatusWaiting
	r.ready = room.NewReadySet()
	r.finished = room.NewReadySet()
	h.log.Info().Str("room", r.ID).Str("session_id", r.sessionID).Msg("race finished")
	r.Broadcast(&Event{Kind: EventRaceFinished, Room: r.ID, Snapshot: r.Snapshot()})
}

func (h *Hub) handleLeave(c *Client, cmd *Command) {
	r, playerID, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}
	h.depart(r, playerID)
}

// memberRoom resolves the room a command targets and checks the sender is
// seated there. Errors are reported to the sender.
func (h *Hub) memberRoom(c *Client, cmd *Command) (*Room, string, bool) {
	roomID, playerID := cmd.Room, cmd.PlayerID
	if roomID == "" {
		roomID = c.Room
	}
	if playerID == "" {
		playerID = c.PlayerID
	}

	r := h.rooms[roomID]
	if r == nil {
		c.send(errorEvent(roomID, coreError(ErrCodeRoomNotFound, "room not found")))
		return nil, "", false
	}
	if seat, ok := r.members[c]; !ok || seat != playerID || !room.Contains(r.players, playerID) {
		c.send(errorEvent(roomID, coreError(ErrCodeNotInRoom, "not in room")))
		return nil, "", false
	}
	return r, playerID, true
}

// attach seats c as playerID in r, leaving any other room c was seated in.
func (h *Hub) attach(r *Room, c *Client, playerID string) {
	if c.Room != "" && c.Room != r.ID {
		if prev := h.rooms[c.Room]; prev != nil && prev.members[c] == c.PlayerID {
			h.depart(prev, c.PlayerID)
		}
	}
	r.bind(c, playerID)
}

// depart removes a player, fails host over, forces the race back to
// waiting when the gate no longer holds, and tells the remaining members.
func (h *Hub) depart(r *Room, playerID string) {
	r.unbindPlayer(playerID)

	rest, removed, wasHost := room.Remove(r.players, playerID)
	if removed.ID == "" {
		return
	}
	r.players = rest
	r.ready.Delete(playerID)
	r.finished.Delete(playerID)
	r.disconnected = room.AddDisconnected(r.disconnected, removed)

	if d := room.Evaluate(r.players, r.ready, r.status); d.Transition == room.TransitionAbandon {
		r.status = room.StatusWaiting
		r.ready = room.NewReadySet()
		r.finished = room.NewReadySet()
		h.log.Info().Str("room", r.ID).Str("session_id", r.sessionID).Msg("race abandoned")
	}

	logEv := h.log.Info().Str("room", r.ID).Str("player_id", playerID).Int("players", len(rest))
	if wasHost && len(rest) > 0 {
		logEv = logEv.Str("new_host", rest[0].ID)
	}
	logEv.Msg("player disconnected")

	r.Broadcast(&Event{Kind: EventPlayerDisconnected, Room: r.ID, PlayerID: playerID, Players: r.roster()})

	if r.Empty() {
		h.scheduleExpiry(r)
	}
}

func (h *Hub) scheduleExpiry(r *Room) {
	h.cancelExpiry(r)
	ev := roomExpiry{room: r.ID, generation: r.generation}
	r.expiry = h.clock.AfterFunc(h.grace, func() {
		select {
		case h.expired <- ev:
		case <-h.done:
		}
	})
}

func (h *Hub) cancelExpiry(r *Room) {
	if r.expiry != nil {
		r.expiry.Stop()
		r.expiry = nil
	}
	r.generation++
}

func (h *Hub) handleExpiry(e roomExpiry) {
	r := h.rooms[e.room]
	if r == nil || r.generation != e.generation || !r.Empty() {
		return
	}
	delete(h.rooms, r.ID)
	h.log.Info().Str("room", r.ID).Msg("empty room removed")
}
