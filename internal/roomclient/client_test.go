package roomclient

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/racetimer"
	"github.com/vovakirdan/typeduel-server/internal/room"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []proto.ClientMessage
	err  error
}

func (f *fakeConn) Send(_ context.Context, msg proto.ClientMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) messages() []proto.ClientMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]proto.ClientMessage(nil), f.sent...)
}

func (f *fakeConn) count(typ string) int {
	n := 0
	for _, m := range f.messages() {
		if m.Type() == typ {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	mu      sync.Mutex
	started []string
	stops   int
}

func (e *fakeEngine) StartRace(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, sessionID)
}

func (e *fakeEngine) StopRace() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
}

func (e *fakeEngine) snapshot() ([]string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started...), e.stops
}

var (
	alice = room.Player{ID: "A", Name: "alice"}
	bob   = room.Player{ID: "B", Name: "bob"}
	carol = room.Player{ID: "C", Name: "carol"}
)

type harness struct {
	client *Client
	conn   *fakeConn
	engine *fakeEngine
	clock  *clockwork.FakeClock
}

func newHarness(t *testing.T, self room.Player) *harness {
	t.Helper()
	h := &harness{conn: &fakeConn{}, engine: &fakeEngine{}, clock: clockwork.NewFakeClock()}
	h.client = New(h.conn, Params{RoomID: "R1", PlayerID: self.ID, PlayerName: self.Name},
		WithClock(h.clock),
		WithEngine(h.engine),
		WithTimerConfig(racetimer.Config{Delay: 2 * time.Second, Duration: 10 * time.Second}),
	)
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h
}

func (h *harness) handle(msgs ...proto.ServerMessage) {
	for _, m := range msgs {
		h.client.Handle(context.Background(), m)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

func host(p room.Player) room.Player {
	p.IsHost = true
	return p
}

func runningSnapshot(session string) room.Snapshot {
	return room.Snapshot{
		ID:        "R1",
		Players:   []room.Player{host(alice), bob},
		Ready:     []string{"A", "B"},
		Status:    room.StatusRunning,
		SessionID: session,
	}
}

// seatedPair returns A and B, both seated in R1 and waiting.
func seatedPair(t *testing.T) (a, b *harness) {
	t.Helper()
	a = newHarness(t, alice)
	a.handle(proto.RoomData{}, proto.RoomCreated{RoomID: "R1", SessionID: "s-1", PlayerID: "A", PlayerName: "alice"})

	b = newHarness(t, bob)
	b.handle(proto.RoomData{Room: &room.Snapshot{ID: "R1", Players: []room.Player{host(alice)}, Status: room.StatusWaiting, SessionID: "s-1"}})

	joined := proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), bob}}
	a.handle(joined)
	b.handle(joined)
	return a, b
}

func TestStartWithMissingParametersSendsNothing(t *testing.T) {
	conn := &fakeConn{}
	c := New(conn, Params{RoomID: "R1", PlayerID: "A"})

	if err := c.Start(context.Background()); !errors.Is(err, ErrMissingParameters) {
		t.Fatalf("expected ErrMissingParameters, got %v", err)
	}
	if len(conn.messages()) != 0 {
		t.Fatalf("no intent may be sent: %+v", conn.messages())
	}
	if v := c.View(); v.Phase != PhaseUninitialized || !errors.Is(v.LastError, ErrMissingParameters) {
		t.Fatalf("unexpected view %+v", v)
	}

	c.Handle(context.Background(), proto.RoomData{})
	if len(conn.messages()) != 0 {
		t.Fatalf("an unstarted client must ignore messages")
	}
}

func TestStartSendsOneQuery(t *testing.T) {
	h := newHarness(t, alice)
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}

	msgs := h.conn.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one query, got %+v", msgs)
	}
	q, ok := msgs[0].(proto.GetRoomData)
	if !ok || q.RoomID != "R1" || q.PlayerID != "A" {
		t.Fatalf("unexpected query %+v", msgs[0])
	}
	if h.client.View().Phase != PhaseQuerying {
		t.Fatalf("expected querying phase")
	}
}

func TestTwoClientsConvergeOnRunningRace(t *testing.T) {
	a := newHarness(t, alice)
	a.handle(proto.RoomData{})
	if a.conn.count(proto.InboundTypeCreateRoom) != 1 || a.client.View().Phase != PhaseCreating {
		t.Fatalf("empty room must trigger exactly one create: %+v", a.conn.messages())
	}
	a.handle(proto.RoomCreated{RoomID: "R1", SessionID: "s-1", PlayerID: "A", PlayerName: "alice"})
	if v := a.client.View(); v.Phase != PhaseJoined || !v.AmIHost || v.ReadyLabel != "0/2 ready" {
		t.Fatalf("unexpected creator view %+v", v)
	}

	b := newHarness(t, bob)
	b.handle(proto.RoomData{Room: &room.Snapshot{ID: "R1", Players: []room.Player{host(alice)}, Status: room.StatusWaiting, SessionID: "s-1"}})
	if b.conn.count(proto.InboundTypeJoinRoom) != 1 || b.client.View().Phase != PhaseJoining {
		t.Fatalf("roster without self must trigger exactly one join: %+v", b.conn.messages())
	}

	joined := proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), bob}}
	a.handle(joined)
	b.handle(joined)

	if v := b.client.View(); v.Phase != PhaseJoined || v.AmIHost || v.Opponent == nil || v.Opponent.ID != "A" {
		t.Fatalf("unexpected joiner view %+v", v)
	}

	if err := a.client.Ready(context.Background()); err != nil {
		t.Fatalf("ready A: %v", err)
	}
	if err := b.client.Ready(context.Background()); err != nil {
		t.Fatalf("ready B: %v", err)
	}
	if a.client.View().Phase != PhaseReadyWait {
		t.Fatalf("expected ready wait after ready intent")
	}

	ready := proto.PlayerReady{Room: runningSnapshot("s-2")}
	a.handle(ready)
	b.handle(ready)

	va, vb := a.client.View(), b.client.View()
	for _, v := range []View{va, vb} {
		if v.Status != room.StatusRunning || v.Phase != PhaseRacing || v.RaceState != racetimer.Armed {
			t.Fatalf("expected armed running race, got %+v", v)
		}
	}
	if !reflect.DeepEqual(va.Players, vb.Players) || !reflect.DeepEqual(va.Ready, vb.Ready) || va.SessionID != vb.SessionID {
		t.Fatalf("clients diverged:\n%+v\n%+v", va, vb)
	}
	if !reflect.DeepEqual(va.Ready, []string{"A", "B"}) {
		t.Fatalf("unexpected ready set %v", va.Ready)
	}
}

func TestDisconnectDuringRaceFailsOverAndStopsTimer(t *testing.T) {
	_, b := seatedPair(t)
	b.handle(proto.PlayerReady{Room: runningSnapshot("s-2")})

	blockUntil(t, b.clock, 1)
	b.clock.Advance(2 * time.Second)
	waitFor(t, "engine start", func() bool {
		started, _ := b.engine.snapshot()
		return len(started) == 1 && started[0] == "s-2"
	})
	if b.client.View().RaceState != racetimer.Running {
		t.Fatalf("expected running timer")
	}

	b.handle(proto.PlayerDisconnected{PlayerID: "A"})

	v := b.client.View()
	if len(v.Players) != 1 || v.Players[0].ID != "B" || !v.Players[0].IsHost || !v.AmIHost {
		t.Fatalf("expected B as sole host, got %+v", v.Players)
	}
	if v.Status != room.StatusWaiting || v.Phase != PhaseWaiting || v.RaceState != racetimer.Idle {
		t.Fatalf("race must be abandoned: %+v", v)
	}
	if v.ReadyCount != 0 || v.ReadyLabel != "0/2 ready" {
		t.Fatalf("abandon must clear readiness, got %q", v.ReadyLabel)
	}
	if !v.OpponentDisconnected || len(v.Disconnected) != 1 || v.Disconnected[0].ID != "A" {
		t.Fatalf("expected A tracked as disconnected: %+v", v)
	}
	if _, stops := b.engine.snapshot(); stops == 0 {
		t.Fatalf("engine must be stopped")
	}

	if err := b.client.Ready(context.Background()); err != nil {
		t.Fatalf("ready after abandon: %v", err)
	}
}

func TestRosterFollowsLatestBroadcast(t *testing.T) {
	a, _ := seatedPair(t)

	steps := []struct {
		msg  proto.ServerMessage
		want []string
	}{
		{proto.PlayerDisconnected{RoomID: "R1", PlayerID: "B", Players: []room.Player{host(alice)}}, []string{"A"}},
		{proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), carol}}, []string{"A", "C"}},
		{proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), carol}}, []string{"A", "C"}},
		{proto.PlayerDisconnected{RoomID: "R1", PlayerID: "C"}, []string{"A"}},
		{proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), bob, bob}}, []string{"A", "B"}},
	}
	for i, step := range steps {
		a.handle(step.msg)
		var got []string
		hosts := 0
		for _, p := range a.client.View().Players {
			got = append(got, p.ID)
			if p.IsHost {
				hosts++
			}
		}
		if !reflect.DeepEqual(got, step.want) {
			t.Fatalf("step %d: roster %v, want %v", i, got, step.want)
		}
		if hosts != 1 {
			t.Fatalf("step %d: expected exactly one host, got %d", i, hosts)
		}
	}
}

func TestHostFailsOverToEarliestSurvivor(t *testing.T) {
	_, b := seatedPair(t)
	b.handle(proto.PlayerDisconnected{PlayerID: "A"})

	v := b.client.View()
	if !v.AmIHost || v.Opponent != nil {
		t.Fatalf("B must take over as host: %+v", v)
	}
	if v.Status != room.StatusWaiting {
		t.Fatalf("room must survive in waiting, got %s", v.Status)
	}
}

func TestRoomDataIsIdempotent(t *testing.T) {
	h := newHarness(t, bob)
	snap := &room.Snapshot{
		ID:        "R1",
		Players:   []room.Player{host(alice), bob, alice},
		Ready:     []string{"A", "A", "Z"},
		Status:    room.StatusWaiting,
		SessionID: "s-1",
	}

	h.handle(proto.RoomData{Room: snap})
	first := h.client.View()
	h.handle(proto.RoomData{Room: snap})
	second := h.client.View()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("state changed on replay:\n%+v\n%+v", first, second)
	}
	if len(first.Players) != 2 || first.ReadyCount != 1 {
		t.Fatalf("duplicates leaked into the view: %+v", first)
	}
	if h.conn.count(proto.InboundTypeJoinRoom) != 0 || h.conn.count(proto.InboundTypeCreateRoom) != 0 {
		t.Fatalf("a seated snapshot must not trigger intents: %+v", h.conn.messages())
	}
}

func TestRedundantRoomDataIssuesNoSecondIntent(t *testing.T) {
	h := newHarness(t, alice)
	h.handle(proto.RoomData{}, proto.RoomData{})

	if n := h.conn.count(proto.InboundTypeCreateRoom); n != 1 {
		t.Fatalf("expected one create, got %d", n)
	}
}

func TestStaleStatsAreIgnored(t *testing.T) {
	a, _ := seatedPair(t)
	a.handle(proto.PlayerReady{Room: runningSnapshot("s-2")})

	a.handle(proto.PlayerStats{PlayerID: "B", PlayerName: "bob", SessionID: "s-1", Stats: room.Stats{WPM: 10}})
	if a.client.View().OpponentStats != nil {
		t.Fatalf("stats from a prior session must be dropped")
	}

	a.handle(proto.PlayerStats{PlayerID: "A", PlayerName: "alice", SessionID: "s-2", Stats: room.Stats{WPM: 99}})
	if a.client.View().OpponentStats != nil {
		t.Fatalf("own stats must not show as opponent stats")
	}

	want := room.Stats{WPM: 64, Accuracy: 93.5, Errors: 4}
	a.handle(proto.PlayerStats{PlayerID: "B", PlayerName: "bob", SessionID: "s-2", Stats: want})
	if got := a.client.View().OpponentStats; got == nil || *got != want {
		t.Fatalf("unexpected opponent stats %+v", got)
	}
}

func TestReadyRules(t *testing.T) {
	h := newHarness(t, alice)
	if err := h.client.Ready(context.Background()); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}

	h.handle(proto.RoomData{}, proto.RoomCreated{RoomID: "R1", SessionID: "s-1", PlayerID: "A", PlayerName: "alice"})
	for range 3 {
		if err := h.client.Ready(context.Background()); err != nil {
			t.Fatalf("ready: %v", err)
		}
	}
	if n := h.conn.count(proto.InboundTypePlayerReady); n != 1 {
		t.Fatalf("expected one ready intent per cycle, got %d", n)
	}

	h.handle(proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), bob}})
	h.handle(proto.PlayerReady{Room: runningSnapshot("s-2")})
	if err := h.client.Ready(context.Background()); !errors.Is(err, ErrRaceRunning) {
		t.Fatalf("expected ErrRaceRunning, got %v", err)
	}
}

func TestReadySendFailureAllowsRetry(t *testing.T) {
	h := newHarness(t, alice)
	h.handle(proto.RoomData{}, proto.RoomCreated{RoomID: "R1", SessionID: "s-1", PlayerID: "A", PlayerName: "alice"})

	h.conn.mu.Lock()
	h.conn.err = errors.New("socket gone")
	h.conn.mu.Unlock()
	if err := h.client.Ready(context.Background()); err == nil {
		t.Fatalf("expected send error")
	}

	h.conn.mu.Lock()
	h.conn.err = nil
	h.conn.mu.Unlock()
	if err := h.client.Ready(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := h.conn.count(proto.InboundTypePlayerReady); n != 1 {
		t.Fatalf("expected one delivered ready intent, got %d", n)
	}
}

func TestRaceExpiryReportsFinishAndNextCycle(t *testing.T) {
	a, _ := seatedPair(t)
	a.handle(proto.PlayerReady{Room: runningSnapshot("s-2")})

	blockUntil(t, a.clock, 1)
	a.clock.Advance(2 * time.Second)
	waitFor(t, "race start", func() bool { return a.client.View().RaceState == racetimer.Running })

	blockUntil(t, a.clock, 1)
	a.clock.Advance(10 * time.Second)
	waitFor(t, "finish intent", func() bool { return a.conn.count(proto.InboundTypePlayerFinished) == 1 })

	for _, m := range a.conn.messages() {
		if f, ok := m.(proto.FinishIntent); ok && (f.SessionID != "s-2" || f.PlayerID != "A") {
			t.Fatalf("unexpected finish intent %+v", f)
		}
	}

	a.handle(proto.RaceFinished{Room: room.Snapshot{
		ID:        "R1",
		Players:   []room.Player{host(alice), bob},
		Status:    room.StatusWaiting,
		SessionID: "s-2",
	}})
	v := a.client.View()
	if v.Phase != PhaseWaiting || v.Status != room.StatusWaiting || v.ReadyCount != 0 {
		t.Fatalf("expected waiting for the next cycle, got %+v", v)
	}
	if err := a.client.Ready(context.Background()); err != nil {
		t.Fatalf("ready for next race: %v", err)
	}
	if n := a.conn.count(proto.InboundTypePlayerReady); n != 1 {
		t.Fatalf("expected a fresh ready intent, got %d", n)
	}
}

func TestReconnectRequeriesAndResumes(t *testing.T) {
	_, b := seatedPair(t)
	before := len(b.conn.messages())

	b.handle(proto.Reconnect{})
	if b.client.View().Phase != PhaseQuerying {
		t.Fatalf("reconnect must re-query")
	}
	msgs := b.conn.messages()
	if len(msgs) != before+1 {
		t.Fatalf("expected one query, got %+v", msgs[before:])
	}
	if q, ok := msgs[before].(proto.GetRoomData); !ok || q.PlayerID != "B" {
		t.Fatalf("unexpected query %+v", msgs[before])
	}

	b.handle(proto.RoomData{Room: &room.Snapshot{ID: "R1", Players: []room.Player{host(alice), bob}, Status: room.StatusWaiting, SessionID: "s-1"}})
	if v := b.client.View(); v.Phase != PhaseJoined || len(v.Players) != 2 {
		t.Fatalf("expected to resume seat, got %+v", v)
	}
	if n := len(b.conn.messages()); n != before+1 {
		t.Fatalf("resuming must not create or join: %+v", b.conn.messages()[before:])
	}
}

func TestSelfDisconnectRejoins(t *testing.T) {
	_, b := seatedPair(t)
	b.handle(proto.PlayerDisconnected{RoomID: "R1", PlayerID: "B", Players: []room.Player{host(alice)}})
	b.handle(proto.RoomData{Room: &room.Snapshot{ID: "R1", Players: []room.Player{host(alice)}, Status: room.StatusWaiting}})

	if n := b.conn.count(proto.InboundTypeJoinRoom); n != 2 {
		t.Fatalf("expected a second join, got %d", n)
	}
}

func TestDuplicateCreateResolvedAsJoin(t *testing.T) {
	b := newHarness(t, bob)
	b.handle(proto.RoomData{})
	if b.client.View().Phase != PhaseCreating {
		t.Fatalf("expected creating phase")
	}

	b.handle(proto.PlayerJoined{RoomID: "R1", Players: []room.Player{host(alice), bob}})
	v := b.client.View()
	if v.Phase != PhaseJoined || v.AmIHost {
		t.Fatalf("losing the create race must seat B as guest: %+v", v)
	}
}

func TestRoomFullError(t *testing.T) {
	c := newHarness(t, carol)
	c.handle(proto.RoomData{Room: &room.Snapshot{ID: "R1", Players: []room.Player{host(alice), bob}, Status: room.StatusWaiting}})
	c.handle(proto.ErrorMessage{Code: proto.ErrCodeRoomFull, Msg: "room is full"})

	v := c.client.View()
	if !v.IsRoomFull || v.Phase != PhaseUninitialized {
		t.Fatalf("unexpected view %+v", v)
	}
	var em proto.ErrorMessage
	if !errors.As(v.LastError, &em) || em.Code != proto.ErrCodeRoomFull {
		t.Fatalf("expected room_full error, got %v", v.LastError)
	}
}

func TestFullRunningRoomNeverStartsRace(t *testing.T) {
	c := newHarness(t, carol)
	snap := runningSnapshot("s-9")
	c.handle(proto.RoomData{Room: &snap})

	if v := c.client.View(); v.Phase != PhaseJoining || v.RaceState != racetimer.Idle {
		t.Fatalf("outsider armed the race: %+v", v)
	}

	c.handle(proto.ErrorMessage{Code: proto.ErrCodeRoomFull, Msg: "room is full"})
	c.clock.Advance(15 * time.Second)

	v := c.client.View()
	if v.Phase != PhaseUninitialized || v.Status != room.StatusWaiting || v.RaceState != racetimer.Idle {
		t.Fatalf("unexpected view after room_full: %+v", v)
	}
	if !v.IsRoomFull {
		t.Fatalf("roster should still show the full room: %+v", v)
	}
	if started, _ := c.engine.snapshot(); len(started) != 0 {
		t.Fatalf("engine started for a room we are not in: %v", started)
	}
	if n := c.conn.count(proto.InboundTypePlayerFinished); n != 0 {
		t.Fatalf("outsider sent %d finish intents", n)
	}
}

func TestRoomFullAfterLostCreate(t *testing.T) {
	c := newHarness(t, carol)
	c.handle(proto.RoomData{})
	if c.client.View().Phase != PhaseCreating {
		t.Fatalf("expected creating, got %v", c.client.View().Phase)
	}

	c.handle(proto.ErrorMessage{Code: proto.ErrCodeRoomFull, Msg: "room is full"})
	if v := c.client.View(); v.Phase != PhaseUninitialized {
		t.Fatalf("client stuck after lost create: %+v", v)
	}
}

func TestCloseIgnoresLaterMessages(t *testing.T) {
	var changes int
	var mu sync.Mutex
	conn := &fakeConn{}
	c := New(conn, Params{RoomID: "R1", PlayerID: "A", PlayerName: "alice"}, OnChange(func(View) {
		mu.Lock()
		changes++
		mu.Unlock()
	}))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Close()
	c.Handle(context.Background(), proto.RoomData{})

	if len(conn.messages()) != 1 {
		t.Fatalf("closed client sent intents: %+v", conn.messages())
	}
	if err := c.Ready(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if changes != 1 {
		t.Fatalf("expected one change notification, got %d", changes)
	}
}

func TestLeaveSendsIntentAndCloses(t *testing.T) {
	a, _ := seatedPair(t)
	if err := a.client.Leave(context.Background()); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if a.conn.count(proto.InboundTypeLeaveRoom) != 1 {
		t.Fatalf("expected leave intent")
	}
	if err := a.client.Leave(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestStatusLineCarriesReadyCount(t *testing.T) {
	a, _ := seatedPair(t)
	a.handle(proto.PlayerReady{Room: room.Snapshot{
		ID:      "R1",
		Players: []room.Player{host(alice), bob},
		Ready:   []string{"B"},
		Status:  room.StatusWaiting,
	}})

	if got := a.client.View().StatusLine(); got != "Waiting for players to get ready (1/2 ready)" {
		t.Fatalf("unexpected status line %q", got)
	}
}
