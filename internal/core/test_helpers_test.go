package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/typeduel-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// sequentialSessions returns predictable session ids s-1, s-2, ...
func sequentialSessions() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("s-%d", n)
	}
}

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil, append([]Option{WithSessionIDs(sequentialSessions())}, opts...)...)
	go hub.Run(ctx)
	return hub
}

func connect(hub *Hub, id string) *Client {
	c := NewClient(id, id)
	hub.RegisterClient(c)
	return c
}

// seatPair creates room R1 with A as host and B as guest and drains the
// bootstrap events.
func seatPair(t *testing.T, hub *Hub) (a, b *Client) {
	t.Helper()

	a = connect(hub, "conn-a")
	b = connect(hub, "conn-b")

	a.Commands <- &Command{Kind: CommandCreateRoom, Room: "R1", PlayerID: "A", PlayerName: "alice"}
	mustEvent(t, a.Events, EventRoomCreated)

	b.Commands <- &Command{Kind: CommandJoinRoom, Room: "R1", PlayerID: "B", PlayerName: "bob"}
	mustEvent(t, a.Events, EventPlayerJoined)
	mustEvent(t, b.Events, EventPlayerJoined)
	return a, b
}

type memoryResults struct {
	mu      sync.Mutex
	results []*store.RaceResult
}

func (m *memoryResults) SaveResult(_ context.Context, res *store.RaceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *memoryResults) ListSessionResults(_ context.Context, sessionID string) ([]*store.RaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.RaceResult
	for _, r := range m.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryResults) ListRoomResults(_ context.Context, roomID string, _ int) ([]*store.RaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.RaceResult
	for _, r := range m.results {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out, nil
}
