package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/typeduel-server/internal/config"
	"github.com/vovakirdan/typeduel-server/internal/core"
	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/store"
	"github.com/vovakirdan/typeduel-server/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	hub    *core.Hub
	store  store.Store
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
}

// startTestServer runs a hub backed by an in-memory results store behind a
// test HTTP server.
func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := core.NewHub(st)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Default()
	for _, fn := range mutate {
		fn(&cfg)
	}
	disabledLogger := zerolog.New(nil)
	server := NewServer(hub, st, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, hub: hub, store: st}
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg proto.ClientMessage) {
	t.Helper()
	in, err := proto.EncodeClient(msg)
	if err != nil {
		t.Fatalf("encode %s: %v", msg.Type(), err)
	}
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("send %s: %v", msg.Type(), err)
	}
}

// readUntil reads server messages until one matches accept.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, accept func(proto.ServerMessage) bool) proto.ServerMessage {
	t.Helper()
	for {
		var raw proto.RawOutbound
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			t.Fatalf("read: %v", err)
		}
		msg, err := proto.DecodeServer(raw)
		if err != nil {
			t.Fatalf("decode %q: %v", raw.Event, err)
		}
		if accept(msg) {
			return msg
		}
	}
}

func isEvent(name string) func(proto.ServerMessage) bool {
	return func(m proto.ServerMessage) bool {
		return m.Event() == name
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
