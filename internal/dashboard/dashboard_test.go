package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/migrate"
	"github.com/jhousvawls/daily-coach/internal/netstatus"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/store"
	"github.com/jhousvawls/daily-coach/internal/syncer"
)

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Logger: quiet()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
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

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Logger: quiet()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" || addr == "127.0.0.1:0" {
		t.Errorf("expected a bound address, got %q", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestHealthAndRoot(t *testing.T) {
	server := NewServer(&Config{Logger: quiet()})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("unexpected health %+v", body)
	}

	root, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	root.Body.Close()
	if root.StatusCode != http.StatusOK {
		t.Errorf("root status = %d", root.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope failed: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", missing.StatusCode)
	}
}

func TestBroadcast(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := []*websocket.Conn{dial(t, ctx, server), dial(t, ctx, server)}
	waitFor(t, "clients", func() bool { return server.ClientCount() == len(conns) })

	progress := migrate.Progress{Stage: migrate.StageGoals, Current: 1, Total: 3, Percentage: 33.3, CurrentItem: "Run"}
	if err := server.Publish(MessageTypeMigrationProgress, progress); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, conn := range conns {
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeMigrationProgress {
			t.Fatalf("client %d: type = %s", i, msg.Type)
		}
		var got migrate.Progress
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("client %d: bad payload: %v", i, err)
		}
		if got != progress {
			t.Errorf("client %d: got %+v, want %+v", i, got, progress)
		}
		if msg.Timestamp.IsZero() {
			t.Errorf("client %d: missing timestamp", i)
		}
	}
}

func TestLateClientReceivesLatest(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = server.Publish(MessageTypeSyncState, syncer.State{PendingOperations: 1})
	_ = server.Publish(MessageTypeSyncState, syncer.State{PendingOperations: 2})
	waitFor(t, "broadcast", func() bool {
		s := server.snapshot()
		if len(s) != 1 {
			return false
		}
		var msg Message
		_ = json.Unmarshal(s[0], &msg)
		var state syncer.State
		_ = json.Unmarshal(msg.Data, &state)
		return state.PendingOperations == 2
	})

	conn := dial(t, ctx, server)
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncState {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeSyncState)
	}
	var state syncer.State
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.PendingOperations != 2 {
		t.Errorf("pending = %d, want the latest value 2", state.PendingOperations)
	}
}

func TestHandler_FollowEngine(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := syncer.DefaultConfig()
	cfg.Logger = quiet()
	engine, err := syncer.NewWithConfig(store.NewMemoryKV(), remote.NewMemory(), netstatus.NewSwitch(true), auth.NewStatic("user-1"), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	if err := engine.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	stats := schema.UserStats{GoalsCompleted: 4, CurrentStreak: 2}
	h := NewHandler(server, func() schema.UserStats { return stats }, quiet())
	h.FollowEngine(engine)
	waitFor(t, "initial messages", func() bool { return len(server.snapshot()) == 2 })

	conn := dial(t, ctx, server)
	first := readMessage(t, ctx, conn)
	second := readMessage(t, ctx, conn)
	if first.Type != MessageTypeSyncState || second.Type != MessageTypeStats {
		t.Fatalf("got %s then %s", first.Type, second.Type)
	}
	var data StatsData
	if err := json.Unmarshal(second.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.User != stats {
		t.Errorf("stats = %+v, want %+v", data.User, stats)
	}

	waitFor(t, "client", func() bool { return server.ClientCount() == 1 })
	if err := engine.SetSyncEnabled(true); err != nil {
		t.Fatalf("SetSyncEnabled failed: %v", err)
	}
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncState {
		t.Fatalf("type = %s", msg.Type)
	}
	var state syncer.State
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatal(err)
	}
	if !state.SyncEnabled {
		t.Error("expected the enabled state to be forwarded")
	}

	engine.Stop()
	h.Wait()
}
