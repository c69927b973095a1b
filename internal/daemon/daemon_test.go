package daemon

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/netstatus"
	"github.com/jhousvawls/daily-coach/internal/queue"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/store"
	"github.com/jhousvawls/daily-coach/internal/syncer"
)

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func setupEngine(t *testing.T, db *store.DB) (*syncer.Engine, *remote.Memory) {
	t.Helper()
	mem := remote.NewMemory()
	cfg := syncer.DefaultConfig()
	cfg.Logger = quiet()
	cfg.DebounceInterval = 20 * time.Millisecond
	cfg.PollInterval = 0
	engine, err := syncer.NewWithConfig(db, mem, netstatus.NewSwitch(true), auth.NewStatic("user-1"), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	if err := engine.SetSyncEnabled(true); err != nil {
		t.Fatalf("SetSyncEnabled failed: %v", err)
	}
	return engine, mem
}

func openDB(t *testing.T, path string) *store.DB {
	t.Helper()
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewWithConfig_Validation(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "coach.db"))
	engine, _ := setupEngine(t, db)

	if _, err := New(nil, db.Path()); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(engine, ""); err == nil {
		t.Error("expected error for empty path")
	}
	d, err := NewWithConfig(engine, db.Path(), &Config{})
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	if d.config.DebounceInterval <= 0 || d.config.Logger == nil {
		t.Errorf("zero config not defaulted: %+v", d.config)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
}

func TestDaemon_PicksUpExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.db")
	db := openDB(t, path)
	engine, mem := setupEngine(t, db)

	d, err := NewWithConfig(engine, path, &Config{DebounceInterval: 20 * time.Millisecond, Logger: quiet()})
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for !d.watcher.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start watching")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A second connection stands in for a CLI process.
	cli := openDB(t, path)
	op := queue.Create(remote.FromDailyTask("", schema.DailyTask{Date: "2024-01-01", Text: "From the CLI"}))
	if _, err := queue.NewQuiet(cli).Append(op); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for mem.Len(remote.DailyTasks) != 1 {
		if time.Now().After(deadline.Add(2 * time.Second)) {
			t.Fatal("external write was not synced")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if engine.State().PendingOperations != 0 {
		t.Errorf("PendingOperations = %d, want 0", engine.State().PendingOperations)
	}
}

func TestDaemon_StopUnblocksStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.db")
	db := openDB(t, path)
	engine, _ := setupEngine(t, db)

	d, err := NewWithConfig(engine, path, &Config{Logger: quiet()})
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for !d.watcher.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start watching")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
