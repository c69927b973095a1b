package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
)

// setupTestStore opens a SQLite-backed remote store, or Postgres when
// COACH_TEST_POSTGRES_DSN is set.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	driver, dsn := "sqlite", filepath.Join(t.TempDir(), "remote.db")
	if pg := os.Getenv("COACH_TEST_POSTGRES_DSN"); pg != "" {
		driver, dsn = "postgres", pg
	}
	s, err := Open(ctx, driver, dsn)
	if err != nil {
		t.Fatalf("failed to open remote store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	if got := pg.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?"); got != "UPDATE t SET a = $1, b = $2 WHERE id = $3" {
		t.Errorf("rebind() = %q", got)
	}
	lite := New(nil, SQLite)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind() sqlite = %q", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
}

func TestInsert_Upsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	rec := remote.GoalRecord{
		ID: "goal-remote-1", UserID: "u", LocalID: 1, Text: "Write book",
		Category: schema.CategoryPersonal, Progress: 10,
		Subtasks:  []schema.Subtask{{ID: 2, Text: "Outline"}},
		CreatedAt: now, UpdatedAt: now,
	}
	got, err := s.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	g := got.(remote.GoalRecord)
	if g.Text != "Write book" || len(g.Subtasks) != 1 || g.Subtasks[0].Text != "Outline" {
		t.Errorf("Insert() = %+v", g)
	}

	rec.Progress = 30
	if _, err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() replay error = %v", err)
	}
	all, err := s.List(ctx, remote.Goals, remote.Filter{UserID: "u"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List() len = %d, want 1 after replayed insert", len(all))
	}
	if p := all[0].(remote.GoalRecord).Progress; p != 30 {
		t.Errorf("progress = %d, want 30", p)
	}
}

func TestInsert_AssignsID(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.Insert(context.Background(), remote.TinyGoalRecord{UserID: "u", LocalID: 4, Text: "stretch"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if got.RecordID() == "" {
		t.Error("Insert() returned empty id")
	}
}

func TestUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Update(ctx, remote.DailyTasks, "nope", remote.Fields{"completed": true}); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}

	rec := remote.FromDailyTask("u", schema.DailyTask{Date: "2024-02-01", Text: "Call mum"})
	if _, err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	done := time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC)
	got, err := s.Update(ctx, remote.DailyTasks, rec.ID, remote.Fields{"completed": true, "completedAt": done})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	d := got.(remote.DailyTaskRecord)
	if !d.Completed || d.CompletedAt == nil || !d.CompletedAt.Equal(done) || d.Text != "Call mum" {
		t.Errorf("Update() = %+v", d)
	}
}

func TestDeleteAndFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a := remote.FromQuote("alice", schema.DailyQuote{Date: "2024-01-01", Text: "a", Author: "x"})
	b := remote.FromQuote("bob", schema.DailyQuote{Date: "2024-01-01", Text: "b", Author: "y"})
	for _, rec := range []remote.Record{a, b} {
		if _, err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	alice, err := s.List(ctx, remote.Quotes, remote.Filter{UserID: "alice"})
	if err != nil || len(alice) != 1 {
		t.Fatalf("List(alice) = %v, %v; want 1 record", alice, err)
	}

	if err := s.Delete(ctx, remote.Quotes, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, remote.Quotes, a.ID); err != nil {
		t.Errorf("Delete() missing row error = %v, want nil", err)
	}
	all, _ := s.List(ctx, remote.Quotes, remote.Filter{})
	if len(all) != 1 || all[0].Owner() != "bob" {
		t.Errorf("List() after delete = %v", all)
	}
}

func TestPreferencesBooleans(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := remote.FromPreferences("u", schema.UserPreferences{ReminderTime: "07:30", Theme: "light", Notifications: false, ShowQuote: true})
	if _, err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := s.List(ctx, remote.Preferences, remote.Filter{UserID: "u"})
	if err != nil || len(got) != 1 {
		t.Fatalf("List() = %v, %v", got, err)
	}
	p := got[0].(remote.PreferencesRecord)
	if p.Notifications || !p.ShowQuote || p.Theme != "light" {
		t.Errorf("preferences = %+v", p)
	}
}
