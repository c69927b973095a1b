package migrate

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/identity"
	"github.com/jhousvawls/daily-coach/internal/netstatus"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/store"
	"github.com/jhousvawls/daily-coach/internal/syncer"
	"github.com/jhousvawls/daily-coach/internal/tracker"
)

const testUser = "user-1"

func setupMigrator(t *testing.T) (*Migrator, *store.Store, *remote.Memory) {
	t.Helper()
	s := store.NewQuiet(store.NewMemoryKV())
	mem := remote.NewMemory()
	m := NewWithConfig(s, mem, auth.NewStatic(testUser), &Config{Logger: log.New(io.Discard, "", 0)})
	t.Cleanup(m.Close)
	return m, s, mem
}

func seedGoals(t *testing.T, s *store.Store, texts ...string) {
	t.Helper()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var goals []schema.Goal
	for i, text := range texts {
		g := schema.Goal{ID: int64(i + 1), Text: text}
		g.SetDefaults(now)
		goals = append(goals, g)
	}
	if err := s.SetGoals(goals); err != nil {
		t.Fatalf("SetGoals failed: %v", err)
	}
}

func drain(ch <-chan Progress) []Progress {
	var out []Progress
	for len(ch) > 0 {
		out = append(out, <-ch)
	}
	return out
}

func TestRun_Unauthenticated(t *testing.T) {
	s := store.NewQuiet(store.NewMemoryKV())
	m := NewWithConfig(s, remote.NewMemory(), auth.NewStatic(""), nil)

	_, err := m.Run(context.Background(), Options{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if _, ok := m.Status(); ok {
		t.Error("status persisted for an unauthenticated run")
	}
}

func TestRun_EmptyStore(t *testing.T) {
	m, _, _ := setupMigrator(t)
	ch, unsub := m.Subscribe(64)
	defer unsub()

	result, err := m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Success || result.TotalItems != 0 {
		t.Errorf("result = %+v, want success with no items", result)
	}

	events := drain(ch)
	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	if events[0].Stage != StagePrepare {
		t.Errorf("first stage = %s, want prepare", events[0].Stage)
	}
	if last := events[len(events)-1]; last.Stage != StageComplete || last.Percentage != 100 {
		t.Errorf("last event = %+v, want complete at 100%%", last)
	}

	var seen []Stage
	for _, ev := range events {
		if len(seen) == 0 || seen[len(seen)-1] != ev.Stage {
			seen = append(seen, ev.Stage)
		}
	}
	if len(seen) != len(Stages()) {
		t.Errorf("stages = %v, want %v", seen, Stages())
	}
}

func TestRun_ThreeGoals(t *testing.T) {
	m, s, mem := setupMigrator(t)
	seedGoals(t, s, "Run a marathon", "Learn Go", "Read 20 books")

	result, err := m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Success || result.Migrated.Goals != 3 || result.TotalItems != 3 {
		t.Errorf("result = %+v, want 3 goals migrated", result)
	}

	ids := identity.NewTable(s.KV())
	if n := ids.Len(identity.EntityGoal); n != 3 {
		t.Errorf("goal mappings = %d, want 3", n)
	}
	for localID := int64(1); localID <= 3; localID++ {
		remoteID, ok := ids.GetRemoteID(localID, identity.EntityGoal)
		if !ok {
			t.Fatalf("goal %d not mapped", localID)
		}
		row, ok := mem.Row(remote.Goals, remoteID)
		if !ok {
			t.Fatalf("goal %d missing remotely", localID)
		}
		if row["user_id"] != testUser {
			t.Errorf("goal %d user_id = %v", localID, row["user_id"])
		}
	}

	st, ok := m.Status()
	if !ok || !st.Completed || st.Result == nil || st.Result.Migrated.Goals != 3 {
		t.Errorf("status = %+v, want completed with the result", st)
	}
}

// One failing item does not stop the stage.
func TestRun_PartialFailure(t *testing.T) {
	m, s, mem := setupMigrator(t)
	seedGoals(t, s, "First", "Second", "Third")

	var inserts int
	mem.FailFunc(func(op remote.Op, _ remote.Collection, _ string) error {
		if op == remote.OpInsert {
			inserts++
			if inserts == 2 {
				return errors.New("permission denied")
			}
		}
		return nil
	})

	result, err := m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Success {
		t.Error("Success = true despite a failed item")
	}
	if result.Migrated.Goals != 2 {
		t.Errorf("Migrated.Goals = %d, want 2", result.Migrated.Goals)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], `"Second"`) {
		t.Errorf("Errors = %v, want one error naming the second goal", result.Errors)
	}

	ids := identity.NewTable(s.KV())
	for _, tt := range []struct {
		localID int64
		mapped  bool
	}{{1, true}, {2, false}, {3, true}} {
		if _, ok := ids.GetRemoteID(tt.localID, identity.EntityGoal); ok != tt.mapped {
			t.Errorf("goal %d mapped = %v, want %v", tt.localID, ok, tt.mapped)
		}
	}
	if !m.NeedsMigration() {
		t.Error("NeedsMigration = false after a partial run")
	}
	if state, err := syncer.ReadState(s.KV()); err != nil || state.SyncEnabled {
		t.Errorf("sync state = %+v (err %v), want sync still disabled", state, err)
	}
}

// Edits made after a successful run are queued and update the migrated
// records instead of creating new ones.
func TestRun_EnablesSync(t *testing.T) {
	m, s, mem := setupMigrator(t)
	seedGoals(t, s, "Learn Go")

	result, err := m.Run(context.Background(), Options{})
	if err != nil || !result.Success {
		t.Fatalf("Run = %+v, %v", result, err)
	}

	cfg := syncer.DefaultConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	cfg.PollInterval = 0
	engine, err := syncer.NewWithConfig(s.KV(), mem, netstatus.NewSwitch(true), auth.NewStatic(testUser), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	t.Cleanup(engine.Stop)
	if err := engine.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !engine.State().SyncEnabled {
		t.Fatal("sync still disabled after a successful migration")
	}

	tr := tracker.NewQuiet(s, engine)
	if _, err := tr.SetProgress(1, 40); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if n := engine.Queue().Len(); n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	report, err := engine.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if report.Committed != 1 {
		t.Errorf("report = %+v, want 1 committed", report)
	}
	if n := mem.Len(remote.Goals); n != 1 {
		t.Errorf("remote has %d goals, want 1", n)
	}
	if n := identity.NewTable(s.KV()).Len(identity.EntityGoal); n != 1 {
		t.Errorf("goal mappings = %d, want 1", n)
	}
}

func TestRun_AllCollections(t *testing.T) {
	m, s, mem := setupMigrator(t)
	seedGoals(t, s, "Goal")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SetTinyGoals([]schema.TinyGoal{{ID: 10, Text: "Tiny", CreatedAt: &now}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDailyTasks([]schema.DailyTask{{Date: "2024-01-01", Text: "Focus"}, {Date: "2024-01-02", Text: "More"}}); err != nil {
		t.Fatal(err)
	}
	gym := schema.RecurringTask{
		ID:         "gym",
		Text:       "Gym",
		Recurrence: schema.Recurrence{Type: schema.RecurrenceWeekly, Days: []int{1, 3, 5}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.SetRecurringTasks([]schema.RecurringTask{gym}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetQuotes([]schema.DailyQuote{{Date: "2024-01-01", Text: "Onward", Author: "A"}}); err != nil {
		t.Fatal(err)
	}
	prefs := schema.DefaultPreferences()
	prefs.Theme = "dark"
	prefs.APIKey = "sk-local"
	if err := s.SetPreferences(prefs); err != nil {
		t.Fatal(err)
	}

	result, err := m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := Counts{Goals: 1, TinyGoals: 1, DailyTasks: 2, RecurringTasks: 1, Quotes: 1, Preferences: 1}
	if result.Migrated != want {
		t.Errorf("Migrated = %+v, want %+v", result.Migrated, want)
	}
	if result.TotalItems != want.Total() {
		t.Errorf("TotalItems = %d, want %d", result.TotalItems, want.Total())
	}

	row, ok := mem.Row(remote.Preferences, remote.PreferencesID(testUser))
	if !ok {
		t.Fatal("preferences missing remotely")
	}
	for k, v := range row {
		if v == "sk-local" {
			t.Errorf("API key stored remotely in column %s", k)
		}
	}

	mismatches, err := m.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(mismatches) != 0 {
		t.Errorf("mismatches = %v, want none", mismatches)
	}
}

func TestNeedsMigration(t *testing.T) {
	m, s, _ := setupMigrator(t)
	if m.NeedsMigration() {
		t.Error("NeedsMigration = true for an empty store")
	}

	seedGoals(t, s, "Goal")
	if !m.NeedsMigration() {
		t.Error("NeedsMigration = false with unmigrated data")
	}

	if _, err := m.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if m.NeedsMigration() {
		t.Error("NeedsMigration = true after a successful run")
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if !m.NeedsMigration() {
		t.Error("NeedsMigration = false after Reset with the same data")
	}
}

func TestRun_AlreadyMigrated(t *testing.T) {
	m, s, mem := setupMigrator(t)
	seedGoals(t, s, "Goal A", "Goal B")

	if _, err := m.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := m.Run(context.Background(), Options{}); !errors.Is(err, ErrAlreadyMigrated) {
		t.Fatalf("second Run err = %v, want ErrAlreadyMigrated", err)
	}

	result, err := m.Run(context.Background(), Options{Force: true})
	if err != nil {
		t.Fatalf("forced Run failed: %v", err)
	}
	if result.Migrated.Goals != 2 {
		t.Errorf("forced Migrated.Goals = %d, want 2", result.Migrated.Goals)
	}
	if n := mem.Len(remote.Goals); n != 2 {
		t.Errorf("remote goals = %d after forced re-run, want 2 (no duplicates)", n)
	}
	if n := identity.NewTable(s.KV()).Len(identity.EntityGoal); n != 2 {
		t.Errorf("mappings = %d, want 2", n)
	}
}

func TestValidate_ReportsMismatch(t *testing.T) {
	m, s, _ := setupMigrator(t)
	seedGoals(t, s, "One", "Two")

	mismatches, err := m.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(mismatches) != 1 {
		t.Fatalf("mismatches = %v, want one", mismatches)
	}
	want := Mismatch{Collection: remote.Goals, Local: 2, Remote: 0}
	if mismatches[0] != want {
		t.Errorf("mismatch = %+v, want %+v", mismatches[0], want)
	}
	if got := want.String(); got != "goals: 2 local, 0 remote" {
		t.Errorf("String() = %q", got)
	}
}
