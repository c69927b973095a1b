package remote

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jhousvawls/daily-coach/internal/schema"
)

func testTime() time.Time {
	return time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
}

func TestParseCollection(t *testing.T) {
	for _, c := range Collections() {
		got, err := ParseCollection(string(c))
		if err != nil || got != c {
			t.Errorf("ParseCollection(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseCollection("subtasks"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("ParseCollection(subtasks) error = %v, want ErrUnknownCollection", err)
	}
}

func TestEncodeRecord_ColumnNames(t *testing.T) {
	now := testTime()
	rec := GoalRecord{
		ID: "g1", UserID: "u1", LocalID: 5, Text: "Ship it",
		Category: schema.CategoryProfessional, Progress: 40, TargetDate: "2024-04-01",
		CompletedAt: &now, Subtasks: []schema.Subtask{{ID: 6, Text: "Write tests"}},
		CreatedAt: now, UpdatedAt: now,
	}

	row, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}

	tests := []struct {
		column string
		want   any
	}{
		{"id", "g1"},
		{"user_id", "u1"},
		{"local_id", int64(5)},
		{"progress", int64(40)},
		{"target_date", "2024-04-01"},
		{"completed_at", "2024-03-04T10:30:00Z"},
		{"subtasks", `[{"completed":false,"id":6,"text":"Write tests"}]`},
		{"category", "professional"},
	}
	for _, tt := range tests {
		if got := row[tt.column]; !reflect.DeepEqual(got, tt.want) {
			t.Errorf("row[%q] = %#v, want %#v", tt.column, got, tt.want)
		}
	}
	if _, ok := row["completedAt"]; ok {
		t.Error("row carries canonical field name completedAt")
	}
}

func TestDecodeRow_RoundTrip(t *testing.T) {
	now := testTime()
	tests := []Record{
		GoalRecord{ID: "g", UserID: "u", LocalID: 1, Text: "Goal", Category: schema.CategoryPersonal,
			Subtasks: []schema.Subtask{}, CreatedAt: now, UpdatedAt: now},
		TinyGoalRecord{ID: "t", UserID: "u", LocalID: 2, Text: "Tiny", CreatedAt: &now},
		DailyTaskRecord{ID: "d", UserID: "u", Date: "2024-03-04", Text: "Focus", Completed: true, CompletedAt: &now},
		RecurringTaskRecord{ID: "r", UserID: "u", LocalID: "rt-1", Text: "Gym",
			Recurrence: schema.Recurrence{Type: schema.RecurrenceWeekly, Days: []int{1, 3, 5}},
			CreatedAt:  now, UpdatedAt: now},
		QuoteRecord{ID: "q", UserID: "u", Date: "2024-03-04", Text: "Onward", Author: "Anon", Mood: "calm"},
		PreferencesRecord{ID: "p", UserID: "u", ReminderTime: "08:00", Theme: "dark", ShowQuote: true},
	}
	for _, rec := range tests {
		t.Run(string(rec.Collection()), func(t *testing.T) {
			row, err := EncodeRecord(rec)
			if err != nil {
				t.Fatalf("EncodeRecord() error = %v", err)
			}
			got, err := DecodeRow(rec.Collection(), row)
			if err != nil {
				t.Fatalf("DecodeRow() error = %v", err)
			}
			if !reflect.DeepEqual(got, rec) {
				t.Errorf("DecodeRow() = %#v, want %#v", got, rec)
			}
		})
	}
}

func TestDecodeRow_DriverValues(t *testing.T) {
	// SQLite returns booleans as integers and text as bytes.
	row := Row{
		"id": []byte("d1"), "user_id": "u", "date": "2024-01-02", "text": "x",
		"completed": int64(1), "completed_at": nil,
	}
	rec, err := DecodeRow(DailyTasks, row)
	if err != nil {
		t.Fatalf("DecodeRow() error = %v", err)
	}
	d := rec.(DailyTaskRecord)
	if d.ID != "d1" || !d.Completed || d.CompletedAt != nil {
		t.Errorf("DecodeRow() = %+v", d)
	}
}

func TestEncodeFields(t *testing.T) {
	now := testTime()
	row, err := EncodeFields(Goals, Fields{"progress": 70, "completedAt": now, "updatedAt": &now})
	if err != nil {
		t.Fatalf("EncodeFields() error = %v", err)
	}
	if row["progress"] != int64(70) || row["completed_at"] != "2024-03-04T10:30:00Z" {
		t.Errorf("EncodeFields() = %#v", row)
	}

	// A JSON-decoded float is accepted when integral.
	if _, err := EncodeFields(Goals, Fields{"progress": 70.0}); err != nil {
		t.Errorf("EncodeFields() integral float error = %v", err)
	}

	errTests := []struct {
		name   string
		fields Fields
	}{
		{"unknown field", Fields{"colour": "red"}},
		{"id", Fields{"id": "other"}},
		{"owner", Fields{"userId": "other"}},
		{"fractional int", Fields{"progress": 1.5}},
		{"bad time", Fields{"completedAt": "yesterday"}},
		{"wrong text type", Fields{"text": 12}},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeFields(Goals, tt.fields); err == nil {
				t.Errorf("EncodeFields(%v) expected error", tt.fields)
			}
		})
	}
}

func TestDeterministicIDs(t *testing.T) {
	a := DailyTaskID("u1", "2024-01-01")
	if a != DailyTaskID("u1", "2024-01-01") {
		t.Error("DailyTaskID not deterministic")
	}
	if a == DailyTaskID("u2", "2024-01-01") {
		t.Error("DailyTaskID ignores user")
	}
	if a == QuoteID("u1", "2024-01-01") {
		t.Error("daily task and quote ids collide for same date")
	}
	if PreferencesID("u1") != FromPreferences("u1", schema.DefaultPreferences()).ID {
		t.Error("FromPreferences does not use PreferencesID")
	}
}

func TestFromPreferences_OmitsCredential(t *testing.T) {
	prefs := schema.DefaultPreferences()
	prefs.APIKey = "sk-secret"

	row, err := EncodeRecord(FromPreferences("u", prefs))
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}
	for col, v := range row {
		if v == "sk-secret" {
			t.Errorf("credential leaked into column %s", col)
		}
	}
	if got := FromPreferences("u", prefs).Preferences("sk-secret"); got != prefs {
		t.Errorf("Preferences() = %+v, want %+v", got, prefs)
	}
}

func TestMemory_InsertUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec, err := m.Insert(ctx, TinyGoalRecord{UserID: "u", LocalID: 1, Text: "walk"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if rec.RecordID() == "" {
		t.Fatal("Insert() did not assign an id")
	}

	// Same id again replaces the row.
	again := Stamp(TinyGoalRecord{LocalID: 1, Text: "walk the dog"}, rec.RecordID(), "u")
	if _, err := m.Insert(ctx, again); err != nil {
		t.Fatalf("Insert() upsert error = %v", err)
	}
	if n := m.Len(TinyGoals); n != 1 {
		t.Errorf("Len() = %d, want 1 after upsert", n)
	}
	row, _ := m.Row(TinyGoals, rec.RecordID())
	if row["text"] != "walk the dog" {
		t.Errorf("row text = %v", row["text"])
	}
}

func TestMemory_UpdateDeleteList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Update(ctx, Goals, "missing", Fields{"progress": 10}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}

	for _, user := range []string{"u1", "u1", "u2"} {
		if _, err := m.Insert(ctx, GoalRecord{UserID: user, Text: "g", Category: schema.CategoryPersonal}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	mine, err := m.List(ctx, Goals, Filter{UserID: "u1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("List(u1) len = %d, want 2", len(mine))
	}

	id := mine[0].RecordID()
	updated, err := m.Update(ctx, Goals, id, Fields{"progress": 55})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if g := updated.(GoalRecord); g.Progress != 55 || g.Text != "g" {
		t.Errorf("Update() = %+v, want progress 55 and text kept", g)
	}

	if err := m.Delete(ctx, Goals, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete(ctx, Goals, id); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	all, _ := m.List(ctx, Goals, Filter{})
	if len(all) != 2 {
		t.Errorf("List() len = %d, want 2", len(all))
	}
}

func TestMemory_FaultInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("connection reset")

	m.FailNext(2, boom)
	for i := 0; i < 2; i++ {
		if _, err := m.Insert(ctx, QuoteRecord{ID: "q", UserID: "u", Date: "2024-01-01", Text: "x"}); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want boom", i, err)
		}
	}
	if _, err := m.Insert(ctx, QuoteRecord{ID: "q", UserID: "u", Date: "2024-01-01", Text: "x"}); err != nil {
		t.Fatalf("third Insert() error = %v", err)
	}
	if got := m.Calls(OpInsert); got != 3 {
		t.Errorf("Calls(insert) = %d, want 3", got)
	}

	m.FailFunc(func(op Op, c Collection, id string) error {
		if op == OpDelete {
			return boom
		}
		return nil
	})
	if err := m.Delete(ctx, Quotes, "q"); !errors.Is(err, boom) {
		t.Errorf("Delete() error = %v, want boom", err)
	}
	if m.Len(Quotes) != 1 {
		t.Error("failed delete removed the row")
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewMemory().List(ctx, Goals, Filter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestOwn(t *testing.T) {
	rec := FromDailyTask("", schema.DailyTask{Date: "2024-05-01", Text: "x"})
	owned := Own(rec, "u7").(DailyTaskRecord)
	if owned.UserID != "u7" || owned.ID != DailyTaskID("u7", "2024-05-01") {
		t.Errorf("Own() = %+v", owned)
	}

	goal := Stamp(FromGoal(schema.Goal{ID: 3, Text: "g"}), "mapped-id", "")
	if g := Own(goal, "u7").(GoalRecord); g.ID != "mapped-id" || g.UserID != "u7" {
		t.Errorf("Own() changed goal id: %+v", g)
	}

	if got := Key(FromRecurringTask("u", schema.RecurringTask{ID: "rt-9"})); got != "rt-9" {
		t.Errorf("Key(recurring) = %q", got)
	}
	if _, ok := KeyedID(TinyGoals, "u", "1"); ok {
		t.Error("tiny goals must not get keyed ids")
	}
}

func TestUnmarshalRecord(t *testing.T) {
	rec, err := UnmarshalRecord(Quotes, []byte(`{"id":"q","userId":"u","date":"2024-01-01","text":"t","author":"a"}`))
	if err != nil {
		t.Fatalf("UnmarshalRecord() error = %v", err)
	}
	if q, ok := rec.(QuoteRecord); !ok || q.Author != "a" {
		t.Errorf("UnmarshalRecord() = %#v", rec)
	}
	if _, err := UnmarshalRecord("nope", []byte(`{}`)); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("UnmarshalRecord(nope) error = %v", err)
	}
}
