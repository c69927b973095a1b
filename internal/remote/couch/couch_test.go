package couch

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
)

func TestDocRoundTrip(t *testing.T) {
	rec := remote.FromDailyTask("u1", schema.DailyTask{Date: "2024-06-01", Text: "Plan week", Completed: true})
	row, err := remote.EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}

	doc := toDoc(remote.DailyTasks, row, "1-abc")
	if doc["_id"] != "daily_tasks:"+rec.ID {
		t.Errorf("_id = %v", doc["_id"])
	}
	if doc["doc_type"] != "daily_tasks" || doc["_rev"] != "1-abc" {
		t.Errorf("metadata = %v %v", doc["doc_type"], doc["_rev"])
	}

	back, rev := fromDoc(doc)
	if rev != "1-abc" {
		t.Errorf("rev = %q", rev)
	}
	if _, ok := back["_id"]; ok {
		t.Error("fromDoc kept _id")
	}
	got, err := remote.DecodeRow(remote.DailyTasks, back)
	if err != nil {
		t.Fatalf("DecodeRow() error = %v", err)
	}
	if got.(remote.DailyTaskRecord) != rec {
		t.Errorf("DecodeRow() = %+v, want %+v", got, rec)
	}
}

func TestFromDoc_JSONNumbers(t *testing.T) {
	// Documents scanned from CouchDB carry numbers as float64.
	doc := map[string]any{
		"_id": "tiny_goals:x", "_rev": "2-b", "doc_type": "tiny_goals",
		"id": "x", "user_id": "u", "local_id": float64(12), "text": "floss",
		"completed_at": nil, "created_at": nil,
	}
	row, _ := fromDoc(doc)
	rec, err := remote.DecodeRow(remote.TinyGoals, row)
	if err != nil {
		t.Fatalf("DecodeRow() error = %v", err)
	}
	if g := rec.(remote.TinyGoalRecord); g.LocalID != 12 || g.Text != "floss" {
		t.Errorf("record = %+v", g)
	}
}

func TestSelector(t *testing.T) {
	sel := selector(remote.Goals, remote.Filter{UserID: "u9"})
	if sel["doc_type"] != "goals" || sel["user_id"] != "u9" {
		t.Errorf("selector() = %v", sel)
	}
	if _, ok := selector(remote.Goals, remote.Filter{})["user_id"]; ok {
		t.Error("empty filter should not constrain user_id")
	}
}

// TestStore_Live runs against a real server when COACH_TEST_COUCH_URL is set.
func TestStore_Live(t *testing.T) {
	url := os.Getenv("COACH_TEST_COUCH_URL")
	if url == "" {
		t.Skip("COACH_TEST_COUCH_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url, "coach_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	rec := remote.Stamp(remote.FromGoal(schema.Goal{ID: 1, Text: "Live", Category: schema.CategoryPersonal}), uuid.NewString(), "u")
	if _, err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() replay error = %v", err)
	}
	if _, err := s.Update(ctx, remote.Goals, rec.RecordID(), remote.Fields{"progress": 50}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := s.Update(ctx, remote.Goals, "missing", remote.Fields{"progress": 50}); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Update(missing) error = %v", err)
	}
	goals, err := s.List(ctx, remote.Goals, remote.Filter{UserID: "u"})
	if err != nil || len(goals) != 1 {
		t.Fatalf("List() = %v, %v", goals, err)
	}
	if err := s.Delete(ctx, remote.Goals, rec.RecordID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, remote.Goals, rec.RecordID()); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}
