package loadtest

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		shared bool
	}{
		{"separate handles", false},
		{"shared handle", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "load.db")
			res, err := Run(context.Background(), dbPath, Options{Writers: 4, OpsPerWriter: 10, Shared: tt.shared})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(res.Errors) > 0 {
				t.Fatalf("errors: %v", res.Errors)
			}
			if res.Enqueued != 40 {
				t.Errorf("Enqueued = %d, want 40", res.Enqueued)
			}
			if res.QueueLen != 40 || res.Lost() != 0 {
				t.Errorf("QueueLen = %d, Lost = %d", res.QueueLen, res.Lost())
			}
			if res.DuplicateIDs != 0 {
				t.Errorf("DuplicateIDs = %d", res.DuplicateIDs)
			}
			if !res.OK() {
				t.Error("OK() = false")
			}
			if res.Latency.Count != 40 {
				t.Errorf("Latency.Count = %d", res.Latency.Count)
			}
		})
	}
}

func TestRun_Defaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "load.db")
	res, err := Run(context.Background(), dbPath, Options{Shared: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Enqueued != 200 {
		t.Errorf("Enqueued = %d, want 200", res.Enqueued)
	}
}

func TestComputeLatencyStats(t *testing.T) {
	if got := computeLatencyStats(nil); got.Count != 0 {
		t.Errorf("empty stats = %+v", got)
	}

	var ds []time.Duration
	for i := 100; i >= 1; i-- {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}
	s := computeLatencyStats(ds)
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v", s.P50)
	}
	if s.P99 != 100*time.Millisecond {
		t.Errorf("P99 = %v", s.P99)
	}
	if s.Mean != 50500*time.Microsecond {
		t.Errorf("Mean = %v", s.Mean)
	}
}

func TestResult_Print(t *testing.T) {
	r := &Result{Enqueued: 3, QueueLen: 2}
	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "lost 1") {
		t.Errorf("Print output = %q", buf.String())
	}
	if r.OK() {
		t.Error("OK() = true with a lost append")
	}
}
