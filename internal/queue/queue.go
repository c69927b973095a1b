// Package queue implements the durable Sync Queue.
//
// The queue is a JSON list persisted under one Local Store key. Every change
// is a read-modify-write through the store's Update, so the CLI appending and
// the daemon draining never lose each other's entries.
//
// Operations leave the queue in one of two ways: committed after a
// successful remote call, or abandoned once their retry count reaches the
// ceiling. Abandonment is final and only logged.
package queue

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jhousvawls/daily-coach/internal/store"
)

// Outcome is the result of one delivery attempt.
type Outcome int

const (
	// Untouched leaves the operation exactly as it was.
	Untouched Outcome = iota
	// Committed removes the operation.
	Committed
	// Failed increments the retry count and abandons at the ceiling.
	Failed
)

// Result reports the outcome of one operation in a drain batch.
type Result struct {
	OpID    string
	Outcome Outcome
	// RemoteID, when set, is recorded on the operation so later attempts
	// reuse it.
	RemoteID string
	Err      error
}

// ApplyReport summarises Apply.
type ApplyReport struct {
	Committed int
	Failed    int
	Abandoned []Operation
	Remaining int
}

// Queue is the durable operation queue.
type Queue struct {
	kv     store.KV
	logger *log.Logger
	now    func() time.Time
}

// New returns a Queue persisted in kv. If logger is nil, a default logger
// writing to stderr is used.
func New(kv store.KV, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &Queue{kv: kv, logger: logger, now: time.Now}
}

// NewQuiet returns a Queue that discards its log output.
func NewQuiet(kv store.KV) *Queue {
	return New(kv, log.New(io.Discard, "", 0))
}

// SetClock overrides the enqueue timestamp source.
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// Load returns every queued operation in enqueue order. A corrupt queue is
// logged and reads as empty.
func (q *Queue) Load() []Operation {
	data, ok, err := q.kv.Get(store.KeySyncQueue)
	if err != nil {
		q.logger.Printf("WARNING: failed to read sync queue: %v", err)
		return []Operation{}
	}
	return q.decode(data, ok)
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	return len(q.Load())
}

func (q *Queue) decode(data []byte, ok bool) []Operation {
	if !ok {
		return []Operation{}
	}
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		q.logger.Printf("WARNING: corrupt sync queue, treating as empty: %v", err)
		return []Operation{}
	}
	if ops == nil {
		return []Operation{}
	}
	return ops
}

// Append validates and persists ops with fresh ids, the current time and a
// zero retry count. It returns the queue length afterwards.
func (q *Queue) Append(ops ...Operation) (int, error) {
	now := q.now().UTC()
	fresh := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return 0, fmt.Errorf("invalid sync operation: %w", err)
		}
		op.ID = uuid.NewString()
		op.EnqueuedAt = now
		op.RetryCount = 0
		fresh = append(fresh, op)
	}

	var n int
	err := q.kv.Update(store.KeySyncQueue, func(old []byte, ok bool) ([]byte, error) {
		current := q.decode(old, ok)
		current = append(current, fresh...)
		n = len(current)
		return json.Marshal(current)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to persist sync queue: %w", err)
	}
	return n, nil
}

// SetRemoteID records the remote id allocated for operation opID.
func (q *Queue) SetRemoteID(opID, remoteID string) error {
	err := q.kv.Update(store.KeySyncQueue, func(old []byte, ok bool) ([]byte, error) {
		current := q.decode(old, ok)
		for i := range current {
			if current[i].ID == opID {
				if current[i].RemoteID == remoteID {
					return nil, nil
				}
				current[i].RemoteID = remoteID
				return json.Marshal(current)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist sync queue: %w", err)
	}
	return nil
}

// Apply folds a batch of results into the persisted queue. Operations not
// named in results, including ones appended concurrently, are kept as they
// are. A failed operation whose retry count reaches maxRetries is removed and
// returned in the report's Abandoned list.
func (q *Queue) Apply(results []Result, maxRetries int) (ApplyReport, error) {
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.OpID] = r
	}

	var report ApplyReport
	err := q.kv.Update(store.KeySyncQueue, func(old []byte, ok bool) ([]byte, error) {
		report = ApplyReport{}
		current := q.decode(old, ok)
		kept := make([]Operation, 0, len(current))
		for _, op := range current {
			r, found := byID[op.ID]
			if !found {
				kept = append(kept, op)
				continue
			}
			if r.RemoteID != "" {
				op.RemoteID = r.RemoteID
			}
			switch r.Outcome {
			case Committed:
				report.Committed++
				continue
			case Failed:
				report.Failed++
				op.RetryCount++
				if op.RetryCount >= maxRetries {
					report.Abandoned = append(report.Abandoned, op)
					continue
				}
			}
			kept = append(kept, op)
		}
		report.Remaining = len(kept)
		return json.Marshal(kept)
	})
	if err != nil {
		return ApplyReport{}, fmt.Errorf("failed to persist sync queue: %w", err)
	}

	for _, op := range report.Abandoned {
		q.logger.Printf("ERROR: abandoned sync operation %s (%s) after %d attempts", op.ID, op, op.RetryCount)
	}
	return report, nil
}

// Clear drops every queued operation.
func (q *Queue) Clear() error {
	if err := q.kv.Put(store.KeySyncQueue, []byte("[]")); err != nil {
		return fmt.Errorf("failed to clear sync queue: %w", err)
	}
	return nil
}

// PendingCreate reports whether ops holds a create ahead of index i that
// targets the same entity as ops[i].
func PendingCreate(ops []Operation, i int) bool {
	for j := 0; j < i && j < len(ops); j++ {
		if ops[j].Kind == KindCreate && ops[j].Targets(ops[i]) {
			return true
		}
	}
	return false
}
