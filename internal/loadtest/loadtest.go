// Package loadtest drives concurrent writers against one Local Store database
// to check that sync queue appends and id allocation survive contention.
//
// Each writer simulates a coach process: it allocates a local id and appends
// a create operation to the sync queue, the two read-modify-write paths that
// the CLI and the daemon share. Writers may open their own database handle so
// contention happens across connection pools, as it does across processes.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jhousvawls/daily-coach/internal/queue"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/store"
)

// Options control Run.
type Options struct {
	// Writers is the number of concurrent writers (default 10).
	Writers int

	// OpsPerWriter is how many operations each writer enqueues (default 20).
	OpsPerWriter int

	// Shared makes every writer use one database handle instead of opening
	// its own.
	Shared bool
}

// LatencyStats captures per-operation latency.
type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Count int
}

// Result summarises one run.
type Result struct {
	Latency  LatencyStats
	Duration time.Duration

	// Enqueued counts successful appends; QueueLen is the queue length
	// read back afterwards. They differ only if appends were lost.
	Enqueued int
	QueueLen int

	// DuplicateIDs counts local ids handed out more than once.
	DuplicateIDs int
	Errors       []string
}

// Lost returns how many acknowledged appends are missing from the queue.
func (r *Result) Lost() int {
	return r.Enqueued - r.QueueLen
}

// OK reports whether the run lost nothing, duplicated nothing and hit no
// errors.
func (r *Result) OK() bool {
	return r.Lost() == 0 && r.DuplicateIDs == 0 && len(r.Errors) == 0
}

// Run executes the load test against the database at dbPath, which should
// be a scratch database: the queue and id sequence are left populated.
func Run(ctx context.Context, dbPath string, opts Options) (*Result, error) {
	if opts.Writers <= 0 {
		opts.Writers = 10
	}
	if opts.OpsPerWriter <= 0 {
		opts.OpsPerWriter = 20
	}

	// The first handle applies the schema before writers race to open.
	primary, err := store.OpenContext(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer primary.Close()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		ids       = make(map[int64]int)
		result    = &Result{}
	)
	fail := func(format string, args ...any) {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	start := time.Now()
	for w := 0; w < opts.Writers; w++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()

			kv := store.KV(primary)
			if !opts.Shared {
				db, err := store.OpenContext(ctx, dbPath)
				if err != nil {
					fail("writer %d: %v", writer, err)
					return
				}
				defer db.Close()
				kv = db
			}
			s := store.NewQuiet(kv)
			q := queue.NewQuiet(kv)

			local := make([]time.Duration, 0, opts.OpsPerWriter)
			for i := 0; i < opts.OpsPerWriter; i++ {
				if ctx.Err() != nil {
					break
				}
				opStart := time.Now()
				id, err := s.NextID()
				if err != nil {
					fail("writer %d op %d: %v", writer, i, err)
					continue
				}
				g := schema.TinyGoal{ID: id, Text: fmt.Sprintf("writer %d item %d", writer, i)}
				op := queue.Create(remote.FromTinyGoal(g)).WithLocalID(id)
				if _, err := q.Append(op); err != nil {
					fail("writer %d op %d: %v", writer, i, err)
					continue
				}
				local = append(local, time.Since(opStart))

				mu.Lock()
				ids[id]++
				result.Enqueued++
				mu.Unlock()
			}

			mu.Lock()
			durations = append(durations, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	result.Duration = time.Since(start)

	result.QueueLen = queue.NewQuiet(primary).Len()
	for _, n := range ids {
		if n > 1 {
			result.DuplicateIDs += n - 1
		}
	}
	result.Latency = computeLatencyStats(durations)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func computeLatencyStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Count: len(sorted),
	}
}

// Print writes a human-readable summary.
func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "Operations:    %d in %v\n", r.Latency.Count, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Queue length:  %d (lost %d)\n", r.QueueLen, r.Lost())
	fmt.Fprintf(w, "Duplicate ids: %d\n", r.DuplicateIDs)
	fmt.Fprintf(w, "Errors:        %d\n", len(r.Errors))
	fmt.Fprintf(w, "Latency:\n")
	fmt.Fprintf(w, "  Min:          %v\n", r.Latency.Min)
	fmt.Fprintf(w, "  P50 (Median): %v\n", r.Latency.P50)
	fmt.Fprintf(w, "  Mean:         %v\n", r.Latency.Mean)
	fmt.Fprintf(w, "  P95:          %v\n", r.Latency.P95)
	fmt.Fprintf(w, "  P99:          %v\n", r.Latency.P99)
	fmt.Fprintf(w, "  Max:          %v\n", r.Latency.Max)
}
