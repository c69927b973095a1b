// Package migrate implements the one-time bulk transfer of the Local Store to
// the remote store.
//
// Stages run in a fixed order: prepare, goals, tiny goals, daily tasks,
// recurring tasks, quotes, preferences, complete. A failed item is recorded
// in the result and the stage continues with the next item; nothing is
// rolled back. Goals and tiny goals are bound in the identity table as soon as
// their remote create succeeds.
//
// A successful run turns sync on, so later edits are queued against the
// records this run created.
//
// Re-running is safe: goals and tiny goals reuse their mapped id and every
// other entity has a name-based id, so repeated creates are upserts. Run
// still refuses once a migration has completed unless forced.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/identity"
	"github.com/jhousvawls/daily-coach/internal/pubsub"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/store"
	"github.com/jhousvawls/daily-coach/internal/syncer"
)

var (
	// ErrUnauthenticated is returned when no user is signed in.
	ErrUnauthenticated = errors.New("migration requires a signed-in user")

	// ErrAlreadyMigrated is returned when the completion flag is set and the
	// run was not forced.
	ErrAlreadyMigrated = errors.New("local data already migrated")
)

// Stage names a migration step.
type Stage string

const (
	StagePrepare        Stage = "prepare"
	StageGoals          Stage = "goals"
	StageTinyGoals      Stage = "tiny_goals"
	StageDailyTasks     Stage = "daily_tasks"
	StageRecurringTasks Stage = "recurring_tasks"
	StageQuotes         Stage = "quotes"
	StagePreferences    Stage = "preferences"
	StageComplete       Stage = "complete"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StagePrepare, StageGoals, StageTinyGoals, StageDailyTasks,
		StageRecurringTasks, StageQuotes, StagePreferences, StageComplete,
	}
}

// Progress is published when a stage starts and after every item.
type Progress struct {
	Stage       Stage   `json:"stage"`
	Current     int     `json:"current"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
	CurrentItem string  `json:"currentItem,omitempty"`
}

// Counts holds migrated items per entity type.
type Counts struct {
	Goals          int `json:"goals"`
	TinyGoals      int `json:"tinyGoals"`
	DailyTasks     int `json:"dailyTasks"`
	RecurringTasks int `json:"recurringTasks"`
	Quotes         int `json:"quotes"`
	Preferences    int `json:"preferences"`
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.Goals + c.TinyGoals + c.DailyTasks + c.RecurringTasks + c.Quotes + c.Preferences
}

// Result summarises one run.
type Result struct {
	Success    bool          `json:"success"`
	Migrated   Counts        `json:"migratedItems"`
	Errors     []string      `json:"errors"`
	Duration   time.Duration `json:"duration"`
	TotalItems int           `json:"totalItems"`
}

// Status is the persisted migration record.
type Status struct {
	Completed   bool      `json:"completed"`
	AttemptedAt time.Time `json:"attemptedAt"`
	Result      *Result   `json:"result,omitempty"`
}

// Options control Run.
type Options struct {
	// Force runs even when a previous migration completed.
	Force bool
}

// Config holds configuration for the migrator.
type Config struct {
	// Logger for per-item failures and the run summary
	Logger *log.Logger

	// Now is the clock (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger: log.New(os.Stderr, "[migrate] ", log.LstdFlags),
		Now:    time.Now,
	}
}

// Migrator runs the migration procedure.
type Migrator struct {
	store   *store.Store
	ids     *identity.Table
	adapter remote.Adapter
	auth    auth.Provider
	config  *Config
	bus     *pubsub.Bus[Progress]
}

// New creates a migrator with the default configuration.
func New(s *store.Store, adapter remote.Adapter, provider auth.Provider) *Migrator {
	return NewWithConfig(s, adapter, provider, DefaultConfig())
}

// NewWithConfig creates a migrator with custom configuration.
func NewWithConfig(s *store.Store, adapter remote.Adapter, provider auth.Provider, config *Config) *Migrator {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Migrator{
		store:   s,
		ids:     identity.NewTable(s.KV()),
		adapter: adapter,
		auth:    provider,
		config:  &cfg,
		bus:     pubsub.New[Progress](),
	}
}

// Subscribe delivers progress events. Events are dropped for a subscriber
// whose buffer is full.
func (m *Migrator) Subscribe(buffer int) (<-chan Progress, func()) {
	return m.bus.Subscribe(buffer)
}

// Close ends every progress subscription.
func (m *Migrator) Close() {
	m.bus.Close()
}

// Status returns the persisted migration record. ok is false when no run has
// been recorded or the record is unreadable.
func (m *Migrator) Status() (Status, bool) {
	data, ok, err := m.store.KV().Get(store.KeyMigrationStatus)
	if err != nil || !ok {
		return Status{}, false
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		m.config.Logger.Printf("WARNING: corrupt migration status: %v", err)
		return Status{}, false
	}
	return st, true
}

// NeedsMigration reports whether local data exists that has not been
// migrated successfully.
func (m *Migrator) NeedsMigration() bool {
	if !m.store.HasData() {
		return false
	}
	st, _ := m.Status()
	return !st.Completed
}

// Reset clears the migration record.
func (m *Migrator) Reset() error {
	if err := m.store.KV().Delete(store.KeyMigrationStatus); err != nil {
		return fmt.Errorf("failed to reset migration status: %w", err)
	}
	return nil
}

// item is one entity to transfer.
type item struct {
	label string
	// mapped entities are bound in the identity table on success
	localID *int64
	typ     identity.EntityType
	record  remote.Record
}

// Run migrates every local collection. Per-item failures are reported in the
// result; the error is non-nil only when the run could not start or its
// status could not be persisted. A run without failures enables sync.
func (m *Migrator) Run(ctx context.Context, opts Options) (Result, error) {
	user, ok := m.auth.CurrentUser()
	if !ok {
		return Result{}, ErrUnauthenticated
	}
	if st, ok := m.Status(); ok && st.Completed && !opts.Force {
		return Result{}, ErrAlreadyMigrated
	}

	start := m.config.Now()
	attemptedAt := start.UTC()
	result := Result{Errors: []string{}}

	m.publish(StagePrepare, 0, 0, "")
	stages := m.plan(user.UserID)
	for _, st := range stages {
		result.TotalItems += len(st.items)
	}

	for _, st := range stages {
		total := len(st.items)
		m.publish(st.stage, 0, total, "")
		for i, it := range st.items {
			if err := m.transfer(ctx, it); err != nil {
				msg := fmt.Sprintf("%s %s: %v", st.noun, it.label, err)
				m.config.Logger.Printf("WARNING: failed to migrate %s", msg)
				result.Errors = append(result.Errors, msg)
			} else {
				st.count(&result.Migrated)
			}
			m.publish(st.stage, i+1, total, it.label)
		}
	}

	result.Success = len(result.Errors) == 0
	result.Duration = m.config.Now().Sub(start)

	status := Status{Completed: result.Success, AttemptedAt: attemptedAt, Result: &result}
	data, err := json.Marshal(status)
	if err != nil {
		return result, fmt.Errorf("failed to encode migration status: %w", err)
	}
	if err := m.store.KV().Put(store.KeyMigrationStatus, data); err != nil {
		return result, fmt.Errorf("failed to persist migration status: %w", err)
	}
	if result.Success {
		if err := syncer.SetEnabled(m.store.KV(), true); err != nil {
			return result, err
		}
	}

	m.publish(StageComplete, result.TotalItems, result.TotalItems, "")
	m.config.Logger.Printf("Migration finished: %d/%d items in %s, %d errors",
		result.Migrated.Total(), result.TotalItems, result.Duration.Round(time.Millisecond), len(result.Errors))
	return result, nil
}

// transfer creates one item remotely, binding goals and tiny goals.
func (m *Migrator) transfer(ctx context.Context, it item) error {
	rec := it.record
	var (
		remoteID string
		mapped   bool
	)
	if it.localID != nil {
		remoteID, mapped = m.ids.GetRemoteID(*it.localID, it.typ)
		if !mapped {
			remoteID = identity.NewRemoteID()
		}
		rec = remote.Stamp(rec, remoteID, rec.Owner())
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.adapter.Insert(ctx, rec); err != nil {
		return err
	}

	if it.localID != nil && !mapped {
		if err := m.ids.Bind(*it.localID, remoteID, it.typ); err != nil {
			return fmt.Errorf("created remotely but failed to record mapping: %w", err)
		}
	}
	return nil
}

func (m *Migrator) publish(stage Stage, current, total int, label string) {
	pct := 100.0
	if total > 0 {
		pct = float64(current) * 100 / float64(total)
	}
	m.bus.Publish(Progress{Stage: stage, Current: current, Total: total, Percentage: pct, CurrentItem: label})
}
