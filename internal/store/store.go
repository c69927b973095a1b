package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/jhousvawls/daily-coach/internal/schema"
)

// Store is the Local Store: synchronous typed access to every entity
// collection. It is the single source of truth for reads and writes and never
// depends on the network or the sync engine.
//
// Reads never fail. A missing, unreadable or corrupt value is logged and
// degrades to the collection's empty default.
type Store struct {
	kv     KV
	logger *log.Logger
}

// Snapshot holds every local collection at one point in time.
type Snapshot struct {
	Goals          []schema.Goal          `json:"goals" yaml:"goals" toml:"goals"`
	TinyGoals      []schema.TinyGoal      `json:"tinyGoals" yaml:"tinyGoals" toml:"tinyGoals"`
	DailyTasks     []schema.DailyTask     `json:"dailyTasks" yaml:"dailyTasks" toml:"dailyTasks"`
	RecurringTasks []schema.RecurringTask `json:"recurringTasks" yaml:"recurringTasks" toml:"recurringTasks"`
	Quotes         []schema.DailyQuote    `json:"quotes" yaml:"quotes" toml:"quotes"`
	Preferences    schema.UserPreferences `json:"preferences" yaml:"preferences" toml:"preferences"`
	Stats          schema.UserStats       `json:"stats" yaml:"stats" toml:"stats"`
}

// New creates a Store over kv. If logger is nil, a default logger writing to
// stderr is used.
func New(kv KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{kv: kv, logger: logger}
}

// NewQuiet creates a Store that discards its log output.
func NewQuiet(kv KV) *Store {
	return New(kv, log.New(io.Discard, "", 0))
}

// KV returns the underlying key-value store.
func (s *Store) KV() KV {
	return s.kv
}

// load decodes key into v, leaving v untouched on any failure.
func (s *Store) load(key string, v any) bool {
	data, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Printf("WARNING: failed to read %s, using default: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Printf("WARNING: corrupt value under %s, using default: %v", key, err)
		return false
	}
	return true
}

func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.kv.Put(key, data)
}

// Goals returns every goal.
func (s *Store) Goals() []schema.Goal {
	var goals []schema.Goal
	if !s.load(KeyGoals, &goals) || goals == nil {
		return []schema.Goal{}
	}
	return goals
}

// SetGoals overwrites the goal collection.
func (s *Store) SetGoals(goals []schema.Goal) error {
	if goals == nil {
		goals = []schema.Goal{}
	}
	return s.save(KeyGoals, goals)
}

// TinyGoals returns every tiny goal.
func (s *Store) TinyGoals() []schema.TinyGoal {
	var goals []schema.TinyGoal
	if !s.load(KeyTinyGoals, &goals) || goals == nil {
		return []schema.TinyGoal{}
	}
	return goals
}

// SetTinyGoals overwrites the tiny goal collection.
func (s *Store) SetTinyGoals(goals []schema.TinyGoal) error {
	if goals == nil {
		goals = []schema.TinyGoal{}
	}
	return s.save(KeyTinyGoals, goals)
}

// DailyTasks returns every daily task ordered by date.
func (s *Store) DailyTasks() []schema.DailyTask {
	var tasks []schema.DailyTask
	if !s.load(KeyDailyTasks, &tasks) || tasks == nil {
		return []schema.DailyTask{}
	}
	return tasks
}

// SetDailyTasks overwrites the daily task collection. Entries sharing a date
// collapse to the last one given.
func (s *Store) SetDailyTasks(tasks []schema.DailyTask) error {
	byDate := make(map[string]schema.DailyTask, len(tasks))
	for _, t := range tasks {
		byDate[t.Date] = t
	}
	out := make([]schema.DailyTask, 0, len(byDate))
	for _, t := range byDate {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return s.save(KeyDailyTasks, out)
}

// DailyTask returns the task for date, if any.
func (s *Store) DailyTask(date string) (schema.DailyTask, bool) {
	for _, t := range s.DailyTasks() {
		if t.Date == date {
			return t, true
		}
	}
	return schema.DailyTask{}, false
}

// PutDailyTask upserts the task for its date.
func (s *Store) PutDailyTask(task schema.DailyTask) error {
	return s.SetDailyTasks(append(s.DailyTasks(), task))
}

// RecurringTasks returns every recurring task.
func (s *Store) RecurringTasks() []schema.RecurringTask {
	var tasks []schema.RecurringTask
	if !s.load(KeyRecurringTasks, &tasks) || tasks == nil {
		return []schema.RecurringTask{}
	}
	return tasks
}

// SetRecurringTasks overwrites the recurring task collection.
func (s *Store) SetRecurringTasks(tasks []schema.RecurringTask) error {
	if tasks == nil {
		tasks = []schema.RecurringTask{}
	}
	return s.save(KeyRecurringTasks, tasks)
}

// Quotes returns every stored quote ordered by date.
func (s *Store) Quotes() []schema.DailyQuote {
	var quotes []schema.DailyQuote
	if !s.load(KeyQuotes, &quotes) || quotes == nil {
		return []schema.DailyQuote{}
	}
	return quotes
}

// SetQuotes overwrites the quote collection. Entries sharing a date collapse
// to the last one given.
func (s *Store) SetQuotes(quotes []schema.DailyQuote) error {
	byDate := make(map[string]schema.DailyQuote, len(quotes))
	for _, q := range quotes {
		byDate[q.Date] = q
	}
	out := make([]schema.DailyQuote, 0, len(byDate))
	for _, q := range byDate {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return s.save(KeyQuotes, out)
}

// Quote returns the quote for date, if any.
func (s *Store) Quote(date string) (schema.DailyQuote, bool) {
	for _, q := range s.Quotes() {
		if q.Date == date {
			return q, true
		}
	}
	return schema.DailyQuote{}, false
}

// Preferences returns the user's preferences or the defaults.
func (s *Store) Preferences() schema.UserPreferences {
	prefs := schema.DefaultPreferences()
	if !s.load(KeyPreferences, &prefs) {
		return schema.DefaultPreferences()
	}
	return prefs
}

// SetPreferences overwrites the preferences.
func (s *Store) SetPreferences(prefs schema.UserPreferences) error {
	return s.save(KeyPreferences, prefs)
}

// Stats returns the cached statistics.
func (s *Store) Stats() schema.UserStats {
	var stats schema.UserStats
	if !s.load(KeyStats, &stats) {
		return schema.UserStats{}
	}
	return stats
}

// SetStats overwrites the cached statistics.
func (s *Store) SetStats(stats schema.UserStats) error {
	return s.save(KeyStats, stats)
}

// NextID allocates a fresh local integer id from the persisted sequence.
func (s *Store) NextID() (int64, error) {
	var id int64
	// Never hand out an id an existing entity already uses, even if the
	// sequence was lost.
	floor := s.maxLocalID()
	err := s.kv.Update(KeySequence, func(old []byte, ok bool) ([]byte, error) {
		id = 0
		if ok {
			n, err := strconv.ParseInt(string(old), 10, 64)
			if err == nil {
				id = n
			}
		}
		if floor > id {
			id = floor
		}
		id++
		return []byte(strconv.FormatInt(id, 10)), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

func (s *Store) maxLocalID() int64 {
	var max int64
	for _, g := range s.Goals() {
		if g.ID > max {
			max = g.ID
		}
		for _, st := range g.Subtasks {
			if st.ID > max {
				max = st.ID
			}
		}
	}
	for _, g := range s.TinyGoals() {
		if g.ID > max {
			max = g.ID
		}
	}
	return max
}

// Snapshot returns every collection.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Goals:          s.Goals(),
		TinyGoals:      s.TinyGoals(),
		DailyTasks:     s.DailyTasks(),
		RecurringTasks: s.RecurringTasks(),
		Quotes:         s.Quotes(),
		Preferences:    s.Preferences(),
		Stats:          s.Stats(),
	}
}

// HasData reports whether any collection holds a non-default value.
func (s *Store) HasData() bool {
	snap := s.Snapshot()
	return len(snap.Goals) > 0 ||
		len(snap.TinyGoals) > 0 ||
		len(snap.DailyTasks) > 0 ||
		len(snap.RecurringTasks) > 0 ||
		len(snap.Quotes) > 0 ||
		!snap.Preferences.IsDefault()
}
