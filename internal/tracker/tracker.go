// Package tracker is the application service behind every user action.
//
// Each mutation writes the Local Store first and then hands the sync engine
// an explicit diff: Create for new or replaced items, Update with only the
// changed fields, Delete for removals. The local write is what the caller
// depends on; a failure to enqueue is logged and never fails the action.
package tracker

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/queue"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/store"
)

// ErrNotFound is returned when the addressed entity does not exist locally.
var ErrNotFound = errors.New("not found")

// Enqueuer accepts sync operations. *syncer.Engine implements it.
type Enqueuer interface {
	Enqueue(ops ...queue.Operation) error
}

// Discard is an Enqueuer that drops every operation.
type Discard struct{}

// Enqueue implements Enqueuer.
func (Discard) Enqueue(...queue.Operation) error { return nil }

// Tracker performs user mutations against the Local Store.
type Tracker struct {
	store  *store.Store
	sync   Enqueuer
	auth   auth.Provider
	logger *log.Logger
	now    func() time.Time
}

// New creates a Tracker. enq and provider may be nil; mutations are then
// only stored locally and records carry no owner.
func New(s *store.Store, enq Enqueuer, provider auth.Provider, logger *log.Logger) *Tracker {
	if enq == nil {
		enq = Discard{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[tracker] ", log.LstdFlags)
	}
	return &Tracker{store: s, sync: enq, auth: provider, logger: logger, now: time.Now}
}

// NewQuiet creates a Tracker that discards its log output.
func NewQuiet(s *store.Store, enq Enqueuer) *Tracker {
	return New(s, enq, nil, log.New(io.Discard, "", 0))
}

// SetClock replaces the clock.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Store returns the underlying Local Store.
func (t *Tracker) Store() *store.Store {
	return t.store
}

func (t *Tracker) user() string {
	if t.auth == nil {
		return ""
	}
	id, ok := t.auth.CurrentUser()
	if !ok {
		return ""
	}
	return id.UserID
}

func (t *Tracker) enqueue(ops ...queue.Operation) {
	if err := t.sync.Enqueue(ops...); err != nil {
		t.logger.Printf("WARNING: failed to queue %d sync operations: %v", len(ops), err)
	}
}

func (t *Tracker) today() string {
	return schema.FormatDate(t.now())
}

// Goals returns every goal.
func (t *Tracker) Goals() []schema.Goal {
	return t.store.Goals()
}

// Goal returns the goal with id.
func (t *Tracker) Goal(id int64) (schema.Goal, error) {
	for _, g := range t.store.Goals() {
		if g.ID == id {
			return g, nil
		}
	}
	return schema.Goal{}, fmt.Errorf("goal %d: %w", id, ErrNotFound)
}

// AddGoal creates a goal.
func (t *Tracker) AddGoal(g schema.Goal) (schema.Goal, error) {
	id, err := t.store.NextID()
	if err != nil {
		return schema.Goal{}, err
	}
	g.ID = id
	g.Text = strings.TrimSpace(g.Text)
	g.CreatedAt, g.UpdatedAt = time.Time{}, time.Time{}
	g.SetDefaults(t.now().UTC())
	if err := g.Validate(); err != nil {
		return schema.Goal{}, err
	}

	if err := t.store.SetGoals(append(t.store.Goals(), g)); err != nil {
		return schema.Goal{}, err
	}
	t.enqueue(queue.Create(remote.Stamp(remote.FromGoal(g), "", t.user())).WithLocalID(g.ID))
	return g, nil
}

// updateGoal applies fn to goal id, persists it and enqueues the changed
// fields returned by fn.
func (t *Tracker) updateGoal(id int64, fn func(g *schema.Goal) (remote.Fields, error)) (schema.Goal, error) {
	goals := t.store.Goals()
	for i := range goals {
		if goals[i].ID != id {
			continue
		}
		fields, err := fn(&goals[i])
		if err != nil {
			return schema.Goal{}, err
		}
		now := t.now().UTC()
		goals[i].UpdatedAt = now
		if err := goals[i].Validate(); err != nil {
			return schema.Goal{}, err
		}
		if err := t.store.SetGoals(goals); err != nil {
			return schema.Goal{}, err
		}
		fields["updatedAt"] = now
		t.enqueue(queue.Update(remote.Goals, "", fields).WithLocalID(id))
		return goals[i], nil
	}
	return schema.Goal{}, fmt.Errorf("goal %d: %w", id, ErrNotFound)
}

// SetProgress sets a goal's progress. Reaching 100 completes the goal.
func (t *Tracker) SetProgress(id int64, progress int) (schema.Goal, error) {
	if progress < 0 || progress > 100 {
		return schema.Goal{}, fmt.Errorf("progress %d out of range 0..100", progress)
	}
	return t.updateGoal(id, func(g *schema.Goal) (remote.Fields, error) {
		g.Progress = progress
		fields := remote.Fields{"progress": progress}
		if progress == 100 && g.CompletedAt == nil {
			now := t.now().UTC()
			g.CompletedAt = &now
			fields["completedAt"] = now
		}
		return fields, nil
	})
}

// CompleteGoal marks a goal complete.
func (t *Tracker) CompleteGoal(id int64) (schema.Goal, error) {
	return t.updateGoal(id, func(g *schema.Goal) (remote.Fields, error) {
		now := t.now().UTC()
		g.CompletedAt = &now
		g.Progress = 100
		return remote.Fields{"completedAt": now, "progress": 100}, nil
	})
}

// ReopenGoal clears a goal's completion. Progress falls back to the share of
// completed subtasks.
func (t *Tracker) ReopenGoal(id int64) (schema.Goal, error) {
	return t.updateGoal(id, func(g *schema.Goal) (remote.Fields, error) {
		g.CompletedAt = nil
		g.Progress = g.SubtaskProgress()
		if len(g.Subtasks) == 0 {
			g.Progress = 0
		}
		return remote.Fields{"completedAt": nil, "progress": g.Progress}, nil
	})
}

// AddSubtasks appends subtasks to a goal.
func (t *Tracker) AddSubtasks(id int64, texts ...string) (schema.Goal, error) {
	return t.updateGoal(id, func(g *schema.Goal) (remote.Fields, error) {
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			sid, err := t.store.NextID()
			if err != nil {
				return nil, err
			}
			g.Subtasks = append(g.Subtasks, schema.Subtask{ID: sid, Text: text})
		}
		g.Progress = g.SubtaskProgress()
		return remote.Fields{"subtasks": g.Subtasks, "progress": g.Progress}, nil
	})
}

// ToggleSubtask flips a subtask's completion and recomputes progress.
func (t *Tracker) ToggleSubtask(goalID, subtaskID int64) (schema.Goal, error) {
	return t.updateGoal(goalID, func(g *schema.Goal) (remote.Fields, error) {
		found := false
		for i := range g.Subtasks {
			if g.Subtasks[i].ID == subtaskID {
				g.Subtasks[i].Completed = !g.Subtasks[i].Completed
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("subtask %d of goal %d: %w", subtaskID, goalID, ErrNotFound)
		}
		g.Progress = g.SubtaskProgress()
		return remote.Fields{"subtasks": g.Subtasks, "progress": g.Progress}, nil
	})
}

// DeleteGoal removes a goal.
func (t *Tracker) DeleteGoal(id int64) error {
	goals := t.store.Goals()
	for i, g := range goals {
		if g.ID == id {
			if err := t.store.SetGoals(append(goals[:i:i], goals[i+1:]...)); err != nil {
				return err
			}
			t.enqueue(queue.Delete(remote.Goals, "").WithLocalID(id))
			return nil
		}
	}
	return fmt.Errorf("goal %d: %w", id, ErrNotFound)
}

// TinyGoals returns every tiny goal.
func (t *Tracker) TinyGoals() []schema.TinyGoal {
	return t.store.TinyGoals()
}

// AddTinyGoal creates a tiny goal.
func (t *Tracker) AddTinyGoal(text string) (schema.TinyGoal, error) {
	id, err := t.store.NextID()
	if err != nil {
		return schema.TinyGoal{}, err
	}
	now := t.now().UTC()
	g := schema.TinyGoal{ID: id, Text: strings.TrimSpace(text), CreatedAt: &now}
	if err := g.Validate(); err != nil {
		return schema.TinyGoal{}, err
	}
	if err := t.store.SetTinyGoals(append(t.store.TinyGoals(), g)); err != nil {
		return schema.TinyGoal{}, err
	}
	t.enqueue(queue.Create(remote.Stamp(remote.FromTinyGoal(g), "", t.user())).WithLocalID(id))
	return g, nil
}

func (t *Tracker) setTinyCompleted(id int64, done bool) (schema.TinyGoal, error) {
	goals := t.store.TinyGoals()
	for i := range goals {
		if goals[i].ID != id {
			continue
		}
		fields := remote.Fields{"completedAt": nil}
		goals[i].CompletedAt = nil
		if done {
			now := t.now().UTC()
			goals[i].CompletedAt = &now
			fields["completedAt"] = now
		}
		if err := t.store.SetTinyGoals(goals); err != nil {
			return schema.TinyGoal{}, err
		}
		t.enqueue(queue.Update(remote.TinyGoals, "", fields).WithLocalID(id))
		return goals[i], nil
	}
	return schema.TinyGoal{}, fmt.Errorf("tiny goal %d: %w", id, ErrNotFound)
}

// CompleteTinyGoal marks a tiny goal done.
func (t *Tracker) CompleteTinyGoal(id int64) (schema.TinyGoal, error) {
	return t.setTinyCompleted(id, true)
}

// ReopenTinyGoal clears a tiny goal's completion.
func (t *Tracker) ReopenTinyGoal(id int64) (schema.TinyGoal, error) {
	return t.setTinyCompleted(id, false)
}

// DeleteTinyGoal removes a tiny goal.
func (t *Tracker) DeleteTinyGoal(id int64) error {
	goals := t.store.TinyGoals()
	for i, g := range goals {
		if g.ID == id {
			if err := t.store.SetTinyGoals(append(goals[:i:i], goals[i+1:]...)); err != nil {
				return err
			}
			t.enqueue(queue.Delete(remote.TinyGoals, "").WithLocalID(id))
			return nil
		}
	}
	return fmt.Errorf("tiny goal %d: %w", id, ErrNotFound)
}

// DailyTask returns the task for date, or today's when date is empty.
func (t *Tracker) DailyTask(date string) (schema.DailyTask, bool) {
	if date == "" {
		date = t.today()
	}
	return t.store.DailyTask(date)
}

// SetDailyTask sets the focus task for date, replacing any earlier one. An
// empty date means today.
func (t *Tracker) SetDailyTask(date, text string) (schema.DailyTask, error) {
	if date == "" {
		date = t.today()
	}
	d := schema.DailyTask{Date: date, Text: strings.TrimSpace(text)}
	if err := d.Validate(); err != nil {
		return schema.DailyTask{}, err
	}
	if err := t.store.PutDailyTask(d); err != nil {
		return schema.DailyTask{}, err
	}
	t.enqueue(queue.Create(remote.FromDailyTask(t.user(), d)))
	return d, nil
}

func (t *Tracker) setDailyCompleted(date string, done bool) (schema.DailyTask, error) {
	if date == "" {
		date = t.today()
	}
	d, ok := t.store.DailyTask(date)
	if !ok {
		return schema.DailyTask{}, fmt.Errorf("daily task for %s: %w", date, ErrNotFound)
	}
	d.Completed = done
	d.CompletedAt = nil
	fields := remote.Fields{"completed": done, "completedAt": nil}
	if done {
		now := t.now().UTC()
		d.CompletedAt = &now
		fields["completedAt"] = now
	}
	if err := t.store.PutDailyTask(d); err != nil {
		return schema.DailyTask{}, err
	}
	t.enqueue(queue.Update(remote.DailyTasks, date, fields))
	if _, err := t.RecomputeStats(); err != nil {
		t.logger.Printf("WARNING: %v", err)
	}
	return d, nil
}

// CompleteDailyTask marks the task for date done.
func (t *Tracker) CompleteDailyTask(date string) (schema.DailyTask, error) {
	return t.setDailyCompleted(date, true)
}

// UncompleteDailyTask clears the task for date.
func (t *Tracker) UncompleteDailyTask(date string) (schema.DailyTask, error) {
	return t.setDailyCompleted(date, false)
}

// RecurringTasks returns every recurring task.
func (t *Tracker) RecurringTasks() []schema.RecurringTask {
	return t.store.RecurringTasks()
}

// AddRecurringTask creates a recurring task.
func (t *Tracker) AddRecurringTask(text string, rec schema.Recurrence) (schema.RecurringTask, error) {
	now := t.now().UTC()
	task := schema.RecurringTask{
		ID:         uuid.NewString(),
		Text:       strings.TrimSpace(text),
		Recurrence: rec,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := task.Validate(); err != nil {
		return schema.RecurringTask{}, err
	}
	if err := t.store.SetRecurringTasks(append(t.store.RecurringTasks(), task)); err != nil {
		return schema.RecurringTask{}, err
	}
	t.enqueue(queue.Create(remote.FromRecurringTask(t.user(), task)))
	return task, nil
}

// findRecurring matches id exactly or by unique prefix.
func findRecurring(tasks []schema.RecurringTask, id string) (int, error) {
	match := -1
	for i, task := range tasks {
		if task.ID == id {
			return i, nil
		}
		if strings.HasPrefix(task.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("recurring task prefix %q is ambiguous", id)
			}
			match = i
		}
	}
	if match < 0 || id == "" {
		return -1, fmt.Errorf("recurring task %s: %w", id, ErrNotFound)
	}
	return match, nil
}

// CompleteRecurringTask records completion of a recurring task now.
func (t *Tracker) CompleteRecurringTask(id string) (schema.RecurringTask, error) {
	tasks := t.store.RecurringTasks()
	i, err := findRecurring(tasks, id)
	if err != nil {
		return schema.RecurringTask{}, err
	}
	now := t.now().UTC()
	tasks[i].LastCompleted = &now
	tasks[i].UpdatedAt = now
	if err := t.store.SetRecurringTasks(tasks); err != nil {
		return schema.RecurringTask{}, err
	}
	t.enqueue(queue.Update(remote.RecurringTasks, tasks[i].ID, remote.Fields{"lastCompleted": now, "updatedAt": now}))
	return tasks[i], nil
}

// DeleteRecurringTask removes a recurring task.
func (t *Tracker) DeleteRecurringTask(id string) error {
	tasks := t.store.RecurringTasks()
	i, err := findRecurring(tasks, id)
	if err != nil {
		return err
	}
	key := tasks[i].ID
	if err := t.store.SetRecurringTasks(append(tasks[:i:i], tasks[i+1:]...)); err != nil {
		return err
	}
	t.enqueue(queue.Delete(remote.RecurringTasks, key))
	return nil
}

// DueOn returns the recurring tasks falling on day, incomplete ones first.
func (t *Tracker) DueOn(day time.Time) []schema.RecurringTask {
	var due []schema.RecurringTask
	for _, task := range t.store.RecurringTasks() {
		if task.DueOn(day) {
			due = append(due, task)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return !due[i].CompletedOn(day) && due[j].CompletedOn(day)
	})
	return due
}

// Quote returns the stored quote for date, or today's when date is empty.
func (t *Tracker) Quote(date string) (schema.DailyQuote, bool) {
	if date == "" {
		date = t.today()
	}
	return t.store.Quote(date)
}

// SetQuote stores q for its date, today when empty.
func (t *Tracker) SetQuote(q schema.DailyQuote) (schema.DailyQuote, error) {
	if q.Date == "" {
		q.Date = t.today()
	}
	if err := q.Validate(); err != nil {
		return schema.DailyQuote{}, err
	}
	quotes := t.store.Quotes()
	replaced := false
	for i := range quotes {
		if quotes[i].Date == q.Date {
			quotes[i] = q
			replaced = true
		}
	}
	if !replaced {
		quotes = append(quotes, q)
	}
	if err := t.store.SetQuotes(quotes); err != nil {
		return schema.DailyQuote{}, err
	}
	t.enqueue(queue.Create(remote.FromQuote(t.user(), q)))
	return q, nil
}

// UpdatePreferences applies fn to the stored preferences. The API key is
// device-local; changing only the key enqueues nothing.
func (t *Tracker) UpdatePreferences(fn func(p *schema.UserPreferences)) (schema.UserPreferences, error) {
	before := t.store.Preferences()
	after := before
	fn(&after)
	if err := after.Validate(); err != nil {
		return schema.UserPreferences{}, err
	}
	if err := t.store.SetPreferences(after); err != nil {
		return schema.UserPreferences{}, err
	}

	b, a := before, after
	b.APIKey, a.APIKey = "", ""
	if a != b {
		t.enqueue(queue.Create(remote.FromPreferences(t.user(), after)))
	}
	return after, nil
}
