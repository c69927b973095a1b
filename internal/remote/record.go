package remote

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhousvawls/daily-coach/internal/schema"
)

// Record is one remote row. The set of implementations is closed: GoalRecord,
// TinyGoalRecord, DailyTaskRecord, RecurringTaskRecord, QuoteRecord and
// PreferencesRecord.
type Record interface {
	Collection() Collection
	RecordID() string
	Owner() string
	record()
}

// Fields is a partial record keyed by canonical field name.
type Fields map[string]any

// GoalRecord is the remote form of schema.Goal.
type GoalRecord struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	LocalID     int64            `json:"localId"`
	Text        string           `json:"text"`
	Description string           `json:"description"`
	Category    schema.Category  `json:"category"`
	Progress    int              `json:"progress"`
	TargetDate  string           `json:"targetDate"`
	CompletedAt *time.Time       `json:"completedAt"`
	Subtasks    []schema.Subtask `json:"subtasks"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TinyGoalRecord is the remote form of schema.TinyGoal.
type TinyGoalRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	LocalID     int64      `json:"localId"`
	Text        string     `json:"text"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   *time.Time `json:"createdAt"`
}

// DailyTaskRecord is the remote form of schema.DailyTask.
type DailyTaskRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Date        string     `json:"date"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
}

// RecurringTaskRecord is the remote form of schema.RecurringTask.
type RecurringTaskRecord struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	LocalID       string            `json:"localId"`
	Text          string            `json:"text"`
	Recurrence    schema.Recurrence `json:"recurrence"`
	LastCompleted *time.Time        `json:"lastCompleted"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// QuoteRecord is the remote form of schema.DailyQuote.
type QuoteRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Date   string `json:"date"`
	Text   string `json:"text"`
	Author string `json:"author"`
	Mood   string `json:"mood"`
}

// PreferencesRecord is the remote form of schema.UserPreferences. The API
// credential is device-local and never leaves the Local Store.
type PreferencesRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	ReminderTime  string `json:"reminderTime"`
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	ShowQuote     bool   `json:"showQuote"`
}

func (GoalRecord) Collection() Collection          { return Goals }
func (TinyGoalRecord) Collection() Collection      { return TinyGoals }
func (DailyTaskRecord) Collection() Collection     { return DailyTasks }
func (RecurringTaskRecord) Collection() Collection { return RecurringTasks }
func (QuoteRecord) Collection() Collection         { return Quotes }
func (PreferencesRecord) Collection() Collection   { return Preferences }

func (r GoalRecord) RecordID() string          { return r.ID }
func (r TinyGoalRecord) RecordID() string      { return r.ID }
func (r DailyTaskRecord) RecordID() string     { return r.ID }
func (r RecurringTaskRecord) RecordID() string { return r.ID }
func (r QuoteRecord) RecordID() string         { return r.ID }
func (r PreferencesRecord) RecordID() string   { return r.ID }

func (r GoalRecord) Owner() string          { return r.UserID }
func (r TinyGoalRecord) Owner() string      { return r.UserID }
func (r DailyTaskRecord) Owner() string     { return r.UserID }
func (r RecurringTaskRecord) Owner() string { return r.UserID }
func (r QuoteRecord) Owner() string         { return r.UserID }
func (r PreferencesRecord) Owner() string   { return r.UserID }

func (GoalRecord) record()          {}
func (TinyGoalRecord) record()      {}
func (DailyTaskRecord) record()     {}
func (RecurringTaskRecord) record() {}
func (QuoteRecord) record()         {}
func (PreferencesRecord) record()   {}

// Stamp returns rec with its id and owner set. An empty id keeps the
// record's current id.
func Stamp(rec Record, id, userID string) Record {
	switch r := rec.(type) {
	case GoalRecord:
		if id != "" {
			r.ID = id
		}
		r.UserID = userID
		return r
	case TinyGoalRecord:
		if id != "" {
			r.ID = id
		}
		r.UserID = userID
		return r
	case DailyTaskRecord:
		if id != "" {
			r.ID = id
		}
		r.UserID = userID
		return r
	case RecurringTaskRecord:
		if id != "" {
			r.ID = id
		}
		r.UserID = userID
		return r
	case QuoteRecord:
		if id != "" {
			r.ID = id
		}
		r.UserID = userID
		return r
	case PreferencesRecord:
		if id != "" {
			r.ID = id
		}
		r.UserID = userID
		return r
	}
	return rec
}

// FromGoal converts a local goal. The remote id is left empty; it comes from
// the identity table.
func FromGoal(g schema.Goal) GoalRecord {
	subtasks := g.Subtasks
	if subtasks == nil {
		subtasks = []schema.Subtask{}
	}
	return GoalRecord{
		LocalID:     g.ID,
		Text:        g.Text,
		Description: g.Description,
		Category:    g.Category,
		Progress:    g.Progress,
		TargetDate:  g.TargetDate,
		CompletedAt: g.CompletedAt,
		Subtasks:    subtasks,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// Goal converts back to the local form.
func (r GoalRecord) Goal() schema.Goal {
	return schema.Goal{
		ID:          r.LocalID,
		Text:        r.Text,
		Description: r.Description,
		Category:    r.Category,
		Progress:    r.Progress,
		TargetDate:  r.TargetDate,
		CompletedAt: r.CompletedAt,
		Subtasks:    r.Subtasks,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// FromTinyGoal converts a local tiny goal. The remote id is left empty.
func FromTinyGoal(g schema.TinyGoal) TinyGoalRecord {
	return TinyGoalRecord{
		LocalID:     g.ID,
		Text:        g.Text,
		CompletedAt: g.CompletedAt,
		CreatedAt:   g.CreatedAt,
	}
}

// TinyGoal converts back to the local form.
func (r TinyGoalRecord) TinyGoal() schema.TinyGoal {
	return schema.TinyGoal{ID: r.LocalID, Text: r.Text, CompletedAt: r.CompletedAt, CreatedAt: r.CreatedAt}
}

// FromDailyTask converts a local daily task owned by userID.
func FromDailyTask(userID string, d schema.DailyTask) DailyTaskRecord {
	return DailyTaskRecord{
		ID:          DailyTaskID(userID, d.Date),
		UserID:      userID,
		Date:        d.Date,
		Text:        d.Text,
		Completed:   d.Completed,
		CompletedAt: d.CompletedAt,
	}
}

// DailyTask converts back to the local form.
func (r DailyTaskRecord) DailyTask() schema.DailyTask {
	return schema.DailyTask{Date: r.Date, Text: r.Text, Completed: r.Completed, CompletedAt: r.CompletedAt}
}

// FromRecurringTask converts a local recurring task owned by userID.
func FromRecurringTask(userID string, t schema.RecurringTask) RecurringTaskRecord {
	return RecurringTaskRecord{
		ID:            RecurringTaskID(userID, t.ID),
		UserID:        userID,
		LocalID:       t.ID,
		Text:          t.Text,
		Recurrence:    t.Recurrence,
		LastCompleted: t.LastCompleted,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// RecurringTask converts back to the local form.
func (r RecurringTaskRecord) RecurringTask() schema.RecurringTask {
	return schema.RecurringTask{
		ID:            r.LocalID,
		Text:          r.Text,
		Recurrence:    r.Recurrence,
		LastCompleted: r.LastCompleted,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// FromQuote converts a local quote owned by userID.
func FromQuote(userID string, q schema.DailyQuote) QuoteRecord {
	return QuoteRecord{
		ID:     QuoteID(userID, q.Date),
		UserID: userID,
		Date:   q.Date,
		Text:   q.Text,
		Author: q.Author,
		Mood:   q.Mood,
	}
}

// Quote converts back to the local form.
func (r QuoteRecord) Quote() schema.DailyQuote {
	return schema.DailyQuote{Date: r.Date, Text: r.Text, Author: r.Author, Mood: r.Mood}
}

// FromPreferences converts local preferences owned by userID.
func FromPreferences(userID string, p schema.UserPreferences) PreferencesRecord {
	return PreferencesRecord{
		ID:            PreferencesID(userID),
		UserID:        userID,
		ReminderTime:  p.ReminderTime,
		Theme:         p.Theme,
		Notifications: p.Notifications,
		ShowQuote:     p.ShowQuote,
	}
}

// Preferences converts back to the local form, keeping apiKey from local.
func (r PreferencesRecord) Preferences(apiKey string) schema.UserPreferences {
	return schema.UserPreferences{
		APIKey:        apiKey,
		ReminderTime:  r.ReminderTime,
		Theme:         r.Theme,
		Notifications: r.Notifications,
		ShowQuote:     r.ShowQuote,
	}
}

// namespace roots the name-based ids of date and string keyed entities.
var namespace = uuid.MustParse("6f1c1d0e-3b0a-5d8e-9a39-5b8e5c0e2a11")

// Keyed reports whether records of c get name-based ids derived from a
// natural key instead of the identity table.
func Keyed(c Collection) bool {
	switch c {
	case DailyTasks, Quotes, RecurringTasks, Preferences:
		return true
	}
	return false
}

// KeyedID derives the remote id of userID's record of c with natural key
// key. ok is false for collections whose ids come from the identity table.
func KeyedID(c Collection, userID, key string) (id string, ok bool) {
	if !Keyed(c) {
		return "", false
	}
	return uuid.NewSHA1(namespace, []byte(string(c)+"/"+userID+"/"+key)).String(), true
}

// Key returns the natural key of a keyed record: the date of daily tasks and
// quotes, the local id of recurring tasks, a constant for preferences. It is
// empty for goals and tiny goals.
func Key(rec Record) string {
	switch r := rec.(type) {
	case DailyTaskRecord:
		return r.Date
	case QuoteRecord:
		return r.Date
	case RecurringTaskRecord:
		return r.LocalID
	case PreferencesRecord:
		return preferencesKey
	}
	return ""
}

const preferencesKey = "preferences"

// Own stamps rec with userID and, for keyed collections, the id derived from
// userID and the record's natural key.
func Own(rec Record, userID string) Record {
	id, ok := KeyedID(rec.Collection(), userID, Key(rec))
	if !ok {
		id = ""
	}
	return Stamp(rec, id, userID)
}

func mustKeyedID(c Collection, userID, key string) string {
	id, _ := KeyedID(c, userID, key)
	return id
}

// DailyTaskID is the remote id of userID's task for date.
func DailyTaskID(userID, date string) string { return mustKeyedID(DailyTasks, userID, date) }

// QuoteID is the remote id of userID's quote for date.
func QuoteID(userID, date string) string { return mustKeyedID(Quotes, userID, date) }

// RecurringTaskID is the remote id of userID's recurring task localID.
func RecurringTaskID(userID, localID string) string {
	return mustKeyedID(RecurringTasks, userID, localID)
}

// PreferencesID is the remote id of userID's preferences row.
func PreferencesID(userID string) string { return mustKeyedID(Preferences, userID, preferencesKey) }

// PreferencesKey is the natural key of the preferences singleton.
func PreferencesKey() string { return preferencesKey }

// UnmarshalRecord decodes a canonical JSON record of collection c.
func UnmarshalRecord(c Collection, data []byte) (Record, error) {
	switch c {
	case Goals:
		return decodeInto[GoalRecord](data)
	case TinyGoals:
		return decodeInto[TinyGoalRecord](data)
	case DailyTasks:
		return decodeInto[DailyTaskRecord](data)
	case RecurringTasks:
		return decodeInto[RecurringTaskRecord](data)
	case Quotes:
		return decodeInto[QuoteRecord](data)
	case Preferences:
		return decodeInto[PreferencesRecord](data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}
