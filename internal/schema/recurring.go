package schema

import (
	"fmt"
	"time"
)

// RecurrenceType selects how a recurring task repeats.
type RecurrenceType string

const (
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// MonthlyType selects the day of month a monthly task falls on.
type MonthlyType string

const (
	MonthlyFirstDay MonthlyType = "firstDay"
	MonthlyMidMonth MonthlyType = "midMonth"
	MonthlyLastDay  MonthlyType = "lastDay"
)

// Recurrence describes a repeat rule. Days is used for weekly rules
// (0=Sunday..6=Saturday), MonthlyType for monthly rules.
type Recurrence struct {
	Type        RecurrenceType `json:"type" yaml:"type" toml:"type" validate:"oneof=weekly monthly"`
	Days        []int          `json:"days,omitempty" yaml:"days,omitempty" toml:"days,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
	MonthlyType MonthlyType    `json:"monthlyType,omitempty" yaml:"monthlyType,omitempty" toml:"monthlyType,omitempty" validate:"omitempty,oneof=firstDay midMonth lastDay"`
}

// RecurringTask is a task that comes due on a weekly or monthly rule.
type RecurringTask struct {
	ID            string     `json:"id" yaml:"id" toml:"id" validate:"required"`
	Text          string     `json:"text" yaml:"text" toml:"text" validate:"required,max=500"`
	Recurrence    Recurrence `json:"recurrence" yaml:"recurrence" toml:"recurrence"`
	LastCompleted *time.Time `json:"lastCompleted,omitempty" yaml:"lastCompleted,omitempty" toml:"lastCompleted,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" yaml:"updatedAt" toml:"updatedAt"`
}

// Validate checks field constraints.
func (r *RecurringTask) Validate() error {
	if err := check("recurring task", r); err != nil {
		return err
	}
	switch r.Recurrence.Type {
	case RecurrenceWeekly:
		if len(r.Recurrence.Days) == 0 {
			return fmt.Errorf("invalid recurring task: weekly recurrence needs at least one day")
		}
	case RecurrenceMonthly:
		if r.Recurrence.MonthlyType == "" {
			return fmt.Errorf("invalid recurring task: monthly recurrence needs a monthly type")
		}
	}
	return nil
}

// DueOn reports whether the task falls on day.
func (r *RecurringTask) DueOn(day time.Time) bool {
	switch r.Recurrence.Type {
	case RecurrenceWeekly:
		wd := int(day.Weekday())
		for _, d := range r.Recurrence.Days {
			if d == wd {
				return true
			}
		}
		return false
	case RecurrenceMonthly:
		switch r.Recurrence.MonthlyType {
		case MonthlyFirstDay:
			return day.Day() == 1
		case MonthlyMidMonth:
			return day.Day() == 15
		case MonthlyLastDay:
			return day.AddDate(0, 0, 1).Day() == 1
		}
	}
	return false
}

// CompletedOn reports whether the task was last completed on day's date.
func (r *RecurringTask) CompletedOn(day time.Time) bool {
	if r.LastCompleted == nil {
		return false
	}
	return FormatDate(r.LastCompleted.In(day.Location())) == FormatDate(day)
}
