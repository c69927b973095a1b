package schema

import (
	"strings"
	"testing"
	"time"
)

func TestGoal_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		goal    Goal
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid goal",
			goal: Goal{ID: 1, Text: "Run a marathon", Category: CategoryPersonal, Progress: 40, CreatedAt: now, UpdatedAt: now},
		},
		{
			name:    "missing text",
			goal:    Goal{ID: 1, Category: CategoryPersonal},
			wantErr: true,
			errMsg:  "Text failed required",
		},
		{
			name:    "bad category",
			goal:    Goal{ID: 1, Text: "x", Category: "hobby"},
			wantErr: true,
			errMsg:  "Category failed oneof",
		},
		{
			name:    "progress above 100",
			goal:    Goal{ID: 1, Text: "x", Category: CategoryProfessional, Progress: 101},
			wantErr: true,
			errMsg:  "Progress failed lte=100",
		},
		{
			name:    "bad target date",
			goal:    Goal{ID: 1, Text: "x", Category: CategoryPersonal, TargetDate: "next week"},
			wantErr: true,
			errMsg:  "TargetDate failed isodate",
		},
		{
			name:    "empty subtask text",
			goal:    Goal{ID: 1, Text: "x", Category: CategoryPersonal, Subtasks: []Subtask{{ID: 1}}},
			wantErr: true,
			errMsg:  "Text failed required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.goal.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestGoal_IsComplete(t *testing.T) {
	now := time.Now()
	g := Goal{Progress: 10}
	if g.IsComplete() {
		t.Error("goal at 10% should not be complete")
	}
	g.CompletedAt = &now
	if !g.IsComplete() {
		t.Error("goal with completion timestamp should be complete regardless of progress")
	}
	g = Goal{Progress: 100}
	if !g.IsComplete() {
		t.Error("goal at 100% should be complete")
	}
}

func TestGoal_SubtaskProgress(t *testing.T) {
	g := Goal{Progress: 30}
	if got := g.SubtaskProgress(); got != 30 {
		t.Errorf("SubtaskProgress() without subtasks = %d, want 30", got)
	}
	g.Subtasks = []Subtask{{Text: "a", Completed: true}, {Text: "b"}, {Text: "c"}, {Text: "d", Completed: true}}
	if got := g.SubtaskProgress(); got != 50 {
		t.Errorf("SubtaskProgress() = %d, want 50", got)
	}
}

func TestRecurringTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		task    RecurringTask
		wantErr bool
	}{
		{
			name: "weekly",
			task: RecurringTask{ID: "r1", Text: "Gym", Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{1, 3, 5}}},
		},
		{
			name: "monthly",
			task: RecurringTask{ID: "r2", Text: "Rent", Recurrence: Recurrence{Type: RecurrenceMonthly, MonthlyType: MonthlyFirstDay}},
		},
		{
			name:    "weekly without days",
			task:    RecurringTask{ID: "r3", Text: "Gym", Recurrence: Recurrence{Type: RecurrenceWeekly}},
			wantErr: true,
		},
		{
			name:    "weekday out of range",
			task:    RecurringTask{ID: "r4", Text: "Gym", Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{7}}},
			wantErr: true,
		},
		{
			name:    "monthly without type",
			task:    RecurringTask{ID: "r5", Text: "Rent", Recurrence: Recurrence{Type: RecurrenceMonthly}},
			wantErr: true,
		},
		{
			name:    "unknown recurrence",
			task:    RecurringTask{ID: "r6", Text: "Rent", Recurrence: Recurrence{Type: "daily"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.task.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurringTask_DueOn(t *testing.T) {
	day := func(s string) time.Time {
		d, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", s, err)
		}
		return d
	}

	gym := RecurringTask{Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{1, 3, 5}}}
	first := RecurringTask{Recurrence: Recurrence{Type: RecurrenceMonthly, MonthlyType: MonthlyFirstDay}}
	mid := RecurringTask{Recurrence: Recurrence{Type: RecurrenceMonthly, MonthlyType: MonthlyMidMonth}}
	last := RecurringTask{Recurrence: Recurrence{Type: RecurrenceMonthly, MonthlyType: MonthlyLastDay}}

	tests := []struct {
		name string
		task RecurringTask
		date string
		want bool
	}{
		{"weekly monday", gym, "2024-01-01", true},
		{"weekly tuesday", gym, "2024-01-02", false},
		{"weekly friday", gym, "2024-01-05", true},
		{"first day", first, "2024-03-01", true},
		{"not first day", first, "2024-03-02", false},
		{"mid month", mid, "2024-03-15", true},
		{"last day of leap february", last, "2024-02-29", true},
		{"not last day", last, "2024-02-28", false},
		{"last day of april", last, "2024-04-30", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.DueOn(day(tt.date)); got != tt.want {
				t.Errorf("DueOn(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestRecurringTask_CompletedOn(t *testing.T) {
	day, _ := ParseDate("2024-05-06")
	task := RecurringTask{}
	if task.CompletedOn(day) {
		t.Error("never-completed task reported as completed")
	}
	done := day.Add(10 * time.Hour)
	task.LastCompleted = &done
	if !task.CompletedOn(day) {
		t.Error("task completed that day not reported as completed")
	}
	if task.CompletedOn(day.AddDate(0, 0, 1)) {
		t.Error("task reported completed on the following day")
	}
}

func TestDailyTask_Validate(t *testing.T) {
	ok := DailyTask{Date: "2024-05-06", Text: "Ship the release"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	bad := DailyTask{Date: "05/06/2024", Text: "Ship"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestPreferences(t *testing.T) {
	p := DefaultPreferences()
	if !p.IsDefault() {
		t.Error("DefaultPreferences() should report IsDefault")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default preferences invalid: %v", err)
	}
	p.Theme = "dark"
	if p.IsDefault() {
		t.Error("changed preferences should not report IsDefault")
	}
	p.ReminderTime = "25:99"
	if err := p.Validate(); err == nil {
		t.Error("expected error for invalid reminder time")
	}
}
