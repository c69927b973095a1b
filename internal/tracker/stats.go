package tracker

import (
	"sort"
	"time"

	"github.com/jhousvawls/daily-coach/internal/schema"
)

// ComputeStats derives the user counters from local data as of today.
//
// A streak is a run of consecutive dates with a completed daily task. The
// current streak is the run ending today, or yesterday while today's task is
// still open.
func ComputeStats(goals []schema.Goal, tiny []schema.TinyGoal, daily []schema.DailyTask, today time.Time) schema.UserStats {
	var stats schema.UserStats
	for _, g := range goals {
		if g.IsComplete() {
			stats.GoalsCompleted++
		}
	}
	for _, g := range tiny {
		if g.CompletedAt != nil {
			stats.TinyGoalsCompleted++
		}
	}

	var days []time.Time
	for _, d := range daily {
		if !d.Completed {
			continue
		}
		stats.DailyTasksCompleted++
		if day, err := schema.ParseDate(d.Date); err == nil {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return stats
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 0
	var prev time.Time
	for i, day := range days {
		switch {
		case i == 0:
			run = 1
		case day.Equal(prev):
			continue
		case day.Equal(prev.AddDate(0, 0, 1)):
			run++
		default:
			run = 1
		}
		prev = day
		if run > stats.LongestStreak {
			stats.LongestStreak = run
		}
	}

	last := days[len(days)-1]
	stats.LastActiveDate = schema.FormatDate(last)
	todayDate, _ := schema.ParseDate(schema.FormatDate(today))
	if last.Equal(todayDate) || last.Equal(todayDate.AddDate(0, 0, -1)) {
		stats.CurrentStreak = run
	}
	return stats
}

// RecomputeStats recomputes and persists the user counters.
func (t *Tracker) RecomputeStats() (schema.UserStats, error) {
	stats := ComputeStats(t.store.Goals(), t.store.TinyGoals(), t.store.DailyTasks(), t.now())
	if err := t.store.SetStats(stats); err != nil {
		return schema.UserStats{}, err
	}
	return stats, nil
}
