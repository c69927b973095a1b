package migrate

import (
	"fmt"

	"github.com/jhousvawls/daily-coach/internal/identity"
	"github.com/jhousvawls/daily-coach/internal/remote"
)

type stagePlan struct {
	stage Stage
	noun  string
	items []item
	count func(*Counts)
}

// plan snapshots the Local Store into per-stage item lists owned by userID.
// Default preferences are not migrated.
func (m *Migrator) plan(userID string) []stagePlan {
	snap := m.store.Snapshot()

	goals := stagePlan{stage: StageGoals, noun: "goal", count: func(c *Counts) { c.Goals++ }}
	for _, g := range snap.Goals {
		id := g.ID
		goals.items = append(goals.items, item{
			label:   fmt.Sprintf("%q", g.Text),
			localID: &id,
			typ:     identity.EntityGoal,
			record:  remote.Stamp(remote.FromGoal(g), "", userID),
		})
	}

	tiny := stagePlan{stage: StageTinyGoals, noun: "tiny goal", count: func(c *Counts) { c.TinyGoals++ }}
	for _, g := range snap.TinyGoals {
		id := g.ID
		tiny.items = append(tiny.items, item{
			label:   fmt.Sprintf("%q", g.Text),
			localID: &id,
			typ:     identity.EntityTinyGoal,
			record:  remote.Stamp(remote.FromTinyGoal(g), "", userID),
		})
	}

	daily := stagePlan{stage: StageDailyTasks, noun: "daily task", count: func(c *Counts) { c.DailyTasks++ }}
	for _, d := range snap.DailyTasks {
		daily.items = append(daily.items, item{label: d.Date, record: remote.FromDailyTask(userID, d)})
	}

	recurring := stagePlan{stage: StageRecurringTasks, noun: "recurring task", count: func(c *Counts) { c.RecurringTasks++ }}
	for _, t := range snap.RecurringTasks {
		recurring.items = append(recurring.items, item{
			label:  fmt.Sprintf("%q", t.Text),
			record: remote.FromRecurringTask(userID, t),
		})
	}

	quotes := stagePlan{stage: StageQuotes, noun: "quote", count: func(c *Counts) { c.Quotes++ }}
	for _, q := range snap.Quotes {
		quotes.items = append(quotes.items, item{label: q.Date, record: remote.FromQuote(userID, q)})
	}

	prefs := stagePlan{stage: StagePreferences, noun: "preferences", count: func(c *Counts) { c.Preferences++ }}
	if !snap.Preferences.IsDefault() {
		prefs.items = append(prefs.items, item{label: "user preferences", record: remote.FromPreferences(userID, snap.Preferences)})
	}

	return []stagePlan{goals, tiny, daily, recurring, quotes, prefs}
}
