package migrate

import (
	"context"
	"fmt"

	"github.com/jhousvawls/daily-coach/internal/remote"
)

// Mismatch reports a collection whose local and remote counts differ.
type Mismatch struct {
	Collection remote.Collection `json:"collection"`
	Local      int               `json:"local"`
	Remote     int               `json:"remote"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %d local, %d remote", m.Collection, m.Local, m.Remote)
}

// Validate compares local and remote counts for goals, tiny goals and daily
// tasks of the signed-in user. It reports mismatches and repairs nothing.
func (m *Migrator) Validate(ctx context.Context) ([]Mismatch, error) {
	user, ok := m.auth.CurrentUser()
	if !ok {
		return nil, ErrUnauthenticated
	}

	snap := m.store.Snapshot()
	local := []struct {
		c remote.Collection
		n int
	}{
		{remote.Goals, len(snap.Goals)},
		{remote.TinyGoals, len(snap.TinyGoals)},
		{remote.DailyTasks, len(snap.DailyTasks)},
	}

	var mismatches []Mismatch
	for _, l := range local {
		records, err := m.adapter.List(ctx, l.c, remote.Filter{UserID: user.UserID})
		if err != nil {
			return nil, fmt.Errorf("failed to list remote %s: %w", l.c, err)
		}
		if len(records) != l.n {
			mismatches = append(mismatches, Mismatch{Collection: l.c, Local: l.n, Remote: len(records)})
		}
	}
	return mismatches, nil
}
