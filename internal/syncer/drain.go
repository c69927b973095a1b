package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhousvawls/daily-coach/internal/identity"
	"github.com/jhousvawls/daily-coach/internal/queue"
	"github.com/jhousvawls/daily-coach/internal/remote"
)

// ErrNoMapping is returned for an update of a goal or tiny goal that was never
// created remotely.
var ErrNoMapping = errors.New("no remote id for local entity")

// Drain sends every queued operation once, in batches. It only runs when
// sync is enabled, the network is online, a user is signed in, the queue is
// non-empty and no other drain is running. Per-operation failures are
// recorded on the queue; the returned error reports systemic failures only.
func (e *Engine) Drain(ctx context.Context) (report Report, err error) {
	user, ok := e.auth.CurrentUser()

	e.mu.Lock()
	switch {
	case !e.state.SyncEnabled:
		report.Skipped = "sync disabled"
	case !e.net.Online():
		e.state.Online = false
		report.Skipped = "offline"
	case !ok:
		report.Skipped = "not signed in"
	case e.draining:
		e.rerun = true
		report.Skipped = "already syncing"
	}
	if report.Skipped != "" {
		e.mu.Unlock()
		return report, nil
	}
	e.draining = true
	e.mu.Unlock()

	ops := e.queue.Load()
	if len(ops) == 0 {
		e.mu.Lock()
		e.draining = false
		e.state.PendingOperations = 0
		e.mu.Unlock()
		report.Skipped = "queue empty"
		return report, nil
	}

	e.mu.Lock()
	e.stats.Drains++
	e.mu.Unlock()
	e.update(func(s *State) {
		s.Online = true
		s.Syncing = true
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drain panicked: %v", r)
		}
		e.finish(&report, err)
	}()

	for start := 0; start < len(ops); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(ops))

		results := make([]queue.Result, 0, end-start)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				report.Interrupted = true
				break
			}
			if !e.net.Online() {
				report.Interrupted = true
				break
			}
			report.Attempted++
			results = append(results, e.send(ctx, user.UserID, ops, i))
		}

		applied, err := e.queue.Apply(results, e.config.MaxRetries)
		if err != nil {
			return report, err
		}
		report.Committed += applied.Committed
		report.Failed += applied.Failed
		report.Abandoned += len(applied.Abandoned)
		report.Remaining = applied.Remaining

		if _, err := updatePersisted(e.kv, func(p *persistedState) { p.PendingOperations = applied.Remaining }); err != nil {
			return report, err
		}
		e.update(func(s *State) { s.PendingOperations = applied.Remaining })

		if report.Interrupted {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			e.config.Logger.Printf("Network lost mid-drain, %d operations remain", applied.Remaining)
			return report, nil
		}
	}
	return report, nil
}

// finish records the drain outcome and releases the draining flag.
func (e *Engine) finish(report *Report, err error) {
	now := e.config.Now().UTC()

	// A drain cut short by the network still counts as an attempt.
	p, perr := updatePersisted(e.kv, func(p *persistedState) {
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			p.Error = true
			p.ErrorMessage = err.Error()
		case err == nil:
			p.LastSyncTime = &now
			p.Error = false
			p.ErrorMessage = ""
		}
	})
	if perr != nil {
		e.config.Logger.Printf("WARNING: %v", perr)
	}

	e.mu.Lock()
	e.draining = false
	rerun := e.rerun
	e.rerun = false
	e.stats.Committed += int64(report.Committed)
	e.stats.Failed += int64(report.Failed)
	e.stats.Abandoned += int64(report.Abandoned)
	e.state.Syncing = false
	if report.Interrupted && !e.net.Online() {
		e.state.Online = false
	}
	if perr == nil {
		e.state.LastSyncTime = p.LastSyncTime
		e.state.Error = p.Error
		e.state.ErrorMessage = p.ErrorMessage
	} else if err != nil {
		e.state.Error = true
		e.state.ErrorMessage = err.Error()
	}
	snapshot := e.state
	e.mu.Unlock()

	e.bus.Publish(snapshot)
	if rerun {
		e.schedule()
	}
}

// send attempts ops[i] once and reports its outcome.
func (e *Engine) send(ctx context.Context, userID string, ops []queue.Operation, i int) queue.Result {
	op := ops[i]
	result := queue.Result{OpID: op.ID}

	t, err := e.resolve(userID, ops, i)
	if err != nil {
		result.Outcome = queue.Failed
		result.Err = err
		e.warn(op, err)
		return result
	}
	if t.settled {
		result.Outcome = t.outcome
		return result
	}
	result.RemoteID = t.allocated

	if e.config.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.OpTimeout)
		defer cancel()
	}

	switch op.Kind {
	case queue.KindCreate:
		rec := remote.Stamp(remote.Own(op.Record, userID), t.id, userID)
		_, err = e.adapter.Insert(ctx, rec)
		if err == nil && op.LocalID != nil {
			if typ, ok := entityType(op.Collection); ok {
				if berr := e.ids.Bind(*op.LocalID, t.id, typ); berr != nil {
					e.config.Logger.Printf("WARNING: failed to record remote id for %s: %v", op, berr)
				}
			}
		}
	case queue.KindUpdate:
		_, err = e.adapter.Update(ctx, op.Collection, t.id, op.Fields)
	case queue.KindDelete:
		err = e.adapter.Delete(ctx, op.Collection, t.id)
	default:
		err = fmt.Errorf("unknown operation kind %q", op.Kind)
	}

	if err != nil {
		result.Outcome = queue.Failed
		result.Err = err
		e.warn(op, err)
		return result
	}
	result.Outcome = queue.Committed
	return result
}

// target is the resolved remote address of an operation.
type target struct {
	id string
	// allocated is set when a fresh id was assigned to a create.
	allocated string
	// settled operations are not sent; outcome is final for this attempt.
	settled bool
	outcome queue.Outcome
}

func (e *Engine) resolve(userID string, ops []queue.Operation, i int) (target, error) {
	op := ops[i]

	if op.Key != "" {
		if id, ok := remote.KeyedID(op.Collection, userID, op.Key); ok {
			return target{id: id}, nil
		}
	}
	if op.RemoteID != "" {
		return target{id: op.RemoteID}, nil
	}

	typ, ok := entityType(op.Collection)
	if !ok || op.LocalID == nil {
		return target{}, fmt.Errorf("%s has no resolvable target", op)
	}
	if id, ok := e.ids.GetRemoteID(*op.LocalID, typ); ok {
		return target{id: id}, nil
	}

	switch op.Kind {
	case queue.KindCreate:
		id := identity.NewRemoteID()
		if err := e.queue.SetRemoteID(op.ID, id); err != nil {
			return target{}, err
		}
		return target{id: id, allocated: id}, nil
	case queue.KindDelete:
		if queue.PendingCreate(ops, i) {
			return target{settled: true, outcome: queue.Untouched}, nil
		}
		// Never reached the remote; nothing to delete there.
		return target{settled: true, outcome: queue.Committed}, nil
	default:
		if queue.PendingCreate(ops, i) {
			return target{settled: true, outcome: queue.Untouched}, nil
		}
		return target{}, fmt.Errorf("%w: %s", ErrNoMapping, op)
	}
}

func (e *Engine) warn(op queue.Operation, err error) {
	e.config.Logger.Printf("WARNING: sync of %s failed (attempt %d/%d): %v",
		op, op.RetryCount+1, e.config.MaxRetries, err)
}

func entityType(c remote.Collection) (identity.EntityType, bool) {
	switch c {
	case remote.Goals:
		return identity.EntityGoal, true
	case remote.TinyGoals:
		return identity.EntityTinyGoal, true
	}
	return "", false
}
