// Package remote defines the boundary to the networked store the sync engine
// and migration write to.
//
// The store is modelled as CRUD over named collections. Every record carries
// a remote id and the id of the user owning it. Adapters translate canonical
// camelCase field names into their own snake_case columns through the Codec;
// callers above this package never see remote column names.
//
// Implementations:
//   - Memory: in-process adapter with fault injection, used in tests and as
//     the default driver
//   - sqlstore: relational adapter (Postgres, libSQL/Turso, SQLite)
//   - couch: CouchDB document adapter
package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Update when the record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownCollection is returned for collection names outside the
	// fixed set.
	ErrUnknownCollection = errors.New("unknown collection")
)

// Collection names a remote table.
type Collection string

const (
	Goals          Collection = "goals"
	TinyGoals      Collection = "tiny_goals"
	DailyTasks     Collection = "daily_tasks"
	RecurringTasks Collection = "recurring_tasks"
	Quotes         Collection = "quotes"
	Preferences    Collection = "preferences"
)

// Collections lists every collection in migration order.
func Collections() []Collection {
	return []Collection{Goals, TinyGoals, DailyTasks, RecurringTasks, Quotes, Preferences}
}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

// Filter narrows List results.
type Filter struct {
	// UserID restricts results to one owner. Empty lists every owner.
	UserID string
}

// Adapter is the Remote Store Adapter contract.
//
// Every method fails with a descriptive error on network, permission or
// validation problems and never silently drops data.
type Adapter interface {
	// Insert creates rec, or replaces the record with the same id. A record
	// without an id is assigned a fresh one. The stored record is returned.
	Insert(ctx context.Context, rec Record) (Record, error)

	// Update patches the named canonical fields of record id. Returns
	// ErrNotFound if the record does not exist.
	Update(ctx context.Context, c Collection, id string, fields Fields) (Record, error)

	// Delete removes record id. Deleting a missing record is not an error.
	Delete(ctx context.Context, c Collection, id string) error

	// List returns the records of c matching f.
	List(ctx context.Context, c Collection, f Filter) ([]Record, error)
}

// Closer is implemented by adapters holding connections.
type Closer interface {
	Close() error
}
