package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhousvawls/daily-coach/internal/store"
)

// State is the process-wide sync status. Online and Syncing are runtime only
// and never persisted.
type State struct {
	Online            bool       `json:"isOnline"`
	Syncing           bool       `json:"isSyncing"`
	LastSyncTime      *time.Time `json:"lastSyncTime,omitempty"`
	PendingOperations int        `json:"pendingOperations"`
	SyncEnabled       bool       `json:"syncEnabled"`
	Error             bool       `json:"error"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
}

// Status condenses the state into one indicator: disabled, offline, syncing,
// error, pending or synced.
func (s State) Status() string {
	switch {
	case !s.SyncEnabled:
		return "disabled"
	case !s.Online:
		return "offline"
	case s.Syncing:
		return "syncing"
	case s.Error:
		return "error"
	case s.PendingOperations > 0:
		return "pending"
	default:
		return "synced"
	}
}

// persistedState is the part of State stored under the sync state key.
type persistedState struct {
	SyncEnabled       bool       `json:"syncEnabled"`
	LastSyncTime      *time.Time `json:"lastSyncTime,omitempty"`
	PendingOperations int        `json:"pendingOperations"`
	Error             bool       `json:"error"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
}

func loadPersisted(kv store.KV) (persistedState, error) {
	var p persistedState
	data, ok, err := kv.Get(store.KeySyncState)
	if err != nil {
		return p, fmt.Errorf("failed to read sync state: %w", err)
	}
	if !ok {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return persistedState{}, fmt.Errorf("corrupt sync state: %w", err)
	}
	return p, nil
}

// updatePersisted applies fn to the stored state in one transaction and
// returns the result.
func updatePersisted(kv store.KV, fn func(*persistedState)) (persistedState, error) {
	var out persistedState
	err := kv.Update(store.KeySyncState, func(old []byte, ok bool) ([]byte, error) {
		var p persistedState
		if ok {
			if err := json.Unmarshal(old, &p); err != nil {
				p = persistedState{}
			}
		}
		fn(&p)
		out = p
		return json.Marshal(p)
	})
	if err != nil {
		return persistedState{}, fmt.Errorf("failed to persist sync state: %w", err)
	}
	return out, nil
}

// ReadState returns the persisted sync state without starting an engine.
// Online and Syncing are always false.
func ReadState(kv store.KV) (State, error) {
	p, err := loadPersisted(kv)
	if err != nil {
		return State{}, err
	}
	return State{
		LastSyncTime:      p.LastSyncTime,
		PendingOperations: p.PendingOperations,
		SyncEnabled:       p.SyncEnabled,
		Error:             p.Error,
		ErrorMessage:      p.ErrorMessage,
	}, nil
}

// SetEnabled persists the sync-enabled flag without starting an engine.
func SetEnabled(kv store.KV, enabled bool) error {
	_, err := updatePersisted(kv, func(p *persistedState) { p.SyncEnabled = enabled })
	return err
}
