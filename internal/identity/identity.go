// Package identity holds the table translating locally generated integer ids
// into remote ids.
//
// Only goals and tiny goals carry integer ids that need translating. The table
// is written at most once per (local id, entity type) pair and never updated;
// every other component resolves remote ids through it.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhousvawls/daily-coach/internal/store"
)

// EntityType scopes a mapping.
type EntityType string

const (
	EntityGoal     EntityType = "goal"
	EntityTinyGoal EntityType = "tiny_goal"
)

// ErrMappingExists is returned when a pair already has a mapping with a
// different remote id.
var ErrMappingExists = errors.New("identity mapping already exists")

// Mapping is one row of the table.
type Mapping struct {
	LocalID    int64      `json:"localId"`
	RemoteID   string     `json:"remoteId"`
	EntityType EntityType `json:"entityType"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Table is the Identity Mapping Table persisted under one store key.
type Table struct {
	kv  store.KV
	now func() time.Time
}

// NewTable returns a Table persisted in kv.
func NewTable(kv store.KV) *Table {
	return &Table{kv: kv, now: time.Now}
}

// NewRemoteID generates a fresh remote-compatible identifier.
func NewRemoteID() string {
	return uuid.NewString()
}

// CreateMapping generates a new remote id for (localID, typ), persists the
// mapping and returns the id. It fails with ErrMappingExists if the pair is
// already mapped; callers check GetRemoteID first.
func (t *Table) CreateMapping(localID int64, typ EntityType) (string, error) {
	remoteID := NewRemoteID()
	if err := t.insert(localID, remoteID, typ, false); err != nil {
		return "", err
	}
	return remoteID, nil
}

// Bind records an externally allocated remote id for (localID, typ). Binding
// the same pair to the same id again is a no-op.
func (t *Table) Bind(localID int64, remoteID string, typ EntityType) error {
	if _, err := uuid.Parse(remoteID); err != nil {
		return fmt.Errorf("invalid remote id %q: %w", remoteID, err)
	}
	return t.insert(localID, remoteID, typ, true)
}

func (t *Table) insert(localID int64, remoteID string, typ EntityType, allowSame bool) error {
	err := t.kv.Update(store.KeyIDMappings, func(old []byte, ok bool) ([]byte, error) {
		rows := decode(old, ok)
		for _, m := range rows {
			if m.LocalID != localID || m.EntityType != typ {
				continue
			}
			if allowSame && m.RemoteID == remoteID {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s %d -> %s", ErrMappingExists, typ, localID, m.RemoteID)
		}
		rows = append(rows, Mapping{
			LocalID:    localID,
			RemoteID:   remoteID,
			EntityType: typ,
			CreatedAt:  t.now().UTC(),
		})
		return json.Marshal(rows)
	})
	if err != nil {
		if errors.Is(err, ErrMappingExists) {
			return err
		}
		return fmt.Errorf("failed to persist identity mapping: %w", err)
	}
	return nil
}

// GetRemoteID returns the remote id mapped to (localID, typ).
func (t *Table) GetRemoteID(localID int64, typ EntityType) (string, bool) {
	for _, m := range t.List() {
		if m.LocalID == localID && m.EntityType == typ {
			return m.RemoteID, true
		}
	}
	return "", false
}

// GetLocalID returns the local id mapped to (remoteID, typ).
func (t *Table) GetLocalID(remoteID string, typ EntityType) (int64, bool) {
	for _, m := range t.List() {
		if m.RemoteID == remoteID && m.EntityType == typ {
			return m.LocalID, true
		}
	}
	return 0, false
}

// List returns every mapping ordered by entity type then local id. An
// unreadable table reads as empty.
func (t *Table) List() []Mapping {
	data, ok, err := t.kv.Get(store.KeyIDMappings)
	if err != nil {
		return []Mapping{}
	}
	rows := decode(data, ok)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntityType != rows[j].EntityType {
			return rows[i].EntityType < rows[j].EntityType
		}
		return rows[i].LocalID < rows[j].LocalID
	})
	return rows
}

// Len returns the number of mappings of typ.
func (t *Table) Len(typ EntityType) int {
	n := 0
	for _, m := range t.List() {
		if m.EntityType == typ {
			n++
		}
	}
	return n
}

func decode(data []byte, ok bool) []Mapping {
	if !ok {
		return []Mapping{}
	}
	var rows []Mapping
	if err := json.Unmarshal(data, &rows); err != nil || rows == nil {
		return []Mapping{}
	}
	return rows
}
