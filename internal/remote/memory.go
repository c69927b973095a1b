package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Op names an adapter method for fault injection and call counting.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

// Memory is an in-process Adapter. Rows are stored translated, exactly as a
// relational adapter would store them.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	rows     map[Collection]map[string]Row
	order    map[Collection][]string
	calls    map[Op]int
	failNext int
	failErr  error
	failFunc func(op Op, c Collection, id string) error
}

// NewMemory returns an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{
		rows:  make(map[Collection]map[string]Row),
		order: make(map[Collection][]string),
		calls: make(map[Op]int),
	}
}

// FailNext makes the next n calls fail with err.
func (m *Memory) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failErr = err
}

// FailFunc installs a hook consulted before every call. A non-nil result
// fails the call. Pass nil to remove it.
func (m *Memory) FailFunc(fn func(op Op, c Collection, id string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFunc = fn
}

// Calls returns how many times op was invoked, failed calls included.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Len returns the number of records stored in c.
func (m *Memory) Len(c Collection) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[c])
}

// Row returns the stored translated row, for inspecting column names.
func (m *Memory) Row(c Collection, id string) (Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[c][id]
	if !ok {
		return nil, false
	}
	cp := make(Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return cp, true
}

// enter records the call and applies injected faults. Caller holds m.mu.
func (m *Memory) enter(ctx context.Context, op Op, c Collection, id string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := Columns(c); err != nil {
		return err
	}
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("%s %s: %w", op, c, m.failErr)
	}
	if m.failFunc != nil {
		if err := m.failFunc(op, c, id); err != nil {
			return fmt.Errorf("%s %s: %w", op, c, err)
		}
	}
	return nil
}

// Insert implements Adapter.
func (m *Memory) Insert(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, OpInsert, rec.Collection(), rec.RecordID()); err != nil {
		return nil, err
	}
	if rec.RecordID() == "" {
		rec = Stamp(rec, uuid.NewString(), rec.Owner())
	}
	row, err := EncodeRecord(rec)
	if err != nil {
		return nil, err
	}

	c, id := rec.Collection(), rec.RecordID()
	if m.rows[c] == nil {
		m.rows[c] = make(map[string]Row)
	}
	if _, exists := m.rows[c][id]; !exists {
		m.order[c] = append(m.order[c], id)
	}
	m.rows[c][id] = row
	return DecodeRow(c, row)
}

// Update implements Adapter.
func (m *Memory) Update(ctx context.Context, c Collection, id string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, OpUpdate, c, id); err != nil {
		return nil, err
	}
	row, ok := m.rows[c][id]
	if !ok {
		return nil, fmt.Errorf("update %s %s: %w", c, id, ErrNotFound)
	}
	patch, err := EncodeFields(c, fields)
	if err != nil {
		return nil, err
	}
	next := make(Row, len(row))
	for k, v := range row {
		next[k] = v
	}
	for k, v := range patch {
		next[k] = v
	}
	m.rows[c][id] = next
	return DecodeRow(c, next)
}

// Delete implements Adapter.
func (m *Memory) Delete(ctx context.Context, c Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, OpDelete, c, id); err != nil {
		return err
	}
	if _, ok := m.rows[c][id]; !ok {
		return nil
	}
	delete(m.rows[c], id)
	ids := m.order[c]
	for i, v := range ids {
		if v == id {
			m.order[c] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// List implements Adapter. Records come back in first-insert order.
func (m *Memory) List(ctx context.Context, c Collection, f Filter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, OpList, c, ""); err != nil {
		return nil, err
	}
	out := []Record{}
	for _, id := range m.order[c] {
		row := m.rows[c][id]
		if f.UserID != "" && row["user_id"] != f.UserID {
			continue
		}
		rec, err := DecodeRow(c, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
