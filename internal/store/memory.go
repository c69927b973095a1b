package store

import "sync"

// MemoryKV is a process-local KV used by tests and one-shot tooling.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailPut, when set, is returned by every write.
	FailPut error
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put implements KV.
func (m *MemoryKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return m.FailPut
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements KV.
func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Update implements KV. fn must not call back into m.
func (m *MemoryKV) Update(key string, fn func(old []byte, ok bool) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return m.FailPut
	}
	old, ok := m.data[key]
	var cp []byte
	if ok {
		cp = append([]byte(nil), old...)
	}
	next, err := fn(cp, ok)
	if err != nil {
		return err
	}
	if next != nil {
		m.data[key] = append([]byte(nil), next...)
	}
	return nil
}
