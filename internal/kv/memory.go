package kv

import (
	"context"
	"sync"
	"sync/atomic"
)

type memoryData struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool

	handles atomic.Uint64
	watch   fanout
}

// Memory is a process-local store. Handles created with Handle share the
// same data but each only sees changes made through the others, the way
// two browser tabs share one origin's storage.
type Memory struct {
	data *memoryData
	id   uint64
}

func NewMemory() *Memory {
	d := &memoryData{values: make(map[string]string)}
	return &Memory{data: d, id: d.handles.Add(1)}
}

func (m *Memory) Handle() *Memory {
	return &Memory{data: m.data, id: m.data.handles.Add(1)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	if m.data.closed {
		return "", false, ErrClosed
	}

	v, ok := m.data.values[key]
	return v, ok, nil
}

func (m *Memory) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	if m.data.closed {
		return nil, ErrClosed
	}

	return pick(m.data.values, keys), nil
}

func (m *Memory) SetMany(_ context.Context, values map[string]string) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if m.data.closed {
		return ErrClosed
	}

	var changes []Change
	for k, v := range values {
		if old, ok := m.data.values[k]; ok && old == v {
			continue
		}
		m.data.values[k] = v
		changes = append(changes, Change{Key: k, Value: v})
	}

	// still under the lock, so watchers see writes in the order they happened
	m.data.watch.publish(m.id, changes)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if m.data.closed {
		return ErrClosed
	}

	var changes []Change
	for _, k := range keys {
		if _, ok := m.data.values[k]; !ok {
			continue
		}
		delete(m.data.values, k)
		changes = append(changes, Change{Key: k, Deleted: true})
	}

	// still under the lock, so watchers see writes in the order they happened
	m.data.watch.publish(m.id, changes)
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	if m.data.closed {
		return nil, ErrClosed
	}

	return m.data.watch.subscribe(ctx, m.id), nil
}

// Close closes the shared data for every handle.
func (m *Memory) Close() error {
	m.data.mu.Lock()
	m.data.closed = true
	m.data.mu.Unlock()

	m.data.watch.closeAll()
	return nil
}
