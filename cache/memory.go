package cache

import (
	"fmt"
	"sync"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/signal"
)

// Memory is an in-memory store. It's safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	props acoustic.Properties
	data  signal.Float64
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
	}
}

// Exists returns true if committed entry is present.
func (m *Memory) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// Open returns appender for a new entry.
func (m *Memory) Open(key string, props acoustic.Properties) (Appender, error) {
	return &memoryAppender{
		store: m,
		key:   key,
		entry: entry{
			props: props,
			data:  signal.EmptyFloat64(props.Channels, 0),
		},
	}, nil
}

// Read returns a copy of entry samples.
func (m *Memory) Read(key string, start, n int) (signal.Float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if start >= e.data.Size() {
		return signal.EmptyFloat64(e.data.NumChannels(), 0), nil
	}
	return e.data.Slice(start, n), nil
}

// Properties returns properties of committed entry.
func (m *Memory) Properties(key string) (acoustic.Properties, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return acoustic.Properties{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return e.props, nil
}

// Remove deletes the entry.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.entries, key)
	return nil
}

type memoryAppender struct {
	store     *Memory
	key       string
	entry     entry
	committed bool
}

func (a *memoryAppender) Append(b signal.Float64) error {
	if a.committed {
		return ErrCommitted
	}
	a.entry.data = a.entry.data.Append(b)
	return nil
}

// Commit publishes the entry. Samples are set to the actual length.
func (a *memoryAppender) Commit() error {
	if a.committed {
		return ErrCommitted
	}
	a.committed = true
	a.entry.props.Samples = a.entry.data.Size()
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.entries[a.key] = a.entry
	return nil
}
