package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore временное in-memory хранилище. Используется, если SQLite
// недоступна, и в тестах.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	closed      bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
	}
}

func (m *MemoryStore) Put(_ context.Context, collection, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return wrap("put", collection, key, ErrClosed)
	}
	m.putLocked(collection, key, doc)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, wrap("get", collection, key, ErrClosed)
	}
	doc, ok := m.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (m *MemoryStore) GetAll(ctx context.Context, collection string) ([]Entry, error) {
	return m.Query(ctx, collection, nil)
}

func (m *MemoryStore) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return wrap("delete", collection, key, ErrClosed)
	}
	delete(m.collections[collection], key)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, pred Predicate) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, wrap("query", collection, "", ErrClosed)
	}

	var entries []Entry
	for _, key := range m.sortedKeysLocked(collection) {
		doc := m.collections[collection][key]
		if pred == nil || pred(key, doc) {
			entries = append(entries, Entry{Key: key, Doc: clone(doc)})
		}
	}
	return entries, nil
}

func (m *MemoryStore) Keys(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, wrap("keys", collection, "", ErrClosed)
	}
	return m.sortedKeysLocked(collection), nil
}

func (m *MemoryStore) Rekey(_ context.Context, collection, oldKey, newKey string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return wrap("rekey", collection, oldKey, ErrClosed)
	}
	m.putLocked(collection, newKey, doc)
	if oldKey != newKey {
		delete(m.collections[collection], oldKey)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryStore) putLocked(collection, key string, doc []byte) {
	c, ok := m.collections[collection]
	if !ok {
		c = make(map[string][]byte)
		m.collections[collection] = c
	}
	c[key] = clone(doc)
}

func (m *MemoryStore) sortedKeysLocked(collection string) []string {
	c := m.collections[collection]
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
