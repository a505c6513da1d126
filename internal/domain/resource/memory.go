package resource

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"assessync/internal/domain/entity"
)

// MemoryRepository хранит коллекции в памяти процесса. Используется, когда
// сервер запущен без DATABASE_URI, и в тестах.
type MemoryRepository struct {
	mu    sync.Mutex
	next  int64
	items map[string]map[string]Resource
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]map[string]Resource),
		now:   time.Now,
	}
}

func (m *MemoryRepository) List(_ context.Context, collection string) ([]Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Resource, 0, len(m.items[collection]))
	for _, r := range m.items[collection] {
		out = append(out, copyResource(r))
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseInt(out[i].ID, 10, 64)
		b, _ := strconv.ParseInt(out[j].ID, 10, 64)
		return a < b
	})
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, collection, id string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.items[collection][id]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return copyResource(r), nil
}

func (m *MemoryRepository) Insert(_ context.Context, collection, key string, data entity.Payload) (Resource, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key != "" {
		for _, r := range m.items[collection] {
			if r.NaturalKey == key {
				return copyResource(r), false, nil
			}
		}
	}

	m.next++
	now := m.now()
	r := Resource{
		ID:         strconv.FormatInt(m.next, 10),
		Collection: collection,
		NaturalKey: key,
		Data:       data.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.items[collection] == nil {
		m.items[collection] = make(map[string]Resource)
	}
	m.items[collection][r.ID] = r
	return copyResource(r), true, nil
}

func (m *MemoryRepository) Update(_ context.Context, collection, id, key string, data entity.Payload) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.items[collection][id]
	if !ok {
		return Resource{}, ErrNotFound
	}
	r.NaturalKey = key
	r.Data = data.Clone()
	r.UpdatedAt = m.now()
	m.items[collection][id] = r
	return copyResource(r), nil
}

func (m *MemoryRepository) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.items[collection], id)
	return nil
}

func copyResource(r Resource) Resource {
	r.Data = r.Data.Clone()
	return r
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (m *MemoryRepository) Kind() string {
	return "memory"
}
