package events

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Type вид события синхронизации
type Type string

const (
	TypeOnline       Type = "online"
	TypeOffline      Type = "offline"
	TypeSyncComplete Type = "sync_complete"
	TypeSyncError    Type = "sync_error"
)

// Summary счётчики завершённой синхронизации.
type Summary struct {
	Drained   int
	Failed    int
	Remaining int
	Added     int
	Updated   int
	Deleted   int
}

type Event struct {
	Type    Type
	At      time.Time
	Summary *Summary
	Err     error
}

// Listener получает события. Вызывается синхронно в горутине публикации.
type Listener func(Event)

type ListenerID uint64

// Bus рассылает события синхронизации интерфейсу.
type Bus struct {
	log *slog.Logger

	mu        sync.RWMutex
	listeners map[ListenerID]Listener
	nextID    ListenerID
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		log:       log.With("component", "events"),
		listeners: make(map[ListenerID]Listener),
	}
}

// AddSyncListener регистрирует слушателя.
func (b *Bus) AddSyncListener(l Listener) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners[b.nextID] = l
	return b.nextID
}

// RemoveSyncListener снимает слушателя. Неизвестный id игнорируется.
func (b *Bus) RemoveSyncListener(id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// Publish доставляет событие всем слушателям в порядке регистрации.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	ids := make([]ListenerID, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	ls := make(map[ListenerID]Listener, len(ids))
	for _, id := range ids {
		ls[id] = b.listeners[id]
	}
	b.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		b.deliver(id, ls[id], e)
	}
}

func (b *Bus) deliver(id ListenerID, l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Слушатель событий завершился паникой", "listener", id, "event", e.Type, "panic", r)
		}
	}()
	l(e)
}
