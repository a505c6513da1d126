package network

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"assessync/internal/app/client/store"
)

const (
	defaultInterval = 10 * time.Second
	defaultTimeout  = 5 * time.Second
	subscriberBuf   = 8
)

// Prober проверяет доступность сервера.
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// Transition смена состояния сети.
type Transition struct {
	Online bool
	At     time.Time
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

// Monitor хранит признак доступности сети и сообщает подписчикам о его
// смене. Состояние меняется опросом сервера (Run) или извне (SetOnline).
type Monitor struct {
	store    store.Store
	prober   Prober
	log      *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	// seqMu упорядочивает смену состояния, уведомления и сохранение
	seqMu  sync.Mutex
	mu     sync.RWMutex
	online bool
	subs   map[int]chan Transition
	nextID int
}

func New(s store.Store, prober Prober, log *slog.Logger, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		store:    s,
		prober:   prober,
		log:      log.With("component", "network"),
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      opts.Now,
		subs:     make(map[int]chan Transition),
	}
}

// IsOnline возвращает текущее состояние.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Restore восстанавливает последнее сохранённое состояние без уведомлений.
func (m *Monitor) Restore(ctx context.Context) error {
	state, err := store.LoadState[store.NetworkState](ctx, m.store, store.KeyNetworkStatus)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.online = state.Online
	m.mu.Unlock()
	return nil
}

// SetOnline применяет новое состояние. Подписчики уведомляются только о
// смене; changed сообщает, была ли она. Переходы доставляются в том же
// порядке, в каком менялось состояние.
func (m *Monitor) SetOnline(ctx context.Context, online bool) (bool, error) {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false, nil
	}
	m.online = online
	tr := Transition{Online: online, At: m.now()}
	m.mu.Unlock()

	m.log.Info("Состояние сети изменилось", "online", online)
	m.notify(tr)

	err := store.SaveState(ctx, m.store, store.KeyNetworkStatus, store.NetworkState{
		Online:    online,
		ChangedAt: tr.At,
	})
	return true, err
}

// notify отправляет переход подписчикам без блокировки. Канал закрывается
// только под записывающей блокировкой, поэтому отправка под RLock безопасна.
func (m *Monitor) notify(tr Transition) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subs {
		select {
		case ch <- tr:
		default:
			m.log.Warn("Подписчик не успевает читать события сети")
		}
	}
}

// Subscribe возвращает канал переходов и функцию отписки.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Transition, subscriberBuf)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			close(ch)
			m.mu.Unlock()
		})
	}
}

// Probe однократно проверяет сервер и применяет результат.
func (m *Monitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.HealthCheck(pctx)
	cancel()

	online := err == nil
	if err != nil && ctx.Err() == nil {
		m.log.Debug("Сервер недоступен", "error", err)
	}
	if ctx.Err() != nil {
		return m.IsOnline()
	}

	if _, err := m.SetOnline(ctx, online); err != nil {
		m.log.Error("Ошибка сохранения состояния сети", "error", err)
	}
	return online
}

// Run опрашивает сервер до отмены контекста.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
