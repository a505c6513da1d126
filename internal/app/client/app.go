package client

import (
	"context"
	"fmt"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"assessync/internal/app/client/config"
	"assessync/internal/app/client/events"
	"assessync/internal/app/client/gateway"
	"assessync/internal/app/client/network"
	"assessync/internal/app/client/outbox"
	"assessync/internal/app/client/reconcile"
	"assessync/internal/app/client/remote"
	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
)

// App координатор клиента: создаётся один раз на процесс и связывает
// хранилище, очередь, шлюз, сверку и монитор сети.
type App struct {
	config     *config.Config
	log        *slog.Logger
	store      store.Store
	registry   *entity.Registry
	api        remote.API
	outbox     *outbox.Outbox
	gateway    *gateway.Gateway
	reconciler *reconcile.Service
	monitor    *network.Monitor
	bus        *events.Bus
	now        func() time.Time

	syncMu    gosync.Mutex
	isSyncing bool

	mu      gosync.Mutex
	started bool
	wg      gosync.WaitGroup
	cancel  context.CancelFunc
}

// New создаёт приложение с SQLite-хранилищем и HTTP-клиентом. Если SQLite
// открыть не удалось, данные хранятся в памяти.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	var st store.Store
	sqliteStore, err := store.OpenSQLite(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		st = store.NewMemoryStore()
	} else {
		st = sqliteStore
	}

	api := remote.NewHTTPClient(cfg, log)

	return NewWith(cfg, log, st, api), nil
}

// NewWith создаёт приложение поверх готовых хранилища и удалённого API.
func NewWith(cfg *config.Config, log *slog.Logger, st store.Store, api remote.API) *App {
	reg := entity.DefaultRegistry()

	ob := outbox.New(st, reg, log, outbox.Options{
		MaxRetries: cfg.MaxRetries,
		Backoff: outbox.Backoff{
			Base:   cfg.RetryBaseDelay,
			Max:    cfg.RetryMaxDelay,
			Jitter: 0.2,
		},
	})
	monitor := network.New(st, api, log, network.Options{
		Interval: cfg.ProbeInterval,
		Timeout:  cfg.CallTimeout,
	})
	gw := gateway.New(st, reg, ob, api, monitor, log, gateway.Options{CallTimeout: cfg.CallTimeout})
	rec := reconcile.New(st, reg, api, ob, log, reconcile.Options{CallTimeout: cfg.CallTimeout})

	return &App{
		config:     cfg,
		log:        log,
		store:      st,
		registry:   reg,
		api:        api,
		outbox:     ob,
		gateway:    gw,
		reconciler: rec,
		monitor:    monitor,
		bus:        events.NewBus(log),
		now:        time.Now,
	}
}

// Start проверяет сеть, при её наличии сразу отправляет очередь и сверяет
// данные, затем запускает фоновый опрос сети и периодическую синхронизацию.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("клиент уже запущен")
	}
	a.started = true
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.monitor.Restore(ctx); err != nil {
		a.log.Warn("Не удалось восстановить состояние сети", "error", err)
	}
	online := a.monitor.Probe(ctx)

	transitions, unsubscribe := a.monitor.Subscribe()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.monitor.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("Монитор сети остановлен", "error", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		defer unsubscribe()
		a.loop(ctx, transitions, online)
	}()

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
		"online", online,
	)

	return nil
}

// Run запускает клиент и ждёт сигнала завершения.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.log.Info("Получен сигнал завершения")

	return a.Shutdown()
}

// Shutdown останавливает фоновые задачи и закрывает хранилище.
func (a *App) Shutdown() error {
	a.log.Info("Завершение работы клиента...")

	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия хранилища: %w", err)
	}

	a.log.Info("Клиент завершил работу")
	return nil
}

// Get читает записи через шлюз.
func (a *App) Get(ctx context.Context, t entity.Type, id string) ([]*entity.Record, error) {
	return a.gateway.Get(ctx, t, id)
}

// Mutate выполняет мутацию через шлюз.
func (a *App) Mutate(ctx context.Context, t entity.Type, op entity.Operation, id string, payload entity.Payload) (*entity.Record, error) {
	return a.gateway.Mutate(ctx, t, op, id, payload)
}

func (a *App) AddSyncListener(l events.Listener) events.ListenerID {
	return a.bus.AddSyncListener(l)
}

func (a *App) RemoveSyncListener(id events.ListenerID) {
	a.bus.RemoveSyncListener(id)
}

// SetOnline передаёт внешний сигнал о смене состояния сети.
func (a *App) SetOnline(ctx context.Context, online bool) error {
	_, err := a.monitor.SetOnline(ctx, online)
	return err
}

func (a *App) IsOnline() bool {
	return a.monitor.IsOnline()
}

// Probe однократно проверяет доступность сервера.
func (a *App) Probe(ctx context.Context) bool {
	return a.monitor.Probe(ctx)
}

// Outbox очередь синхронизации для просмотра и ручного повтора.
func (a *App) Outbox() *outbox.Outbox {
	return a.outbox
}

// Registry реестр типов сущностей.
func (a *App) Registry() *entity.Registry {
	return a.registry
}

// SyncState последнее сохранённое состояние синхронизации.
func (a *App) SyncState(ctx context.Context) (store.SyncState, error) {
	return store.LoadState[store.SyncState](ctx, a.store, store.KeySyncStatus)
}
