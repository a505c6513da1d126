package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"assessync/internal/app/client/gateway"
	"assessync/internal/app/client/outbox"
	"assessync/internal/app/client/remote"
	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
)

var ErrAlreadySyncing = errors.New("reconciliation already in progress")

const (
	defaultCallTimeout = 15 * time.Second
	defaultConcurrency = 4
)

type Options struct {
	CallTimeout time.Duration
	Concurrency int
	Now         func() time.Time
}

// Queue неотправленные изменения. Записи, по которым в очереди есть
// элементы, сверка оставляет как есть до их отправки.
type Queue interface {
	Pending(ctx context.Context) ([]*outbox.Item, error)
}

// Service сверяет локальные коллекции с сервером: сервер считается
// источником истины.
type Service struct {
	store       store.Store
	registry    *entity.Registry
	api         remote.API
	queue       Queue
	log         *slog.Logger
	callTimeout time.Duration
	concurrency int
	now         func() time.Time

	mu        sync.Mutex
	isSyncing bool

	stateMu sync.Mutex
}

func New(s store.Store, reg *entity.Registry, api remote.API, queue Queue, log *slog.Logger, opts Options) *Service {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:       s,
		registry:    reg,
		api:         api,
		queue:       queue,
		log:         log.With("component", "reconcile"),
		callTimeout: opts.CallTimeout,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// IsSyncing сообщает, идёт ли сейчас сверка.
func (s *Service) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSyncing
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSyncing {
		return false
	}
	s.isSyncing = true
	return true
}

func (s *Service) end() {
	s.mu.Lock()
	s.isSyncing = false
	s.mu.Unlock()
}

// Run сверяет все типы реестра. Ошибки отдельных типов собираются в
// результате и не прерывают сверку остальных.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	if !s.begin() {
		return nil, ErrAlreadySyncing
	}
	defer s.end()

	res := newResult(s.now())
	types := s.registry.Types()

	s.log.Info("Начало сверки", "types", len(types))

	if err := s.saveProgress(ctx, store.LoadingProgress{Total: len(types), UpdatedAt: s.now()}); err != nil {
		return nil, err
	}

	loaded := 0
	var resMu sync.Mutex

	for _, level := range s.levels() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)

		for _, t := range level {
			t := t // копия переменной цикла (go 1.21)
			g.Go(func() error {
				tr := s.reconcileType(gctx, t)
				if err := gctx.Err(); err != nil {
					return err
				}

				resMu.Lock()
				res.Types[t] = tr
				loaded++
				progress := store.LoadingProgress{
					Total:     len(types),
					Loaded:    loaded,
					Current:   t.String(),
					UpdatedAt: s.now(),
				}
				resMu.Unlock()

				if err := s.saveProgress(gctx, progress); err != nil {
					s.log.Error("Ошибка сохранения прогресса", "error", err)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return res, err
		}
	}

	res.FinishedAt = s.now()

	if err := s.saveProgress(ctx, store.LoadingProgress{
		Total:     len(types),
		Loaded:    len(types),
		Done:      true,
		UpdatedAt: res.FinishedAt,
	}); err != nil {
		return res, err
	}
	if err := s.saveSyncState(ctx, res); err != nil {
		return res, err
	}

	added, updated, deleted := res.Totals()
	s.log.Info("Сверка завершена",
		"added", added,
		"updated", updated,
		"deleted", deleted,
		"duration", res.FinishedAt.Sub(res.StartedAt),
		"errors", res.Err(),
	)

	return res, nil
}

// levels группирует типы так, что справочники сверяются раньше типов,
// которые на них ссылаются. Внутри уровня типы независимы.
func (s *Service) levels() [][]entity.Type {
	depth := make(map[entity.Type]int)
	var visit func(t entity.Type, seen map[entity.Type]bool) int
	visit = func(t entity.Type, seen map[entity.Type]bool) int {
		if d, ok := depth[t]; ok {
			return d
		}
		if seen[t] {
			return 0
		}
		seen[t] = true

		d := 0
		if desc, err := s.registry.Lookup(t); err == nil {
			for _, target := range desc.Targets() {
				if target == t {
					continue
				}
				if td := visit(target, seen) + 1; td > d {
					d = td
				}
			}
		}
		depth[t] = d
		return d
	}

	maxDepth := 0
	for _, t := range s.registry.Types() {
		if d := visit(t, map[entity.Type]bool{}); d > maxDepth {
			maxDepth = d
		}
	}

	out := make([][]entity.Type, maxDepth+1)
	for _, t := range s.registry.Types() {
		out[depth[t]] = append(out[depth[t]], t)
	}
	return out
}

func (s *Service) reconcileType(ctx context.Context, t entity.Type) *TypeResult {
	tr := &TypeResult{Type: t}
	fail := func(err error) *TypeResult {
		tr.Errors = append(tr.Errors, fmt.Errorf("%s: %w", t, err))
		return tr
	}

	d, err := s.registry.Lookup(t)
	if err != nil {
		return fail(err)
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	raw, err := s.api.List(cctx, t)
	cancel()
	if err != nil {
		return fail(err)
	}

	payloads, err := gateway.Normalize(raw, d)
	if err != nil {
		return fail(err)
	}

	lookups, err := store.BuildLookups(ctx, s.store, s.registry, d)
	if err != nil {
		return fail(err)
	}

	coll := store.Records(s.store, d)
	localKeys, err := coll.Keys(ctx)
	if err != nil {
		return fail(err)
	}
	local := make(map[string]bool, len(localKeys))
	for _, k := range localKeys {
		local[k] = true
	}

	queued, err := s.queuedIDs(ctx, t)
	if err != nil {
		return fail(err)
	}

	now := s.now()
	remoteIDs := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		// запись известна серверу, даже если её не удалось преобразовать
		if id := p.ID(); id != "" {
			remoteIDs[id] = true
			if queued[id] {
				tr.Pending++
				continue
			}
		}
		rec, err := entity.ToLocal(d, p, lookups, now)
		if err != nil {
			tr.Errors = append(tr.Errors, fmt.Errorf("%s: %w", t, err))
			continue
		}

		if !local[rec.ID] {
			if err := coll.Put(ctx, rec.ID, rec); err != nil {
				return fail(err)
			}
			tr.Added++
			continue
		}

		existing, _, err := coll.Get(ctx, rec.ID)
		if err != nil {
			return fail(err)
		}
		if existing == nil || changed(existing, rec) {
			tr.Changed++
		}
		if existing != nil && existing.LocalChanges && entity.Checksum(existing.Data) != rec.Checksum {
			tr.Diverged = append(tr.Diverged, rec.ID)
		}
		if err := coll.Put(ctx, rec.ID, rec); err != nil {
			return fail(err)
		}
		tr.Updated++
	}

	for _, id := range localKeys {
		if remoteIDs[id] || entity.IsTempID(id) {
			continue
		}
		if queued[id] {
			tr.Pending++
			continue
		}
		if err := coll.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fail(err)
		}
		tr.Deleted++
	}

	sort.Strings(tr.Diverged)

	s.log.Debug("Тип сверен",
		"type", t,
		"added", tr.Added,
		"updated", tr.Updated,
		"deleted", tr.Deleted,
		"changed", tr.Changed,
		"pending", tr.Pending,
		"errors", len(tr.Errors),
	)

	return tr
}

// queuedIDs идентификаторы записей типа t, по которым есть неотправленные
// изменения, в том числе исчерпавшие попытки.
func (s *Service) queuedIDs(ctx context.Context, t entity.Type) (map[string]bool, error) {
	out := make(map[string]bool)
	if s.queue == nil {
		return out, nil
	}
	items, err := s.queue.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	for _, it := range items {
		if it.EntityType == t && it.EntityID != "" {
			out[it.EntityID] = true
		}
	}
	return out, nil
}

// changed сообщает, отличается ли локальная копия от серверной.
func changed(local, remote *entity.Record) bool {
	if local.LocalChanges || local.SyncStatus != entity.StatusSynced {
		return true
	}
	if local.Checksum != remote.Checksum {
		return true
	}
	if len(local.Lookups) != len(remote.Lookups) {
		return true
	}
	for k, v := range remote.Lookups {
		if local.Lookups[k] != v {
			return true
		}
	}
	return false
}

func (s *Service) saveProgress(ctx context.Context, p store.LoadingProgress) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return store.SaveState(ctx, s.store, store.KeyLoadingProgress, p)
}

func (s *Service) saveSyncState(ctx context.Context, res *Result) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	state, err := store.LoadState[store.SyncState](ctx, s.store, store.KeySyncStatus)
	if err != nil {
		return err
	}

	finished := res.FinishedAt
	state.LastSync = &finished
	state.Added = make(map[string]int)
	state.Updated = make(map[string]int)
	state.Deleted = make(map[string]int)
	for t, tr := range res.Types {
		state.Added[t.String()] = tr.Added
		state.Updated[t.String()] = tr.Updated
		state.Deleted[t.String()] = tr.Deleted
	}
	state.TotalSyncs++
	state.LastError = ""
	if err := res.Err(); err != nil {
		state.TotalFailures++
		state.LastError = err.Error()
	}

	return store.SaveState(ctx, s.store, store.KeySyncStatus, state)
}
