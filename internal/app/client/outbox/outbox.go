package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/exp/slog"

	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
)

const defaultMaxRetries = 5

// Replayer отправляет один элемент очереди на сервер. Для create возвращает
// постоянный идентификатор созданной записи.
type Replayer interface {
	Replay(ctx context.Context, item *Item) (string, error)
}

// ReplayFunc адаптер функции к Replayer.
type ReplayFunc func(ctx context.Context, item *Item) (string, error)

func (f ReplayFunc) Replay(ctx context.Context, item *Item) (string, error) {
	return f(ctx, item)
}

type Options struct {
	MaxRetries int
	Backoff    Backoff
	Now        func() time.Time
}

// Outbox очередь синхронизации поверх коллекции sync_queue.
type Outbox struct {
	items      *store.Collection[*Item]
	registry   *entity.Registry
	log        *slog.Logger
	maxRetries int
	backoff    Backoff
	now        func() time.Time

	mu       sync.Mutex
	drainMu  sync.Mutex
	inflight map[string]bool
}

// DrainResult итог одного разбора очереди.
type DrainResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Deferred  int
	Remaining int
	Exhausted []*SyncExhaustedError
}

func New(s store.Store, reg *entity.Registry, log *slog.Logger, opts Options) *Outbox {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Outbox{
		items:      store.NewCollection[*Item](s, store.CollectionSyncQueue),
		registry:   reg,
		log:        log.With("component", "outbox"),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		now:        opts.Now,
		inflight:   make(map[string]bool),
	}
}

// Enqueue ставит мутацию в очередь. Изменение записи, создание которой ещё
// не отправлено, сливается с элементом создания. Если создание уже
// отправляется, изменение встаёт отдельным элементом.
func (o *Outbox) Enqueue(ctx context.Context, t entity.Type, op entity.Operation, entityID string, data entity.Payload) (*Item, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if _, err := o.registry.Lookup(t); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if op == entity.OpUpdate && entityID != "" {
		creates, err := o.items.Query(ctx, func(it *Item) bool {
			return it.EntityType == t && it.EntityID == entityID && it.Operation == entity.OpCreate &&
				!it.Exhausted() && !o.inflight[it.ID]
		})
		if err != nil {
			return nil, err
		}
		if len(creates) > 0 {
			item := creates[0]
			if item.Data == nil {
				item.Data = entity.Payload{}
			}
			for k, v := range data {
				if k == "id" {
					continue
				}
				item.Data[k] = v
			}
			if err := o.items.Put(ctx, item.ID, item); err != nil {
				return nil, err
			}
			o.log.Debug("Изменение объединено с созданием", "item", item.ID, "type", t, "entity_id", entityID)
			return item, nil
		}
	}

	item := &Item{
		ID:         ulid.Make().String(),
		EntityType: t,
		EntityID:   entityID,
		Operation:  op,
		Data:       data,
		MaxRetries: o.maxRetries,
		Priority:   o.registry.PriorityOf(t),
		CreatedAt:  o.now(),
	}
	if err := o.items.Put(ctx, item.ID, item); err != nil {
		return nil, err
	}

	o.log.Debug("Элемент поставлен в очередь",
		"item", item.ID,
		"type", t,
		"op", op,
		"entity_id", entityID,
		"priority", item.Priority,
	)

	return item, nil
}

// Pending возвращает все элементы в порядке отправки.
func (o *Outbox) Pending(ctx context.Context) ([]*Item, error) {
	items, err := o.items.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	return items, nil
}

// PendingFor возвращает элементы, относящиеся к записи.
func (o *Outbox) PendingFor(ctx context.Context, t entity.Type, entityID string) ([]*Item, error) {
	items, err := o.items.Query(ctx, func(it *Item) bool {
		return it.EntityType == t && it.EntityID == entityID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	return items, nil
}

func (o *Outbox) Len(ctx context.Context) (int, error) {
	keys, err := o.items.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (o *Outbox) Get(ctx context.Context, id string) (*Item, error) {
	item, ok, err := o.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return item, nil
}

// Remove удаляет элемент из очереди. Отправляемый в данный момент элемент
// удалить нельзя.
func (o *Outbox) Remove(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok, err := o.items.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if o.inflight[id] {
		return fmt.Errorf("%w: %s", ErrDraining, id)
	}

	if err := o.items.Delete(ctx, id); err != nil {
		return err
	}

	o.log.Info("Элемент удалён из очереди", "item", id)
	return nil
}

// Requeue сбрасывает счётчик попыток, возвращая исчерпанный элемент в работу.
func (o *Outbox) Requeue(ctx context.Context, id string) (*Item, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	item, ok, err := o.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	item.RetryCount = 0
	item.NextAttemptAt = time.Time{}
	item.LastError = ""
	if err := o.items.Put(ctx, item.ID, item); err != nil {
		return nil, err
	}

	o.log.Info("Элемент возвращён в очередь", "item", id)
	return item, nil
}

// DiscardEntity удаляет все элементы, относящиеся к записи. Используется,
// когда запись, неизвестная серверу, удалена локально.
func (o *Outbox) DiscardEntity(ctx context.Context, t entity.Type, entityID string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	items, err := o.items.Query(ctx, func(it *Item) bool {
		return it.EntityType == t && it.EntityID == entityID
	})
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if err := o.items.Delete(ctx, it.ID); err != nil {
			return 0, err
		}
	}
	if len(items) > 0 {
		o.log.Debug("Элементы записи удалены из очереди", "type", t, "entity_id", entityID, "count", len(items))
	}
	return len(items), nil
}

// RewriteID заменяет временный идентификатор постоянным во всех элементах
// очереди: и в id сущности, и в ссылках из данных.
func (o *Outbox) RewriteID(ctx context.Context, oldID, newID string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rewriteIDLocked(ctx, oldID, newID)
}

func (o *Outbox) rewriteIDLocked(ctx context.Context, oldID, newID string) (int, error) {
	items, err := o.items.All(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, it := range items {
		if !it.rewriteID(oldID, newID) {
			continue
		}
		if err := o.items.Put(ctx, it.ID, it); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Drain отправляет готовые элементы в порядке приоритета. Ошибка отдельного
// элемента не прерывает разбор: она учитывается в счётчике попыток элемента.
// Разбор повторяется, пока успешные создания открывают путь элементам,
// ждавшим постоянного идентификатора.
func (o *Outbox) Drain(ctx context.Context, r Replayer) (DrainResult, error) {
	var res DrainResult

	if !o.drainMu.TryLock() {
		return res, ErrDraining
	}
	defer o.drainMu.Unlock()

	attempted := make(map[string]bool)
	for {
		progressed, err := o.drainPass(ctx, r, attempted, &res)
		if err != nil {
			return res, err
		}
		if !progressed {
			break
		}
	}

	items, err := o.items.All(ctx)
	if err != nil {
		return res, err
	}
	res.Remaining = len(items)
	res.Deferred = 0
	for _, it := range items {
		if !attempted[it.ID] && !it.Exhausted() {
			res.Deferred++
		}
	}

	o.log.Info("Очередь разобрана",
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"deferred", res.Deferred,
		"remaining", res.Remaining,
		"exhausted", len(res.Exhausted),
	)

	return res, nil
}

// drainPass один проход по очереди. progressed=true, если создание получило
// постоянный id и отложенные элементы могли стать готовыми.
//
// Элементы одной записи уходят строго по порядку: если элемент не отправлен
// (ошибка, ожидание, исчерпан или ждёт чужой id), остальные элементы этой
// записи в проходе пропускаются.
func (o *Outbox) drainPass(ctx context.Context, r Replayer, attempted map[string]bool, res *DrainResult) (bool, error) {
	items, err := o.Pending(ctx)
	if err != nil {
		return false, err
	}

	progressed := false
	blocked := make(map[string]bool)
	for _, snapshot := range items {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if blocked[entityKey(snapshot)] {
			continue
		}
		if attempted[snapshot.ID] {
			// попытка уже была и элемент остался в очереди
			blocked[entityKey(snapshot)] = true
			continue
		}

		// элемент мог измениться после снимка: слияние или замена id
		item, ok, err := o.claim(ctx, snapshot.ID)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if item.Exhausted() || !item.Due(o.now()) || item.blockedByTempID() || blocked[entityKey(item)] {
			blocked[entityKey(snapshot)] = true
			blocked[entityKey(item)] = true
			o.release(item.ID)
			continue
		}

		attempted[item.ID] = true
		res.Attempted++

		permID, replayErr := r.Replay(ctx, item)
		if replayErr != nil {
			if ctx.Err() != nil {
				o.release(item.ID)
				return false, ctx.Err()
			}
			blocked[entityKey(item)] = true
			exhausted, err := o.recordFailure(ctx, item, replayErr)
			if err != nil {
				return false, err
			}
			res.Failed++
			if exhausted != nil {
				res.Exhausted = append(res.Exhausted, exhausted)
			}
			continue
		}

		if err := o.complete(ctx, item, permID); err != nil {
			return false, err
		}
		res.Succeeded++
		if item.Operation == entity.OpCreate && entity.IsTempID(item.EntityID) && permID != "" {
			progressed = true
		}
	}

	return progressed, nil
}

func entityKey(it *Item) string {
	return string(it.EntityType) + "/" + it.EntityID
}

// claim перечитывает элемент и помечает его отправляемым, чтобы Enqueue не
// сливал с ним новые изменения.
func (o *Outbox) claim(ctx context.Context, id string) (*Item, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	item, ok, err := o.items.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	o.inflight[id] = true
	return item, true, nil
}

func (o *Outbox) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}

func (o *Outbox) complete(ctx context.Context, item *Item, permID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer delete(o.inflight, item.ID)

	if err := o.items.Delete(ctx, item.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if item.Operation != entity.OpCreate || !entity.IsTempID(item.EntityID) || permID == "" {
		return nil
	}

	n, err := o.rewriteIDLocked(ctx, item.EntityID, permID)
	if err != nil {
		return err
	}
	o.log.Debug("Временный идентификатор заменён в очереди",
		"temp_id", item.EntityID,
		"id", permID,
		"items", n,
	)
	return nil
}

func (o *Outbox) recordFailure(ctx context.Context, item *Item, cause error) (*SyncExhaustedError, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer delete(o.inflight, item.ID)

	// перечитываем: за время вызова элемент мог быть дополнен
	current, ok, err := o.items.Get(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	current.RetryCount++
	current.LastError = cause.Error()
	current.NextAttemptAt = o.now().Add(o.backoff.Delay(current.RetryCount))
	if err := o.items.Put(ctx, current.ID, current); err != nil {
		return nil, err
	}

	o.log.Warn("Ошибка отправки элемента",
		"item", current.ID,
		"type", current.EntityType,
		"op", current.Operation,
		"retry", current.RetryCount,
		"max_retries", current.MaxRetries,
		"error", cause,
	)

	if current.Exhausted() {
		return &SyncExhaustedError{Item: current}, nil
	}
	return nil, nil
}
