package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"assessync/internal/app/client/outbox"
	"assessync/internal/app/client/remote"
	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
)

const defaultCallTimeout = 15 * time.Second

// Connectivity источник признака доступности сети.
type Connectivity interface {
	IsOnline() bool
}

// RemoteRead удалённое чтение, результат которого ещё не нормализован.
type RemoteRead func(ctx context.Context) (json.RawMessage, error)

// LocalRead чтение из локального хранилища.
type LocalRead func(ctx context.Context) ([]*entity.Record, error)

// LocalWrite локальная часть мутации. Возвращает запись в состоянии после
// изменения (для удаления: удалённую запись).
type LocalWrite func(ctx context.Context) (*entity.Record, error)

// RemoteWrite удалённая часть мутации.
type RemoteWrite func(ctx context.Context, rec *entity.Record) (json.RawMessage, error)

type Options struct {
	CallTimeout time.Duration
	Now         func() time.Time
}

// Gateway перехватывает чтения и мутации интерфейса: читает через сервер с
// откатом на локальную копию, пишет сначала локально, а на сервер сразу или
// через очередь.
type Gateway struct {
	store       store.Store
	registry    *entity.Registry
	outbox      *outbox.Outbox
	api         remote.API
	net         Connectivity
	log         *slog.Logger
	callTimeout time.Duration
	now         func() time.Time
}

func New(s store.Store, reg *entity.Registry, ob *outbox.Outbox, api remote.API, net Connectivity, log *slog.Logger, opts Options) *Gateway {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		store:       s,
		registry:    reg,
		outbox:      ob,
		api:         api,
		net:         net,
		log:         log.With("component", "gateway"),
		callTimeout: opts.CallTimeout,
		now:         opts.Now,
	}
}

// InterceptGet читает данные типа t. При наличии сети данные берутся с
// сервера и сохраняются локально; при ошибке сервера или без сети
// возвращается локальная копия.
func (g *Gateway) InterceptGet(ctx context.Context, t entity.Type, remoteFn RemoteRead, localFn LocalRead) ([]*entity.Record, error) {
	d, err := g.registry.Lookup(t)
	if err != nil {
		return nil, err
	}

	if g.net.IsOnline() && remoteFn != nil {
		recs, err := g.readRemote(ctx, d, remoteFn)
		if err == nil {
			return recs, nil
		}

		var te *entity.TransformationError
		var se *store.StorageError
		switch {
		case errors.As(err, &te), errors.As(err, &se):
			g.log.Error("Ошибка обработки ответа сервера", "type", t, "error", err)
		default:
			g.log.Warn("Сервер недоступен, используем локальные данные", "type", t, "error", err)
		}
	}

	recs, err := localFn(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NoLocalDataError{Type: t}
	}
	return recs, nil
}

func (g *Gateway) readRemote(ctx context.Context, d *entity.Descriptor, remoteFn RemoteRead) ([]*entity.Record, error) {
	cctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	raw, err := remoteFn(cctx)
	if err != nil {
		return nil, err
	}

	payloads, err := Normalize(raw, d)
	if err != nil {
		return nil, err
	}

	lookups, err := store.BuildLookups(ctx, g.store, g.registry, d)
	if err != nil {
		return nil, err
	}

	coll := store.Records(g.store, d)
	now := g.now()
	out := make([]*entity.Record, 0, len(payloads))
	for _, p := range payloads {
		rec, err := entity.ToLocal(d, p, lookups, now)
		if err != nil {
			return nil, err
		}

		existing, ok, err := coll.Get(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		// неотправленные локальные изменения не перетираются чтением
		if ok && existing.LocalChanges {
			out = append(out, existing)
			continue
		}

		if err := coll.Put(ctx, rec.ID, rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// InterceptMutation выполняет мутацию: сначала локально, затем при наличии
// сети на сервере. Неудача сервера не возвращается вызывающему: мутация
// ставится в очередь, а запись возвращается со статусом pending.
func (g *Gateway) InterceptMutation(ctx context.Context, t entity.Type, op entity.Operation, remoteFn RemoteWrite, localFn LocalWrite) (*entity.Record, error) {
	d, err := g.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}

	rec, err := localFn(ctx)
	if err != nil {
		return nil, err
	}

	if op == entity.OpDelete && rec.IsTemp() {
		// сервер не знает о записи: достаточно забыть её мутации
		if _, err := g.outbox.DiscardEntity(ctx, t, rec.ID); err != nil {
			return nil, err
		}
		return rec, nil
	}

	if g.net.IsOnline() && remoteFn != nil && g.canSendNow(ctx, op, rec) {
		cctx, cancel := context.WithTimeout(ctx, g.callTimeout)
		raw, err := remoteFn(cctx, rec)
		cancel()

		if err == nil {
			return g.applyRemote(ctx, d, op, rec.ID, raw, rec)
		}
		g.log.Warn("Мутация не отправлена, ставим в очередь",
			"type", t,
			"op", op,
			"id", rec.ID,
			"error", err,
		)
	}

	var data entity.Payload
	if op != entity.OpDelete {
		data = entity.ToPayload(rec)
	}
	if _, err := g.outbox.Enqueue(ctx, t, op, rec.ID, data); err != nil {
		return nil, fmt.Errorf("ошибка постановки в очередь: %w", err)
	}

	return rec, nil
}

// canSendNow мутация уходит на сервер сразу, только если она не зависит от
// неподтверждённых записей и не обгоняет уже стоящие в очереди изменения.
func (g *Gateway) canSendNow(ctx context.Context, op entity.Operation, rec *entity.Record) bool {
	if op != entity.OpCreate && rec.IsTemp() {
		return false
	}
	for k, v := range rec.Data {
		if s, ok := v.(string); ok && k != "id" && entity.IsTempID(s) {
			return false
		}
	}
	if op == entity.OpCreate {
		return true
	}

	queued, err := g.outbox.PendingFor(ctx, rec.Type, rec.ID)
	if err != nil {
		g.log.Error("Ошибка чтения очереди", "type", rec.Type, "id", rec.ID, "error", err)
		return false
	}
	return len(queued) == 0
}

// applyRemote применяет подтверждение сервера к локальной записи.
func (g *Gateway) applyRemote(ctx context.Context, d *entity.Descriptor, op entity.Operation, localID string, raw json.RawMessage, local *entity.Record) (*entity.Record, error) {
	if op == entity.OpDelete {
		done := *local
		done.MarkSynced(g.now(), local.Checksum)
		return &done, nil
	}

	p, err := NormalizeOne(raw, d)
	if err != nil {
		return nil, err
	}

	return g.storeAcknowledged(ctx, d, localID, p)
}

// storeAcknowledged сохраняет подтверждённую сервером запись. Временный
// идентификатор атомарно заменяется постоянным, ссылки на него
// переписываются, а дубликаты по естественному ключу удаляются.
func (g *Gateway) storeAcknowledged(ctx context.Context, d *entity.Descriptor, localID string, p entity.Payload) (*entity.Record, error) {
	lookups, err := store.BuildLookups(ctx, g.store, g.registry, d)
	if err != nil {
		return nil, err
	}
	rec, err := entity.ToLocal(d, p, lookups, g.now())
	if err != nil {
		return nil, err
	}

	coll := store.Records(g.store, d)

	if entity.IsTempID(localID) && localID != rec.ID {
		if err := coll.Rekey(ctx, localID, rec.ID, rec); err != nil {
			return nil, err
		}
		if err := g.rewriteReferences(ctx, d.Type, localID, rec.ID); err != nil {
			return nil, err
		}
		if _, err := g.outbox.RewriteID(ctx, localID, rec.ID); err != nil {
			return nil, err
		}
		g.log.Debug("Временный идентификатор заменён", "type", d.Type, "temp_id", localID, "id", rec.ID)
	} else if err := coll.Put(ctx, rec.ID, rec); err != nil {
		return nil, err
	}

	if err := g.dropDuplicates(ctx, d, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// rewriteReferences переписывает ссылки на временный идентификатор в записях
// типов, которые ссылаются на тип t.
func (g *Gateway) rewriteReferences(ctx context.Context, t entity.Type, oldID, newID string) error {
	for _, rt := range g.registry.Types() {
		rd, err := g.registry.Lookup(rt)
		if err != nil {
			return err
		}

		var fields []string
		for _, ref := range rd.Refs {
			if ref.Target == t {
				fields = append(fields, ref.Field)
			}
		}
		if len(fields) == 0 {
			continue
		}

		coll := store.Records(g.store, rd)
		recs, err := coll.Query(ctx, func(r *entity.Record) bool {
			for _, f := range fields {
				if r.Field(f) == oldID {
					return true
				}
			}
			return false
		})
		if err != nil {
			return err
		}

		for _, r := range recs {
			for _, f := range fields {
				if r.Field(f) == oldID {
					r.Data[f] = newID
				}
			}
			if err := coll.Put(ctx, r.ID, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// dropDuplicates удаляет неподтверждённые копии той же записи, найденные по
// естественному ключу. Они появляются, если ответ на создание был потерян и
// создание повторено.
func (g *Gateway) dropDuplicates(ctx context.Context, d *entity.Descriptor, rec *entity.Record) error {
	key, ok := entity.NaturalKey(d, rec.Data)
	if !ok {
		return nil
	}

	coll := store.Records(g.store, d)
	dups, err := coll.Query(ctx, func(r *entity.Record) bool {
		if r.ID == rec.ID || !r.IsTemp() {
			return false
		}
		k, ok := entity.NaturalKey(d, r.Data)
		return ok && k == key
	})
	if err != nil {
		return err
	}

	for _, dup := range dups {
		if err := coll.Delete(ctx, dup.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := g.outbox.DiscardEntity(ctx, d.Type, dup.ID); err != nil {
			return err
		}
		g.log.Info("Удалён дубликат записи", "type", d.Type, "duplicate", dup.ID, "id", rec.ID)
	}
	return nil
}

// MarkFailed помечает запись, мутация которой исчерпала попытки отправки.
func (g *Gateway) MarkFailed(ctx context.Context, t entity.Type, id string) error {
	d, err := g.registry.Lookup(t)
	if err != nil {
		return err
	}
	coll := store.Records(g.store, d)

	rec, ok, err := coll.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rec.MarkFailed(g.now())
	return coll.Put(ctx, id, rec)
}
