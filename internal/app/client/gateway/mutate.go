package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
)

// Get читает все записи типа t или одну запись, если id не пуст.
func (g *Gateway) Get(ctx context.Context, t entity.Type, id string) ([]*entity.Record, error) {
	d, err := g.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	coll := store.Records(g.store, d)

	if id == "" {
		return g.InterceptGet(ctx, t,
			func(ctx context.Context) (json.RawMessage, error) {
				return g.api.List(ctx, t)
			},
			func(ctx context.Context) ([]*entity.Record, error) {
				return coll.All(ctx)
			},
		)
	}

	var remoteFn RemoteRead
	if !entity.IsTempID(id) {
		remoteFn = func(ctx context.Context) (json.RawMessage, error) {
			return g.api.Get(ctx, t, id)
		}
	}

	recs, err := g.InterceptGet(ctx, t, remoteFn,
		func(ctx context.Context) ([]*entity.Record, error) {
			rec, ok, err := coll.Get(ctx, id)
			if err != nil || !ok {
				return nil, err
			}
			return []*entity.Record{rec}, nil
		},
	)
	var nde *NoLocalDataError
	if errors.As(err, &nde) {
		nde.ID = id
	}
	return recs, err
}

// Mutate создаёт, изменяет или удаляет запись. Для create id не нужен, для
// update payload содержит только изменённые поля.
func (g *Gateway) Mutate(ctx context.Context, t entity.Type, op entity.Operation, id string, payload entity.Payload) (*entity.Record, error) {
	d, err := g.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	coll := store.Records(g.store, d)

	switch op {
	case entity.OpCreate:
		return g.InterceptMutation(ctx, t, op,
			func(ctx context.Context, rec *entity.Record) (json.RawMessage, error) {
				return g.api.Create(ctx, t, entity.ToPayload(rec))
			},
			func(ctx context.Context) (*entity.Record, error) {
				lookups, err := store.BuildLookups(ctx, g.store, g.registry, d)
				if err != nil {
					return nil, err
				}
				rec, err := entity.NewLocal(d, payload, lookups, g.now())
				if err != nil {
					return nil, err
				}
				if err := coll.Put(ctx, rec.ID, rec); err != nil {
					return nil, err
				}
				return rec, nil
			},
		)

	case entity.OpUpdate:
		return g.InterceptMutation(ctx, t, op,
			func(ctx context.Context, rec *entity.Record) (json.RawMessage, error) {
				return g.api.Update(ctx, t, rec.ID, entity.ToPayload(rec))
			},
			func(ctx context.Context) (*entity.Record, error) {
				existing, err := g.localRecord(ctx, coll, t, id)
				if err != nil {
					return nil, err
				}
				lookups, err := store.BuildLookups(ctx, g.store, g.registry, d)
				if err != nil {
					return nil, err
				}
				rec, err := entity.ApplyPatch(d, existing, payload, lookups, g.now())
				if err != nil {
					return nil, err
				}
				if err := coll.Put(ctx, rec.ID, rec); err != nil {
					return nil, err
				}
				return rec, nil
			},
		)

	case entity.OpDelete:
		return g.InterceptMutation(ctx, t, op,
			func(ctx context.Context, rec *entity.Record) (json.RawMessage, error) {
				err := g.api.Delete(ctx, t, rec.ID)
				if isNotFound(err) {
					return nil, nil
				}
				return nil, err
			},
			func(ctx context.Context) (*entity.Record, error) {
				existing, err := g.localRecord(ctx, coll, t, id)
				if err != nil {
					return nil, err
				}
				if err := coll.Delete(ctx, id); err != nil {
					return nil, err
				}
				existing.MarkPending(g.now())
				return existing, nil
			},
		)
	}

	return nil, op.Validate()
}

func (g *Gateway) localRecord(ctx context.Context, coll *store.Collection[*entity.Record], t entity.Type, id string) (*entity.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: пустой идентификатор %s", ErrRecordNotFound, t)
	}
	rec, ok, err := coll.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, t, id)
	}
	return rec, nil
}
