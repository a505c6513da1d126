package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessync/internal/app/client/outbox"
	"assessync/internal/app/client/remote"
	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
)

// Replay отправляет элемент очереди на сервер и применяет ответ локально.
// Реализует outbox.Replayer.
func (g *Gateway) Replay(ctx context.Context, item *outbox.Item) (string, error) {
	d, err := g.registry.Lookup(item.EntityType)
	if err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	switch item.Operation {
	case entity.OpCreate:
		raw, err := g.api.Create(cctx, item.EntityType, item.Data.Without("id"))
		if err != nil {
			return "", err
		}
		rec, err := g.acknowledge(ctx, d, item, raw)
		if err != nil {
			return "", err
		}
		return rec.ID, nil

	case entity.OpUpdate:
		if entity.IsTempID(item.EntityID) {
			return "", fmt.Errorf("%w: %s ещё не создана на сервере", ErrRecordNotFound, item.EntityID)
		}
		raw, err := g.api.Update(cctx, item.EntityType, item.EntityID, item.Data.Without("id"))
		if err != nil {
			return "", err
		}
		rec, err := g.acknowledge(ctx, d, item, raw)
		if err != nil {
			return "", err
		}
		return rec.ID, nil

	case entity.OpDelete:
		if entity.IsTempID(item.EntityID) {
			return "", nil
		}
		if err := g.api.Delete(cctx, item.EntityType, item.EntityID); err != nil && !isNotFound(err) {
			return "", err
		}
		return item.EntityID, nil
	}

	return "", item.Operation.Validate()
}

// acknowledge сохраняет ответ сервера. Если после элемента в очереди есть
// другие изменения той же записи, локальная копия остаётся pending.
func (g *Gateway) acknowledge(ctx context.Context, d *entity.Descriptor, item *outbox.Item, raw json.RawMessage) (*entity.Record, error) {
	p, err := NormalizeOne(raw, d)
	if err != nil {
		return nil, err
	}

	later, err := g.outbox.PendingFor(ctx, item.EntityType, item.EntityID)
	if err != nil {
		return nil, err
	}
	hasLater := false
	for _, it := range later {
		if it.ID != item.ID {
			hasLater = true
			break
		}
	}

	if !hasLater {
		return g.storeAcknowledged(ctx, d, item.EntityID, p)
	}

	// сервер подтвердил промежуточное состояние: сохраняем идентификатор,
	// но не локальные данные
	permID := p.ID()
	if permID == "" {
		return nil, &entity.TransformationError{Type: d.Type, Field: "id"}
	}
	coll := store.Records(g.store, d)
	local, ok, err := coll.Get(ctx, item.EntityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return g.storeAcknowledged(ctx, d, item.EntityID, p)
	}

	if entity.IsTempID(item.EntityID) && permID != item.EntityID {
		local.ID = permID
		if local.Data == nil {
			local.Data = entity.Payload{}
		}
		local.Data["id"] = permID
		if err := coll.Rekey(ctx, item.EntityID, permID, local); err != nil {
			return nil, err
		}
		if err := g.rewriteReferences(ctx, d.Type, item.EntityID, permID); err != nil {
			return nil, err
		}
	}
	return local, nil
}

func isNotFound(err error) bool {
	var te *remote.TransportError
	return errors.As(err, &te) && te.NotFound()
}
