package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection типизированное JSON-представление одной коллекции хранилища.
type Collection[T any] struct {
	store Store
	name  string
}

func NewCollection[T any](s Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name возвращает имя коллекции.
func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Put(ctx context.Context, key string, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return wrap("encode", c.name, key, err)
	}
	return c.store.Put(ctx, c.name, key, doc)
}

// Get возвращает документ; ok=false, если его нет.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var v T

	doc, err := c.store.Get(ctx, c.name, key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}

	if err := json.Unmarshal(doc, &v); err != nil {
		return v, false, wrap("decode", c.name, key, err)
	}
	return v, true, nil
}

func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	return c.Query(ctx, nil)
}

// Query возвращает документы, удовлетворяющие условию. Повреждённый документ
// делает неудачной всю выборку.
func (c *Collection[T]) Query(ctx context.Context, pred func(T) bool) ([]T, error) {
	entries, err := c.store.GetAll(ctx, c.name)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Doc, &v); err != nil {
			return nil, wrap("decode", c.name, e.Key, err)
		}
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.name, key)
}

func (c *Collection[T]) Keys(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx, c.name)
}

// Rekey атомарно переносит документ под новый ключ.
func (c *Collection[T]) Rekey(ctx context.Context, oldKey, newKey string, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return wrap("encode", c.name, newKey, err)
	}
	return c.store.Rekey(ctx, c.name, oldKey, newKey, doc)
}
