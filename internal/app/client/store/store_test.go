package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStore_CRUD(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "questions", "q1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "questions", "q1", []byte(`{"v":1}`)))
			require.NoError(t, s.Put(ctx, "questions", "q1", []byte(`{"v":2}`)))
			require.NoError(t, s.Put(ctx, "questions", "q2", []byte(`{"v":3}`)))
			require.NoError(t, s.Put(ctx, "categories", "c1", []byte(`{"v":4}`)))

			doc, err := s.Get(ctx, "questions", "q1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":2}`, string(doc))

			all, err := s.GetAll(ctx, "questions")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			keys, err := s.Keys(ctx, "questions")
			require.NoError(t, err)
			assert.Equal(t, []string{"q1", "q2"}, keys)

			found, err := s.Query(ctx, "questions", func(key string, _ []byte) bool { return key == "q2" })
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "q2", found[0].Key)

			require.NoError(t, s.Delete(ctx, "questions", "q1"))
			require.NoError(t, s.Delete(ctx, "questions", "missing"))
			_, err = s.Get(ctx, "questions", "q1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Rekey(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Put(ctx, "assessments", "temp_1", []byte(`{"id":"temp_1"}`)))
			require.NoError(t, s.Rekey(ctx, "assessments", "temp_1", "42", []byte(`{"id":"42"}`)))

			_, err := s.Get(ctx, "assessments", "temp_1")
			assert.ErrorIs(t, err, ErrNotFound)

			doc, err := s.Get(ctx, "assessments", "42")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"42"}`, string(doc))

			// старого ключа может уже не быть
			require.NoError(t, s.Rekey(ctx, "assessments", "temp_1", "42", []byte(`{"id":"42","v":2}`)))
			keys, err := s.Keys(ctx, "assessments")
			require.NoError(t, err)
			assert.Equal(t, []string{"42"}, keys)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	err := s.Put(context.Background(), "questions", "q1", []byte(`{}`))
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "put", se.Op)
	assert.ErrorIs(t, err, ErrClosed)
}

type doc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := NewCollection[doc](s, "categories")

	_, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "c1", doc{ID: "c1", Name: "Math"}))
	require.NoError(t, c.Put(ctx, "c2", doc{ID: "c2", Name: "History"}))

	got, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Math", got.Name)

	math, err := c.Query(ctx, func(d doc) bool { return d.Name == "Math" })
	require.NoError(t, err)
	assert.Len(t, math, 1)

	require.NoError(t, c.Rekey(ctx, "c2", "c3", doc{ID: "c3", Name: "History"}))
	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, keys)
}

func TestCollection_Corrupted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "categories", "bad", []byte(`{not json`)))

	c := NewCollection[doc](s, "categories")

	_, _, err := c.Get(ctx, "bad")
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "decode", se.Op)

	_, err = c.All(ctx)
	assert.True(t, errors.As(err, &se))
}

func TestState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	empty, err := LoadState[NetworkState](ctx, s, KeyNetworkStatus)
	require.NoError(t, err)
	assert.False(t, empty.Online)

	require.NoError(t, SaveState(ctx, s, KeyNetworkStatus, NetworkState{Online: true}))
	got, err := LoadState[NetworkState](ctx, s, KeyNetworkStatus)
	require.NoError(t, err)
	assert.True(t, got.Online)
}
