package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessync/internal/app/client/store"
	"assessync/internal/domain/entity"
	"assessync/internal/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestOutbox(t *testing.T) (*Outbox, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	o := New(store.NewMemoryStore(), entity.DefaultRegistry(), logger.Discard(), Options{
		MaxRetries: 3,
		Backoff:    Backoff{Base: time.Second, Max: time.Minute},
		Now:        clk.Now,
	})
	return o, clk
}

// recorder запоминает порядок отправки и отвечает заданной функцией.
type recorder struct {
	mu    sync.Mutex
	calls []*Item
	fn    func(item *Item) (string, error)
}

func (r *recorder) Replay(_ context.Context, item *Item) (string, error) {
	r.mu.Lock()
	cp := *item
	cp.Data = item.Data.Clone()
	r.calls = append(r.calls, &cp)
	r.mu.Unlock()
	if r.fn == nil {
		return "", nil
	}
	return r.fn(item)
}

func TestEnqueue(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	item, err := o.Enqueue(ctx, entity.TypeSubmission, entity.OpCreate, "temp_1", entity.Payload{"assessment_id": "5"})
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, entity.PriorityCritical, item.Priority)
	assert.Equal(t, 3, item.MaxRetries)
	assert.Zero(t, item.RetryCount)

	n, err := o.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := o.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.EntityID, stored.EntityID)
}

func TestEnqueue_Invalid(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, "widgets", entity.OpCreate, "", nil)
	assert.ErrorIs(t, err, entity.ErrUnknownType)

	_, err = o.Enqueue(ctx, entity.TypeQuestion, "upsert", "", nil)
	assert.ErrorIs(t, err, entity.ErrUnknownOperation)
}

func TestEnqueue_MergesUpdateIntoCreate(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	created, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpCreate, "temp_a", entity.Payload{"name": "Draft"})
	require.NoError(t, err)

	merged, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpUpdate, "temp_a", entity.Payload{"name": "Final", "color": "red"})
	require.NoError(t, err)

	assert.Equal(t, created.ID, merged.ID)
	assert.Equal(t, entity.OpCreate, merged.Operation)
	assert.Equal(t, "Final", merged.Data["name"])
	assert.Equal(t, "red", merged.Data["color"])

	n, err := o.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPending_PriorityOrder(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	enqueue := func(typ entity.Type, id string) {
		_, err := o.Enqueue(ctx, typ, entity.OpUpdate, id, entity.Payload{"x": id})
		require.NoError(t, err)
	}
	enqueue(entity.TypeReport, "r1")
	enqueue(entity.TypeQuestion, "q1")
	enqueue(entity.TypeSubmission, "s1")
	enqueue(entity.TypeAssessment, "a1")
	enqueue(entity.TypeQuestion, "q2")

	items, err := o.Pending(ctx)
	require.NoError(t, err)

	var order []string
	for _, it := range items {
		order = append(order, it.EntityID)
	}
	assert.Equal(t, []string{"s1", "a1", "q1", "q2", "r1"}, order)
}

func TestDrain_Success(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, entity.TypeReport, entity.OpDelete, "9", nil)
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, entity.TypeResponse, entity.OpUpdate, "3", entity.Payload{"answer": "yes"})
	require.NoError(t, err)

	rec := &recorder{}
	res, err := o.Drain(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Remaining)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, entity.TypeResponse, rec.calls[0].EntityType)
	assert.Equal(t, entity.TypeReport, rec.calls[1].EntityType)
}

func TestDrain_FailureBackoffAndExhaustion(t *testing.T) {
	o, clk := newTestOutbox(t)
	ctx := context.Background()

	item, err := o.Enqueue(ctx, entity.TypeQuestion, entity.OpUpdate, "7", entity.Payload{"text": "Q"})
	require.NoError(t, err)

	rec := &recorder{fn: func(*Item) (string, error) { return "", errors.New("connection refused") }}

	res, err := o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Exhausted)

	stored, err := o.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "connection refused", stored.LastError)
	assert.Equal(t, clk.Now().Add(time.Second), stored.NextAttemptAt)

	// в ожидании: элемент не отправляется
	res, err = o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
	assert.Equal(t, 1, res.Deferred)

	clk.Advance(time.Second)
	_, err = o.Drain(ctx, rec)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	res, err = o.Drain(ctx, rec)
	require.NoError(t, err)
	require.Len(t, res.Exhausted, 1)
	assert.ErrorIs(t, res.Exhausted[0], ErrExhausted)
	assert.Equal(t, 3, res.Exhausted[0].Item.RetryCount)

	// исчерпанный элемент инертен
	clk.Advance(time.Hour)
	res, err = o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
	assert.Equal(t, 1, res.Remaining)
	assert.Len(t, rec.calls, 3)

	_, err = o.Requeue(ctx, item.ID)
	require.NoError(t, err)

	rec.fn = nil
	res, err = o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, res.Remaining)
}

func TestDrain_RewritesTempIDs(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	// категория создаётся офлайн, оценка (более высокий приоритет) ссылается на неё
	_, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpCreate, "temp_cat", entity.Payload{"name": "Safety"})
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, entity.TypeAssessment, entity.OpCreate, "temp_asm", entity.Payload{"title": "Audit", "category_id": "temp_cat"})
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, entity.TypeAssessment, entity.OpDelete, "temp_asm", nil)
	require.NoError(t, err)

	rec := &recorder{fn: func(it *Item) (string, error) {
		switch it.EntityID {
		case "temp_cat":
			return "100", nil
		case "temp_asm":
			return "200", nil
		}
		return "", nil
	}}

	res, err := o.Drain(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Remaining)
	require.Len(t, rec.calls, 3)

	assert.Equal(t, "temp_cat", rec.calls[0].EntityID)
	assert.Equal(t, "temp_asm", rec.calls[1].EntityID)
	assert.Equal(t, "100", rec.calls[1].Data["category_id"])
	assert.Equal(t, entity.OpDelete, rec.calls[2].Operation)
	assert.Equal(t, "200", rec.calls[2].EntityID)
}

func TestDrain_DefersUntilCreateSucceeds(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpCreate, "temp_c", entity.Payload{"name": "A"})
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, entity.TypeQuestion, entity.OpCreate, "temp_q", entity.Payload{"text": "Q", "category_id": "temp_c"})
	require.NoError(t, err)

	rec := &recorder{fn: func(*Item) (string, error) { return "", errors.New("timeout") }}
	res, err := o.Drain(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, 2, res.Remaining)
}

func TestDrain_FailedItemBlocksLaterItemsOfEntity(t *testing.T) {
	o, clk := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpUpdate, "7", entity.Payload{"name": "v1"})
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, entity.TypeCategory, entity.OpUpdate, "7", entity.Payload{"name": "v2"})
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, entity.TypeCategory, entity.OpUpdate, "8", entity.Payload{"name": "other"})
	require.NoError(t, err)

	fail := true
	rec := &recorder{fn: func(it *Item) (string, error) {
		if fail && it.Data["name"] == "v1" {
			return "", errors.New("bad gateway")
		}
		return "", nil
	}}

	res, err := o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, 2, res.Remaining)

	var sent []any
	for _, c := range rec.calls {
		sent = append(sent, c.Data["name"])
	}
	assert.Equal(t, []any{"v1", "other"}, sent)

	// в ожидании повтора v1 изменение v2 тоже ждёт
	res, err = o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
	assert.Len(t, rec.calls, 2)

	fail = false
	clk.Advance(time.Second)
	res, err = o.Drain(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Remaining)

	require.Len(t, rec.calls, 4)
	assert.Equal(t, "v1", rec.calls[2].Data["name"])
	assert.Equal(t, "v2", rec.calls[3].Data["name"])
}

func TestDrain_UpdateDuringCreateReplayIsNotLost(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	created, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpCreate, "temp_n", entity.Payload{"name": "old"})
	require.NoError(t, err)

	var edit *Item
	rec := &recorder{}
	rec.fn = func(it *Item) (string, error) {
		if it.Operation == entity.OpCreate {
			// пользователь правит запись, пока создание в пути
			var err error
			edit, err = o.Enqueue(ctx, entity.TypeCategory, entity.OpUpdate, "temp_n", entity.Payload{"name": "new"})
			require.NoError(t, err)
			return "55", nil
		}
		return "", nil
	}

	res, err := o.Drain(ctx, rec)
	require.NoError(t, err)

	require.NotNil(t, edit)
	assert.NotEqual(t, created.ID, edit.ID)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Remaining)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, "old", rec.calls[0].Data["name"])
	assert.Equal(t, entity.OpUpdate, rec.calls[1].Operation)
	assert.Equal(t, "55", rec.calls[1].EntityID)
	assert.Equal(t, "new", rec.calls[1].Data["name"])
}

func TestDrain_Concurrent(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, entity.TypeUser, entity.OpUpdate, "1", entity.Payload{"name": "x"})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	rec := &recorder{fn: func(*Item) (string, error) {
		close(started)
		<-release
		return "", nil
	}}

	done := make(chan error, 1)
	go func() {
		_, err := o.Drain(ctx, rec)
		done <- err
	}()

	<-started
	_, err = o.Drain(ctx, rec)
	assert.ErrorIs(t, err, ErrDraining)

	close(release)
	require.NoError(t, <-done)
}

func TestDrain_ContextCancelled(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := o.Enqueue(ctx, entity.TypeUser, entity.OpUpdate, "1", entity.Payload{"name": "x"})
	require.NoError(t, err)

	rec := &recorder{fn: func(*Item) (string, error) {
		cancel()
		return "", context.Canceled
	}}

	_, err = o.Drain(ctx, rec)
	assert.ErrorIs(t, err, context.Canceled)

	items, err := o.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].RetryCount)
}

func TestDiscardEntityAndRemove(t *testing.T) {
	o, _ := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpCreate, "temp_z", entity.Payload{"name": "Z"})
	require.NoError(t, err)
	other, err := o.Enqueue(ctx, entity.TypeCategory, entity.OpDelete, "44", nil)
	require.NoError(t, err)

	n, err := o.DiscardEntity(ctx, entity.TypeCategory, "temp_z")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, o.Remove(ctx, other.ID))
	assert.ErrorIs(t, o.Remove(ctx, other.ID), ErrItemNotFound)
	assert.ErrorIs(t, o.Remove(ctx, "missing"), ErrItemNotFound)

	_, err = o.Requeue(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)

	left, err := o.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(5))
	assert.Equal(t, 10*time.Second, b.Delay(50))
}

func TestBackoff_Jitter(t *testing.T) {
	low := Backoff{Base: 10 * time.Second, Max: time.Minute, Jitter: 0.2, Rand: func() float64 { return 0 }}
	high := Backoff{Base: 10 * time.Second, Max: time.Minute, Jitter: 0.2, Rand: func() float64 { return 0.999999 }}

	assert.Equal(t, 8*time.Second, low.Delay(1))
	assert.InDelta(t, float64(12*time.Second), float64(high.Delay(1)), float64(time.Millisecond))

	def := Backoff{Base: 10 * time.Second, Jitter: 0.2}
	for i := 0; i < 20; i++ {
		d := def.Delay(1)
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}
