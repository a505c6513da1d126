package network

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessync/internal/app/client/store"
	"assessync/internal/utils/logger"
)

type stubProber struct {
	fail atomic.Bool
}

func (p *stubProber) HealthCheck(context.Context) error {
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestMonitor_SetOnline(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st, &stubProber{}, logger.Discard(), Options{})
	ctx := context.Background()

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	assert.False(t, m.IsOnline())

	changed, err := m.SetOnline(ctx, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, m.IsOnline())

	changed, err = m.SetOnline(ctx, true)
	require.NoError(t, err)
	assert.False(t, changed)

	select {
	case tr := <-ch:
		assert.True(t, tr.Online)
	case <-time.After(time.Second):
		t.Fatal("переход не доставлен")
	}
	assert.Empty(t, ch)

	state, err := store.LoadState[store.NetworkState](ctx, st, store.KeyNetworkStatus)
	require.NoError(t, err)
	assert.True(t, state.Online)
}

func TestMonitor_ConcurrentSetOnlineKeepsOrder(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		st := store.NewMemoryStore()
		m := New(st, &stubProber{}, logger.Discard(), Options{})
		ch, unsubscribe := m.Subscribe()

		// переходов не больше, чем вызовов, и все помещаются в буфер подписчика
		start := make(chan struct{})
		var wg sync.WaitGroup
		for j := 0; j < subscriberBuf; j++ {
			wg.Add(1)
			go func(online bool) {
				defer wg.Done()
				<-start
				_, err := m.SetOnline(ctx, online)
				assert.NoError(t, err)
			}(j%2 == 0)
		}
		close(start)
		wg.Wait()
		unsubscribe()

		var got []bool
		for tr := range ch {
			got = append(got, tr.Online)
		}
		require.NotEmpty(t, got)

		want := true
		for _, online := range got {
			require.Equal(t, want, online, "переходы не чередуются: %v", got)
			want = !want
		}
		assert.Equal(t, m.IsOnline(), got[len(got)-1])

		state, err := store.LoadState[store.NetworkState](ctx, st, store.KeyNetworkStatus)
		require.NoError(t, err)
		assert.Equal(t, m.IsOnline(), state.Online)
	}
}

func TestMonitor_Restore(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveState(ctx, st, store.KeyNetworkStatus, store.NetworkState{Online: true}))

	m := New(st, &stubProber{}, logger.Discard(), Options{})
	require.NoError(t, m.Restore(ctx))
	assert.True(t, m.IsOnline())
}

func TestMonitor_Probe(t *testing.T) {
	p := &stubProber{}
	m := New(store.NewMemoryStore(), p, logger.Discard(), Options{})
	ctx := context.Background()

	assert.True(t, m.Probe(ctx))
	assert.True(t, m.IsOnline())

	p.fail.Store(true)
	assert.False(t, m.Probe(ctx))
	assert.False(t, m.IsOnline())
}

func TestMonitor_RunDeliversTransitions(t *testing.T) {
	p := &stubProber{}
	m := New(store.NewMemoryStore(), p, logger.Discard(), Options{Interval: 10 * time.Millisecond})
	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	next := func() Transition {
		select {
		case tr := <-ch:
			return tr
		case <-time.After(2 * time.Second):
			t.Fatal("нет перехода")
			return Transition{}
		}
	}

	assert.True(t, next().Online)
	p.fail.Store(true)
	assert.False(t, next().Online)
	p.fail.Store(false)
	assert.True(t, next().Online)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := New(store.NewMemoryStore(), &stubProber{}, logger.Discard(), Options{})
	ch, unsubscribe := m.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)

	_, err := m.SetOnline(context.Background(), true)
	require.NoError(t, err)
}
