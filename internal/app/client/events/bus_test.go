package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"assessync/internal/utils/logger"
)

func TestBus_PublishInOrder(t *testing.T) {
	b := NewBus(logger.Discard())

	var got []string
	b.AddSyncListener(func(e Event) { got = append(got, "first:"+string(e.Type)) })
	b.AddSyncListener(func(e Event) { got = append(got, "second:"+string(e.Type)) })

	b.Publish(Event{Type: TypeOnline})

	assert.Equal(t, []string{"first:online", "second:online"}, got)
}

func TestBus_RemoveSyncListener(t *testing.T) {
	b := NewBus(logger.Discard())

	calls := 0
	id := b.AddSyncListener(func(Event) { calls++ })
	b.Publish(Event{Type: TypeSyncComplete, Summary: &Summary{Drained: 1}})

	b.RemoveSyncListener(id)
	b.RemoveSyncListener(id)
	b.Publish(Event{Type: TypeSyncComplete})

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingListener(t *testing.T) {
	b := NewBus(logger.Discard())

	var got Event
	b.AddSyncListener(func(Event) { panic("boom") })
	b.AddSyncListener(func(e Event) { got = e })

	cause := errors.New("exhausted")
	assert.NotPanics(t, func() {
		b.Publish(Event{Type: TypeSyncError, Err: cause})
	})
	assert.Equal(t, TypeSyncError, got.Type)
	assert.ErrorIs(t, got.Err, cause)
	assert.False(t, got.At.IsZero())
}
