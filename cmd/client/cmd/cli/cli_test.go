package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"assessync/internal/app/client/events"
	"assessync/internal/app/client/outbox"
	"assessync/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    entity.Payload
		wantErr bool
	}{
		{name: "empty", raw: "  ", want: entity.Payload{}},
		{name: "object", raw: `{"name":"Safety","weight":2}`, want: entity.Payload{"name": "Safety", "weight": json.Number("2")}},
		{name: "invalid", raw: `{"name":`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinter_Records(t *testing.T) {
	records := []*entity.Record{{
		ID:         "temp_1",
		Type:       entity.TypeCategory,
		Data:       entity.Payload{"id": "temp_1", "name": "Safety"},
		SyncStatus: entity.StatusPending,
		UpdatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	var table bytes.Buffer
	require.NoError(t, NewWriterPrinter(&table, false).Records(records))
	assert.Contains(t, table.String(), "temp_1")
	assert.Contains(t, table.String(), "name=Safety")
	assert.NotContains(t, table.String(), "id=temp_1")

	var out bytes.Buffer
	require.NoError(t, NewWriterPrinter(&out, true).Records(records))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "categories", decoded[0]["type"])
}

func TestPrinter_EmptyItems(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewWriterPrinter(&out, false).Items([]*outbox.Item{}))
	assert.Equal(t, "Очередь пуста\n", out.String())
}

func TestEventPrinter(t *testing.T) {
	var out bytes.Buffer
	listener := EventPrinter(&out)

	listener(events.Event{Type: events.TypeSyncComplete, Summary: &events.Summary{Drained: 2, Added: 1}})
	listener(events.Event{Type: events.TypeSyncError, Err: errors.New("boom")})
	listener(events.Event{Type: events.TypeOnline})

	assert.Contains(t, out.String(), "отправлено 2, добавлено 1")
	assert.Contains(t, out.String(), "ошибка синхронизации: boom")
	assert.Contains(t, out.String(), "online")
}
