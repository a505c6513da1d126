package entity

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload запись в форме, в которой её передаёт сервер
type Payload map[string]any

// ID возвращает идентификатор записи в строковом виде. Сервер может отдавать
// его как строку или как число.
func (p Payload) ID() string {
	return idString(p["id"])
}

// Clone возвращает поверхностную копию.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Without возвращает копию без указанных полей.
func (p Payload) Without(keys ...string) Payload {
	out := p.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Record локальная (offline) копия удалённой сущности вместе с метаданными
// синхронизации.
type Record struct {
	ID           string            `json:"id"`
	Type         Type              `json:"type"`
	Data         Payload           `json:"data"`
	Lookups      map[string]string `json:"lookups,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
	SyncStatus   SyncStatus        `json:"sync_status"`
	LocalChanges bool              `json:"local_changes"`
	LastSynced   *time.Time        `json:"last_synced,omitempty"`
	Checksum     string            `json:"checksum,omitempty"`
}

// MarkSynced фиксирует подтверждение сервером.
func (r *Record) MarkSynced(now time.Time, checksum string) {
	t := now
	r.SyncStatus = StatusSynced
	r.LocalChanges = false
	r.LastSynced = &t
	r.Checksum = checksum
}

// MarkPending фиксирует локальное изменение, ещё не подтверждённое сервером.
func (r *Record) MarkPending(now time.Time) {
	r.SyncStatus = StatusPending
	r.LocalChanges = true
	r.UpdatedAt = now
}

// MarkFailed фиксирует, что изменение исчерпало попытки отправки.
func (r *Record) MarkFailed(now time.Time) {
	r.SyncStatus = StatusFailed
	r.LocalChanges = true
	r.UpdatedAt = now
}

// IsTemp сообщает, что запись ещё не получила постоянный идентификатор.
func (r *Record) IsTemp() bool {
	return IsTempID(r.ID)
}

// Field возвращает строковое значение поля данных.
func (r *Record) Field(name string) string {
	return fieldString(r.Data[name])
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

func fieldString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		if id := idString(v); id != "" {
			return id
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
