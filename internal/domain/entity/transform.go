package entity

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ToLocal превращает удалённую запись в локальную подтверждённую копию.
// Функция чистая: результат зависит только от аргументов.
func ToLocal(d *Descriptor, p Payload, lookups Lookups, now time.Time) (*Record, error) {
	if p == nil {
		return nil, &TransformationError{Type: d.Type, Field: "id", Reason: "empty payload"}
	}

	id := p.ID()
	if id == "" {
		return nil, &TransformationError{Type: d.Type, Field: "id"}
	}
	if err := d.checkRequired(p); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:        id,
		Type:      d.Type,
		Data:      p.Clone(),
		Lookups:   d.denormalize(p, lookups),
		UpdatedAt: now,
	}
	rec.MarkSynced(now, Checksum(p))

	return rec, nil
}

// NewLocal создаёт запись, ещё не известную серверу, с временным
// идентификатором.
func NewLocal(d *Descriptor, p Payload, lookups Lookups, now time.Time) (*Record, error) {
	data := p.Without("id")
	if err := d.checkRequired(data); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:      NewTempID(),
		Type:    d.Type,
		Data:    data,
		Lookups: d.denormalize(data, lookups),
	}
	rec.MarkPending(now)

	return rec, nil
}

// ApplyPatch применяет частичное локальное изменение к записи.
func ApplyPatch(d *Descriptor, rec *Record, patch Payload, lookups Lookups, now time.Time) (*Record, error) {
	data := rec.Data.Clone()
	for k, v := range patch {
		if k == "id" {
			continue
		}
		data[k] = v
	}
	if err := d.checkRequired(data); err != nil {
		return nil, err
	}

	updated := *rec
	updated.Data = data
	updated.Lookups = d.denormalize(data, lookups)
	updated.MarkPending(now)

	return &updated, nil
}

// ToPayload извлекает из локальной записи данные для отправки на сервер.
// Метаданные синхронизации и денормализованные поля не попадают в результат.
func ToPayload(rec *Record) Payload {
	if rec.Data == nil {
		return Payload{}
	}
	out := rec.Data.Clone()
	if IsTempID(out.ID()) {
		delete(out, "id")
	}
	return out
}

// NaturalKey возвращает естественный ключ записи, по которому сервер
// распознаёт дубликаты. ok=false, если у типа нет ключа или поле пустое.
func NaturalKey(d *Descriptor, p Payload) (string, bool) {
	if len(d.NaturalKey) == 0 {
		return "", false
	}

	parts := make([]string, 0, len(d.NaturalKey))
	for _, field := range d.NaturalKey {
		v := strings.ToLower(strings.TrimSpace(fieldString(p[field])))
		if v == "" {
			return "", false
		}
		parts = append(parts, v)
	}

	return strings.Join(parts, "\x1f"), true
}

// Checksum возвращает blake2b-256 от канонического JSON записи.
func Checksum(p Payload) string {
	// encoding/json сортирует ключи map, поэтому представление каноническое
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (d *Descriptor) checkRequired(p Payload) error {
	for _, field := range d.Required {
		v, ok := p[field]
		if !ok || v == nil {
			return &TransformationError{Type: d.Type, Field: field}
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return &TransformationError{Type: d.Type, Field: field, Reason: "empty required field"}
		}
	}
	return nil
}

func (d *Descriptor) denormalize(p Payload, lookups Lookups) map[string]string {
	if len(d.Refs) == 0 || lookups == nil {
		return nil
	}

	out := make(map[string]string, len(d.Refs))
	for _, ref := range d.Refs {
		refID := idString(p[ref.Field])
		if refID == "" {
			continue
		}
		if name, ok := lookups.Name(ref.Target, refID); ok {
			out[ref.As] = name
		}
	}
	if len(out) == 0 {
		return nil
	}

	return out
}
