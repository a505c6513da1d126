package outbox

import (
	"time"

	"assessync/internal/domain/entity"
)

// Item отложенная мутация в очереди синхронизации
type Item struct {
	ID            string           `json:"id"`
	EntityType    entity.Type      `json:"entity_type"`
	EntityID      string           `json:"entity_id,omitempty"`
	Operation     entity.Operation `json:"operation"`
	Data          entity.Payload   `json:"data,omitempty"`
	RetryCount    int              `json:"retry_count"`
	MaxRetries    int              `json:"max_retries"`
	Priority      entity.Priority  `json:"priority"`
	CreatedAt     time.Time        `json:"created_at"`
	NextAttemptAt time.Time        `json:"next_attempt_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
}

// Exhausted сообщает, что попытки отправки закончились. Такой элемент
// остаётся в очереди, но не отправляется до Requeue.
func (i *Item) Exhausted() bool {
	return i.RetryCount >= i.MaxRetries
}

// Due сообщает, что время ожидания после неудачной попытки прошло.
func (i *Item) Due(now time.Time) bool {
	return i.NextAttemptAt.IsZero() || !now.Before(i.NextAttemptAt)
}

// blockedByTempID сообщает, что элемент ссылается на запись, ещё не
// получившую постоянный идентификатор. Сам создаваемый объект может иметь
// временный id: он станет постоянным после ответа сервера.
func (i *Item) blockedByTempID() bool {
	if i.Operation != entity.OpCreate && entity.IsTempID(i.EntityID) {
		return true
	}
	for k, v := range i.Data {
		if k == "id" {
			continue
		}
		if s, ok := v.(string); ok && entity.IsTempID(s) {
			return true
		}
	}
	return false
}

// rewriteID заменяет временный идентификатор на постоянный.
func (i *Item) rewriteID(oldID, newID string) bool {
	changed := false
	if i.EntityID == oldID {
		i.EntityID = newID
		changed = true
	}
	for k, v := range i.Data {
		if s, ok := v.(string); ok && s == oldID {
			i.Data[k] = newID
			changed = true
		}
	}
	return changed
}

// less порядок отправки: сначала более высокий приоритет, внутри уровня по
// времени постановки (ULID сортируется лексикографически).
func less(a, b *Item) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	return a.ID < b.ID
}
