package outbox

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound = errors.New("outbox item not found")
	ErrDraining     = errors.New("outbox drain already in progress")
	ErrExhausted    = errors.New("outbox item exhausted its retries")
)

// SyncExhaustedError элемент очереди исчерпал попытки отправки. Запись
// остаётся локально со статусом failed.
type SyncExhaustedError struct {
	Item *Item
}

func (e *SyncExhaustedError) Error() string {
	return fmt.Sprintf("%s %s %s: попытки исчерпаны (%d): %s",
		e.Item.Operation, e.Item.EntityType, e.Item.EntityID, e.Item.RetryCount, e.Item.LastError)
}

func (e *SyncExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
