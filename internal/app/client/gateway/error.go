package gateway

import (
	"errors"
	"fmt"

	"assessync/internal/domain/entity"
)

var (
	ErrNoLocalData    = errors.New("no local data")
	ErrRecordNotFound = errors.New("record not found")
)

// NoLocalDataError сервер недоступен, а локальной копии нет.
type NoLocalDataError struct {
	Type entity.Type
	ID   string
}

func (e *NoLocalDataError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("нет локальных данных: %s/%s", e.Type, e.ID)
	}
	return fmt.Sprintf("нет локальных данных: %s", e.Type)
}

func (e *NoLocalDataError) Is(target error) bool {
	return target == ErrNoLocalData
}
