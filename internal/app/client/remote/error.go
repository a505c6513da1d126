package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrTransport = errors.New("remote call failed")

// TransportError сбой удалённого вызова: сеть недоступна или сервер ответил
// ошибкой. Такие ошибки устраняются повтором.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: сервер вернул %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: сервер вернул статус %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": remote call failed"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NotFound сообщает, что сервер не знает запрошенную запись.
func (e *TransportError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
