package resource

import "errors"

var (
	ErrNotFound    = errors.New("resource not found")
	ErrInvalidData = errors.New("invalid resource data")
)

// ValidationError запрос на создание не содержит обязательного поля.
type ValidationError struct {
	Collection string
	Field      string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Collection + ": field " + e.Field + " is required"
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidData
}
