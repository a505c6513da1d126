package entity

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType      = errors.New("unknown entity type")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrTransformation   = errors.New("record transformation failed")
)

// TransformationError удалённая запись не может быть превращена в локальную:
// отсутствует обязательное поле или поле имеет неверный тип.
type TransformationError struct {
	Type   Type
	Field  string
	Reason string
}

func (e *TransformationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing required field"
	}
	return fmt.Sprintf("transform %s: %s %q", e.Type, reason, e.Field)
}

func (e *TransformationError) Is(target error) bool {
	return target == ErrTransformation
}
