package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store is closed")
)

// StorageError сбой локального хранилища (квота, повреждение, ввод-вывод).
// Операция, вызвавшая его, должна считаться неудавшейся целиком.
type StorageError struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func wrap(op, collection, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Collection: collection, Key: key, Err: err}
}
