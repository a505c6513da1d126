package store

import "context"

// Коллекции служебного состояния
const (
	CollectionSyncQueue = "sync_queue"
	CollectionAppState  = "app_state"

	KeySyncStatus      = "sync_status"
	KeyNetworkStatus   = "network_status"
	KeyLoadingProgress = "loading_progress"
)

// Entry документ коллекции вместе с ключом
type Entry struct {
	Key string
	Doc []byte
}

// Predicate фильтр для Query
type Predicate func(key string, doc []byte) bool

// Store долговременное локальное хранилище документов, разбитое на коллекции.
// Все ошибки возвращаются как *StorageError; отсутствие документа — ErrNotFound.
type Store interface {
	Put(ctx context.Context, collection, key string, doc []byte) error
	Get(ctx context.Context, collection, key string) ([]byte, error)
	GetAll(ctx context.Context, collection string) ([]Entry, error)
	Delete(ctx context.Context, collection, key string) error
	Query(ctx context.Context, collection string, pred Predicate) ([]Entry, error)
	Keys(ctx context.Context, collection string) ([]string, error)

	// Rekey атомарно сохраняет doc под newKey и удаляет oldKey. Новый документ
	// записывается раньше удаления старого.
	Rekey(ctx context.Context, collection, oldKey, newKey string, doc []byte) error

	Close() error
}
