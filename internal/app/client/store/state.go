package store

import (
	"context"
	"time"
)

// SyncState одиночная запись sync_status
type SyncState struct {
	LastSync      *time.Time     `json:"last_sync,omitempty"`
	LastDrain     *time.Time     `json:"last_drain,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	PendingItems  int            `json:"pending_items"`
	Added         map[string]int `json:"added,omitempty"`
	Updated       map[string]int `json:"updated,omitempty"`
	Deleted       map[string]int `json:"deleted,omitempty"`
	TotalSyncs    int            `json:"total_syncs"`
	TotalFailures int            `json:"total_failures"`
}

// NetworkState одиночная запись network_status
type NetworkState struct {
	Online    bool      `json:"online"`
	ChangedAt time.Time `json:"changed_at"`
}

// LoadingProgress одиночная запись loading_progress: ход массовой загрузки
type LoadingProgress struct {
	Total     int       `json:"total"`
	Loaded    int       `json:"loaded"`
	Current   string    `json:"current,omitempty"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadState читает одиночную запись из app_state. Отсутствующая запись
// возвращается нулевым значением.
func LoadState[T any](ctx context.Context, s Store, key string) (T, error) {
	v, _, err := NewCollection[T](s, CollectionAppState).Get(ctx, key)
	return v, err
}

// SaveState записывает одиночную запись в app_state.
func SaveState[T any](ctx context.Context, s Store, key string, v T) error {
	return NewCollection[T](s, CollectionAppState).Put(ctx, key, v)
}
