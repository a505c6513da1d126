package remote

import (
	"context"
	"encoding/json"

	"assessync/internal/domain/entity"
)

// API типизированная поверхность удалённого сервиса: по одной операции на
// пару (тип сущности, глагол). Ответы возвращаются как есть, их форма
// нормализуется на стороне шлюза.
type API interface {
	List(ctx context.Context, t entity.Type) (json.RawMessage, error)
	Get(ctx context.Context, t entity.Type, id string) (json.RawMessage, error)
	Create(ctx context.Context, t entity.Type, p entity.Payload) (json.RawMessage, error)
	Update(ctx context.Context, t entity.Type, id string, p entity.Payload) (json.RawMessage, error)
	Delete(ctx context.Context, t entity.Type, id string) error
	HealthCheck(ctx context.Context) error
}
