package resource

import (
	"context"
	"time"

	"assessync/internal/domain/entity"
)

// Resource запись коллекции в том виде, в котором её хранит сервер.
type Resource struct {
	ID         string
	Collection string
	NaturalKey string
	Data       entity.Payload
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Payload возвращает данные записи вместе с идентификатором.
func (r Resource) Payload() entity.Payload {
	p := r.Data.Clone()
	p["id"] = r.ID
	return p
}

type Repository interface {
	List(ctx context.Context, collection string) ([]Resource, error)
	Get(ctx context.Context, collection, id string) (Resource, error)
	// Insert сохраняет новую запись. Если в коллекции уже есть запись с тем же
	// непустым естественным ключом, возвращает её и created=false.
	Insert(ctx context.Context, collection, key string, data entity.Payload) (res Resource, created bool, err error)
	Update(ctx context.Context, collection, id, key string, data entity.Payload) (Resource, error)
	Delete(ctx context.Context, collection, id string) error
}
