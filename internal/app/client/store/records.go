package store

import (
	"context"
	"fmt"

	"assessync/internal/domain/entity"
)

// Records коллекция локальных записей одного типа сущности.
func Records(s Store, d *entity.Descriptor) *Collection[*entity.Record] {
	return NewCollection[*entity.Record](s, d.Collection)
}

// BuildLookups собирает контекст денормализации для типа d из локальных
// справочников.
func BuildLookups(ctx context.Context, s Store, reg *entity.Registry, d *entity.Descriptor) (entity.Lookups, error) {
	lookups := entity.Lookups{}

	for _, target := range d.Targets() {
		td, err := reg.Lookup(target)
		if err != nil {
			return nil, err
		}
		recs, err := Records(s, td).All(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения справочника %s: %w", target, err)
		}
		lookups.Add(td, recs)
	}

	return lookups, nil
}
