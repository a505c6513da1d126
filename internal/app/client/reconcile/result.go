package reconcile

import (
	"errors"
	"sort"
	"time"

	"assessync/internal/domain/entity"
)

// TypeResult итог сверки одного типа сущности. Updated число записей,
// известных и серверу, и клиенту: все они перезаписаны серверной версией.
// Changed часть из них, чьё содержимое действительно отличалось. Pending
// записи с неотправленными изменениями, которые сверка не трогала.
type TypeResult struct {
	Type     entity.Type
	Added    int
	Updated  int
	Deleted  int
	Changed  int
	Pending  int
	Errors   []error
	Diverged []string
}

// Result итог полной сверки.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Types      map[entity.Type]*TypeResult
}

func newResult(started time.Time) *Result {
	return &Result{StartedAt: started, Types: make(map[entity.Type]*TypeResult)}
}

// Totals суммирует счётчики по всем типам.
func (r *Result) Totals() (added, updated, deleted int) {
	for _, tr := range r.Types {
		added += tr.Added
		updated += tr.Updated
		deleted += tr.Deleted
	}
	return added, updated, deleted
}

// Err объединяет ошибки всех типов; nil, если их не было.
func (r *Result) Err() error {
	var errs []error
	for _, t := range r.sortedTypes() {
		errs = append(errs, r.Types[t].Errors...)
	}
	return errors.Join(errs...)
}

// Diverged возвращает идентификаторы записей, локальные изменения которых
// были перезаписаны серверной версией.
func (r *Result) Diverged() map[entity.Type][]string {
	out := make(map[entity.Type][]string)
	for t, tr := range r.Types {
		if len(tr.Diverged) > 0 {
			out[t] = tr.Diverged
		}
	}
	return out
}

func (r *Result) sortedTypes() []entity.Type {
	types := make([]entity.Type, 0, len(r.Types))
	for t := range r.Types {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
