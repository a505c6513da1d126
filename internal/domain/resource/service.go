package resource

import (
	"context"
	"fmt"
	"strings"

	"assessync/internal/domain/entity"

	"golang.org/x/exp/slog"
)

type Servicer interface {
	List(ctx context.Context, t entity.Type) ([]entity.Payload, error)
	Get(ctx context.Context, t entity.Type, id string) (entity.Payload, error)
	Create(ctx context.Context, t entity.Type, p entity.Payload) (entity.Payload, bool, error)
	Update(ctx context.Context, t entity.Type, id string, patch entity.Payload) (entity.Payload, error)
	Delete(ctx context.Context, t entity.Type, id string) error
}

// Service хранит коллекции сущностей, выдаёт постоянные идентификаторы и
// не допускает дубликатов по естественному ключу.
type Service struct {
	repo     Repository
	registry *entity.Registry
	log      *slog.Logger
}

func NewService(repo Repository, registry *entity.Registry, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		log:      log.With(slog.String("component", "resource_service")),
	}
}

func (s *Service) List(ctx context.Context, t entity.Type) ([]entity.Payload, error) {
	if _, err := s.registry.Lookup(t); err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, t.String())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}

	out := make([]entity.Payload, 0, len(items))
	for _, item := range items {
		out = append(out, item.Payload())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, t entity.Type, id string) (entity.Payload, error) {
	if _, err := s.registry.Lookup(t); err != nil {
		return nil, err
	}

	item, err := s.repo.Get(ctx, t.String(), id)
	if err != nil {
		return nil, err
	}
	return item.Payload(), nil
}

// Create сохраняет запись. Повторная отправка записи с тем же естественным
// ключом возвращает уже сохранённую запись и created=false.
func (s *Service) Create(ctx context.Context, t entity.Type, p entity.Payload) (entity.Payload, bool, error) {
	d, err := s.registry.Lookup(t)
	if err != nil {
		return nil, false, err
	}

	data := p.Without("id")
	if err := validate(d, data); err != nil {
		return nil, false, err
	}

	key, _ := entity.NaturalKey(d, data)
	item, created, err := s.repo.Insert(ctx, t.String(), key, data)
	if err != nil {
		return nil, false, fmt.Errorf("create %s: %w", t, err)
	}

	if !created {
		s.log.Info("дубликат по естественному ключу, возвращаем существующую запись",
			slog.String("type", t.String()),
			slog.String("id", item.ID),
		)
	}
	return item.Payload(), created, nil
}

// Update накладывает patch на сохранённую запись.
func (s *Service) Update(ctx context.Context, t entity.Type, id string, patch entity.Payload) (entity.Payload, error) {
	d, err := s.registry.Lookup(t)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, t.String(), id)
	if err != nil {
		return nil, err
	}

	data := current.Data.Clone()
	for k, v := range patch.Without("id") {
		data[k] = v
	}
	if err := validate(d, data); err != nil {
		return nil, err
	}

	key, _ := entity.NaturalKey(d, data)
	item, err := s.repo.Update(ctx, t.String(), id, key, data)
	if err != nil {
		return nil, err
	}
	return item.Payload(), nil
}

func (s *Service) Delete(ctx context.Context, t entity.Type, id string) error {
	if _, err := s.registry.Lookup(t); err != nil {
		return err
	}
	return s.repo.Delete(ctx, t.String(), id)
}

func validate(d *entity.Descriptor, p entity.Payload) error {
	for _, field := range d.Required {
		v, ok := p[field]
		if !ok || v == nil {
			return &ValidationError{Collection: d.Type.String(), Field: field}
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			return &ValidationError{Collection: d.Type.String(), Field: field}
		}
	}
	return nil
}
