package entity

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryYAML []byte

// Ref описывает денормализацию: значение поля Field — идентификатор записи
// типа Target, отображаемое имя которой сохраняется в Lookups под ключом As.
type Ref struct {
	Field  string `yaml:"field"`
	Target Type   `yaml:"target"`
	As     string `yaml:"as"`
}

// Descriptor стратегия обработки одного типа сущности.
type Descriptor struct {
	Type         Type     `yaml:"type"`
	Collection   string   `yaml:"collection"`
	Priority     Priority `yaml:"priority"`
	DisplayField string   `yaml:"display_field"`
	Required     []string `yaml:"required"`
	NaturalKey   []string `yaml:"natural_key"`
	Refs         []Ref    `yaml:"refs"`
}

// Registry реестр типов сущностей. Собирается один раз при старте.
type Registry struct {
	byType map[Type]*Descriptor
	order  []Type
}

type registryFile struct {
	Entities []*Descriptor `yaml:"entities"`
}

// DefaultRegistry возвращает реестр из встроенной таблицы.
func DefaultRegistry() *Registry {
	r, err := LoadRegistry(registryYAML)
	if err != nil {
		panic(fmt.Sprintf("встроенный реестр сущностей повреждён: %v", err))
	}
	return r
}

// LoadRegistry разбирает и проверяет таблицу типов.
func LoadRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора реестра: %w", err)
	}

	r := &Registry{byType: make(map[Type]*Descriptor, len(file.Entities))}
	for _, d := range file.Entities {
		if d.Type == "" {
			return nil, fmt.Errorf("пустой тип сущности в реестре")
		}
		if _, dup := r.byType[d.Type]; dup {
			return nil, fmt.Errorf("тип %s объявлен дважды", d.Type)
		}
		if d.Collection == "" {
			d.Collection = string(d.Type)
		}
		if d.Priority == "" {
			d.Priority = PriorityNormal
		}
		if err := d.Priority.Validate(); err != nil {
			return nil, fmt.Errorf("тип %s: %w", d.Type, err)
		}
		r.byType[d.Type] = d
		r.order = append(r.order, d.Type)
	}

	for _, d := range file.Entities {
		for _, ref := range d.Refs {
			if _, ok := r.byType[ref.Target]; !ok {
				return nil, fmt.Errorf("тип %s ссылается на неизвестный тип %s", d.Type, ref.Target)
			}
			if ref.Field == "" || ref.As == "" {
				return nil, fmt.Errorf("тип %s: ссылка без field/as", d.Type)
			}
		}
	}

	return r, nil
}

// Lookup возвращает дескриптор типа.
func (r *Registry) Lookup(t Type) (*Descriptor, error) {
	d, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return d, nil
}

// Types возвращает типы в порядке объявления.
func (r *Registry) Types() []Type {
	out := make([]Type, len(r.order))
	copy(out, r.order)
	return out
}

// PriorityOf возвращает приоритет очереди для типа. Неизвестные типы получают
// обычный приоритет.
func (r *Registry) PriorityOf(t Type) Priority {
	if d, ok := r.byType[t]; ok {
		return d.Priority
	}
	return PriorityNormal
}
