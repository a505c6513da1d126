package entity

// Lookups заранее собранные отображаемые имена связанных записей:
// тип → идентификатор → имя. Это контекст преобразования, благодаря которому
// интерфейсу не нужны соединения при чтении.
type Lookups map[Type]map[string]string

// Name возвращает отображаемое имя записи.
func (l Lookups) Name(t Type, id string) (string, bool) {
	byID, ok := l[t]
	if !ok {
		return "", false
	}
	name, ok := byID[id]
	return name, ok
}

// Set сохраняет отображаемое имя.
func (l Lookups) Set(t Type, id, name string) {
	byID, ok := l[t]
	if !ok {
		byID = make(map[string]string)
		l[t] = byID
	}
	byID[id] = name
}

// Add добавляет имена всех записей типа d.
func (l Lookups) Add(d *Descriptor, records []*Record) {
	if d.DisplayField == "" {
		return
	}
	for _, rec := range records {
		if name := rec.Field(d.DisplayField); name != "" {
			l.Set(d.Type, rec.ID, name)
		}
	}
}

// Targets возвращает типы, имена которых нужны для денормализации d.
func (d *Descriptor) Targets() []Type {
	seen := make(map[Type]bool, len(d.Refs))
	var out []Type
	for _, ref := range d.Refs {
		if !seen[ref.Target] {
			seen[ref.Target] = true
			out = append(out, ref.Target)
		}
	}
	return out
}
