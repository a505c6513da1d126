// Package remotetest содержит реализацию remote.API в памяти для тестов.
package remotetest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"assessync/internal/app/client/remote"
	"assessync/internal/domain/entity"
)

var errUnavailable = errors.New("connection refused")

// Fake сервер в памяти. Создание дедуплицируется по естественному ключу,
// как это делает настоящий сервер.
type Fake struct {
	mu       sync.Mutex
	registry *entity.Registry
	data     map[entity.Type]map[string]entity.Payload
	next     int
	down     bool
	loseNext bool
	calls    map[string]int
}

func New(reg *entity.Registry) *Fake {
	return &Fake{
		registry: reg,
		data:     make(map[entity.Type]map[string]entity.Payload),
		next:     100,
		calls:    make(map[string]int),
	}
}

// SetDown включает или выключает недоступность сервера.
func (f *Fake) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// LoseNextResponse следующая мутация будет применена, но клиент получит ошибку.
func (f *Fake) LoseNextResponse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loseNext = true
}

// Seed кладёт запись напрямую, минуя вызовы.
func (f *Fake) Seed(t entity.Type, p entity.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(t, p.Clone())
}

// Records возвращает записи типа, отсортированные по id.
func (f *Fake) Records(t entity.Type) []entity.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(t)
}

// Calls возвращает число вызовов операции ("create questions", "list users").
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) List(ctx context.Context, t entity.Type) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "list", t); err != nil {
		return nil, err
	}
	items := f.sorted(t)
	if items == nil {
		items = []entity.Payload{}
	}
	return json.Marshal(map[string]any{"items": items, "total": len(items)})
}

func (f *Fake) Get(ctx context.Context, t entity.Type, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "get", t); err != nil {
		return nil, err
	}
	p, ok := f.data[t][id]
	if !ok {
		return nil, notFound("get " + t.String())
	}
	return json.Marshal(p)
}

func (f *Fake) Create(ctx context.Context, t entity.Type, p entity.Payload) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "create", t); err != nil {
		return nil, err
	}

	created := f.findByNaturalKey(t, p)
	if created == nil {
		f.next++
		created = p.Without("id")
		created["id"] = strconv.Itoa(f.next)
		f.put(t, created)
	}
	return f.respond("create "+t.String(), created)
}

func (f *Fake) Update(ctx context.Context, t entity.Type, id string, p entity.Payload) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "update", t); err != nil {
		return nil, err
	}
	current, ok := f.data[t][id]
	if !ok {
		return nil, notFound("update " + t.String())
	}
	updated := current.Clone()
	for k, v := range p {
		if k != "id" {
			updated[k] = v
		}
	}
	f.put(t, updated)
	return f.respond("update "+t.String(), updated)
}

func (f *Fake) Delete(ctx context.Context, t entity.Type, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "delete", t); err != nil {
		return err
	}
	if _, ok := f.data[t][id]; !ok {
		return notFound("delete " + t.String())
	}
	delete(f.data[t], id)
	_, err := f.respond("delete "+t.String(), nil)
	return err
}

func (f *Fake) HealthCheck(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter(ctx, "health", "")
}

func (f *Fake) enter(ctx context.Context, verb string, t entity.Type) error {
	op := verb
	if t != "" {
		op += " " + t.String()
	}
	f.calls[op]++
	if err := ctx.Err(); err != nil {
		return &remote.TransportError{Op: op, Err: err}
	}
	if f.down {
		return &remote.TransportError{Op: op, Err: errUnavailable}
	}
	return nil
}

func (f *Fake) respond(op string, p entity.Payload) (json.RawMessage, error) {
	if f.loseNext {
		f.loseNext = false
		return nil, &remote.TransportError{Op: op, Err: errors.New("response lost")}
	}
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (f *Fake) put(t entity.Type, p entity.Payload) {
	byID, ok := f.data[t]
	if !ok {
		byID = make(map[string]entity.Payload)
		f.data[t] = byID
	}
	byID[p.ID()] = p
}

func (f *Fake) sorted(t entity.Type) []entity.Payload {
	byID := f.data[t]
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]entity.Payload, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id].Clone())
	}
	return out
}

func (f *Fake) findByNaturalKey(t entity.Type, p entity.Payload) entity.Payload {
	d, err := f.registry.Lookup(t)
	if err != nil {
		return nil
	}
	key, ok := entity.NaturalKey(d, p)
	if !ok {
		return nil
	}
	for _, existing := range f.data[t] {
		if k, ok := entity.NaturalKey(d, existing); ok && k == key {
			return existing
		}
	}
	return nil
}

func notFound(op string) error {
	return &remote.TransportError{Op: op, StatusCode: http.StatusNotFound, Message: "record not found"}
}
