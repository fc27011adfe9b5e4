package memory

import (
	"sync"

	"github.com/go-faster/errors"
	"github.com/samber/lo"
)

var errExists = errors.New("item already exists")

// table is a concurrency-safe keyed collection that remembers insertion
// order, so listings are stable the way a created_at ordering would be.
type table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]T)}
}

func (t *table[T]) insert(id string, item T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.items[id]; ok {
		return errExists
	}
	t.items[id] = item
	t.order = append(t.order, id)
	return nil
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	item, ok := t.items[id]
	return item, ok
}

func (t *table[T]) update(id string, fn func(*T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[id]
	if !ok {
		return false
	}
	fn(&item)
	t.items[id] = item
	return true
}

func (t *table[T]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	t.order = lo.Without(t.order, id)
	return true
}

// each calls fn for every item in insertion order until fn returns false.
func (t *table[T]) each(fn func(T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, id := range t.order {
		if !fn(t.items[id]) {
			return
		}
	}
}

func (t *table[T]) filter(keep func(T) bool) []T {
	var out []T
	t.each(func(item T) bool {
		if keep == nil || keep(item) {
			out = append(out, item)
		}
		return true
	})
	return out
}

// updateAll applies fn to every item.
func (t *table[T]) updateAll(fn func(*T)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, item := range t.items {
		fn(&item)
		t.items[id] = item
	}
}
