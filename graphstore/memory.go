package graphstore

import (
	"context"
	"slices"
	"sync"

	"github.com/kbukum/runemaster/errors"
)

// MemoryBackend keeps every collection in process memory.
type MemoryBackend struct {
	tasks     *memoryCollection[TaskRecord]
	edges     *memoryCollection[EdgeRecord]
	pipelines *memoryCollection[PipelineRecord]
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tasks:     newMemoryCollection[TaskRecord]("task"),
		edges:     newMemoryCollection[EdgeRecord]("edge"),
		pipelines: newMemoryCollection[PipelineRecord]("pipeline"),
	}
}

func (b *MemoryBackend) Tasks() Collection[TaskRecord]         { return b.tasks }
func (b *MemoryBackend) Edges() Collection[EdgeRecord]         { return b.edges }
func (b *MemoryBackend) Pipelines() Collection[PipelineRecord] { return b.pipelines }

type memoryCollection[T Record] struct {
	mu       sync.RWMutex
	resource string
	items    map[string]T
	order    []string
}

func newMemoryCollection[T Record](resource string) *memoryCollection[T] {
	return &memoryCollection[T]{resource: resource, items: make(map[string]T)}
}

func (c *memoryCollection[T]) Get(_ context.Context, key string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.items[key]
	if !ok {
		var zero T
		return zero, errors.NotFound(c.resource, key)
	}
	return rec, nil
}

func (c *memoryCollection[T]) Insert(_ context.Context, rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[rec.RecordKey()]; ok {
		return errors.AlreadyExists(c.resource).WithDetail("id", rec.RecordKey())
	}
	c.put(rec)
	return nil
}

func (c *memoryCollection[T]) Update(_ context.Context, rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[rec.RecordKey()]; !ok {
		return errors.NotFound(c.resource, rec.RecordKey())
	}
	c.items[rec.RecordKey()] = rec
	return nil
}

func (c *memoryCollection[T]) Upsert(_ context.Context, rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(rec)
	return nil
}

func (c *memoryCollection[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(func(k string) bool { return k == key })
	return nil
}

func (c *memoryCollection[T]) DeleteWhere(_ context.Context, f Filter) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(func(k string) bool { return f.Match(c.items[k]) }), nil
}

func (c *memoryCollection[T]) Scan(_ context.Context, f Filter) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []T
	for _, k := range c.order {
		if rec := c.items[k]; f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// put keeps the first-insertion position of an existing key.
func (c *memoryCollection[T]) put(rec T) {
	if _, ok := c.items[rec.RecordKey()]; !ok {
		c.order = append(c.order, rec.RecordKey())
	}
	c.items[rec.RecordKey()] = rec
}

func (c *memoryCollection[T]) remove(match func(key string) bool) int {
	n := 0
	c.order = slices.DeleteFunc(c.order, func(k string) bool {
		if !match(k) {
			return false
		}
		delete(c.items, k)
		n++
		return true
	})
	return n
}
