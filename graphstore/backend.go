package graphstore

import (
	"context"
)

// Filter selects records. The zero Filter matches everything.
type Filter struct {
	PipelineKey string
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	return f.PipelineKey == "" || r.RecordPipeline() == f.PipelineKey
}

// Collection is the set of primitives the mapping needs from a store.
// Get and Update fail with NOT_FOUND on a missing key, Insert with
// ALREADY_EXISTS on a present one. Delete of a missing key is a no-op.
// Scan returns records in first-insertion order.
type Collection[T Record] interface {
	Get(ctx context.Context, key string) (T, error)
	Insert(ctx context.Context, rec T) error
	Update(ctx context.Context, rec T) error
	Upsert(ctx context.Context, rec T) error
	Delete(ctx context.Context, key string) error
	DeleteWhere(ctx context.Context, f Filter) (int, error)
	Scan(ctx context.Context, f Filter) ([]T, error)
}

// Backend exposes the three collections of a graph store.
type Backend interface {
	Tasks() Collection[TaskRecord]
	Edges() Collection[EdgeRecord]
	Pipelines() Collection[PipelineRecord]
}
