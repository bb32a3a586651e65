package task

import "context"

// Type is a task type: a tag that survives persistence, a kind and the
// attribute schema instances bind against.
type Type interface {
	Tag() string
	Kind() Kind
	Schema() Schema
}

// Dataset is a named blob flowing between tasks.
type Dataset struct {
	FileName string
	Data     []byte
}

// Source produces the initial dataset of a pipeline.
type Source interface {
	Type
	Extract(ctx context.Context, t *Task) (*Dataset, error)
}

// Transform derives a dataset from its predecessors' datasets.
type Transform interface {
	Type
	Apply(ctx context.Context, t *Task, inputs []Dataset) (*Dataset, error)
}

// Sink delivers its predecessors' datasets somewhere outside the pipeline.
type Sink interface {
	Type
	Push(ctx context.Context, t *Task, inputs []Dataset) error
}

// Generic stands in for a tag with no registered implementation. It keeps
// the tag so saving a reloaded pipeline does not lose information.
type Generic struct {
	TypeTag string
}

func (g Generic) Tag() string    { return g.TypeTag }
func (g Generic) Kind() Kind     { return "" }
func (g Generic) Schema() Schema { return nil }
