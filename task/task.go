package task

import (
	"maps"
	"slices"

	"github.com/kbukum/runemaster/errors"
)

// Binding is a bound attribute: the schema entry it was checked against and
// the value.
type Binding struct {
	InputAttribute SchemaEntry `json:"input_attribute"`
	Value          string      `json:"value"`
}

// Task is a named instance of a Type inside one pipeline.
type Task struct {
	PipelineKey string
	Name        string
	Type        Type
	Attributes  map[string]Binding
}

// New creates an unbound task.
func New(pipelineKey, name string, typ Type) *Task {
	return &Task{
		PipelineKey: pipelineKey,
		Name:        name,
		Type:        typ,
		Attributes:  make(map[string]Binding),
	}
}

// Key is the task identity: pipeline key and name joined by "_".
func (t *Task) Key() string {
	return t.PipelineKey + "_" + t.Name
}

// TypeTag returns the tag of the task's type.
func (t *Task) TypeTag() string {
	if t.Type == nil {
		return ""
	}
	return t.Type.Tag()
}

// Bind attaches values to schema entries one id at a time in sorted order.
// The first unknown id stops the call; ids bound before it stay bound.
func (t *Task) Bind(values map[string]string) error {
	var schema Schema
	if t.Type != nil {
		schema = t.Type.Schema()
	}
	if t.Attributes == nil {
		t.Attributes = make(map[string]Binding, len(values))
	}
	for _, id := range slices.Sorted(maps.Keys(values)) {
		entry, ok := schema.Lookup(id)
		if !ok {
			return errors.UnknownAttribute(t.TypeTag(), id)
		}
		t.Attributes[id] = Binding{InputAttribute: entry, Value: values[id]}
	}
	return nil
}

// Restore reattaches persisted bindings without consulting the schema.
func (t *Task) Restore(bindings map[string]Binding) {
	if t.Attributes == nil {
		t.Attributes = make(map[string]Binding, len(bindings))
	}
	maps.Copy(t.Attributes, bindings)
}

// Value returns the bound value of an attribute.
func (t *Task) Value(id string) (string, bool) {
	b, ok := t.Attributes[id]
	return b.Value, ok
}

// Values returns the bound values keyed by attribute id.
func (t *Task) Values() map[string]string {
	out := make(map[string]string, len(t.Attributes))
	for id, b := range t.Attributes {
		out[id] = b.Value
	}
	return out
}

// Validate checks that every required entry is bound and that choice
// values are among the declared variants.
func (t *Task) Validate() error {
	if t.Type == nil {
		return errors.UnsupportedTaskType("")
	}
	for _, entry := range t.Type.Schema() {
		b, ok := t.Attributes[entry.ID]
		if !ok || b.Value == "" {
			if entry.Optional {
				continue
			}
			return errors.MissingAttribute(t.Key(), entry.ID)
		}
		if !entry.Allows(b.Value) {
			return errors.InvalidInput(entry.ID, "value "+b.Value+" is not one of the declared variants").
				WithDetail("task", t.Key())
		}
	}
	return nil
}
