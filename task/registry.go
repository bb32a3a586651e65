package task

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/runemaster/errors"
)

// Registry maps type tags to task types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register adds a type after validating its schema.
func (r *Registry) Register(t Type) error {
	if t.Tag() == "" {
		return errors.InvalidInput("tag", "task type tag is required")
	}
	if err := t.Schema().Validate(); err != nil {
		return fmt.Errorf("task type %s: %w", t.Tag(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[t.Tag()]; dup {
		return errors.AlreadyExists("task type " + t.Tag())
	}
	r.types[t.Tag()] = t
	return nil
}

// Lookup retrieves a type by tag.
func (r *Registry) Lookup(tag string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[tag]
	return t, ok
}

// Resolve returns the registered type, or a Generic carrying the tag.
func (r *Registry) Resolve(tag string) Type {
	if t, ok := r.Lookup(tag); ok {
		return t
	}
	return Generic{TypeTag: tag}
}

// List returns every registered type sorted by tag.
func (r *Registry) List() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag() < out[j].Tag() })
	return out
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry built-in types add
// themselves to.
func DefaultRegistry() *Registry { return defaultRegistry }

// RegisterType adds t to the default registry and panics on failure.
// Implementation packages call it from init.
func RegisterType(t Type) {
	if err := defaultRegistry.Register(t); err != nil {
		panic(err)
	}
}
