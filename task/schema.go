package task

import (
	"fmt"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/validation"
)

// Kind classifies a task type by what it does with datasets.
type Kind string

const (
	KindSource    Kind = "source"
	KindTransform Kind = "transform"
	KindSink      Kind = "sink"
)

// FieldKind is the value shape of a schema entry.
type FieldKind string

const (
	// FieldInput is free text.
	FieldInput FieldKind = "input"
	// FieldChoose is a single choice among Variants.
	FieldChoose FieldKind = "choose"
)

// SchemaEntry declares one configurable attribute of a task type.
type SchemaEntry struct {
	ID       string    `json:"id" validate:"required,identifier"`
	Name     string    `json:"name" validate:"required"`
	Type     FieldKind `json:"type" validate:"oneof=input choose"`
	Variants []string  `json:"variants,omitempty" validate:"required_if=Type choose"`
	Optional bool      `json:"optional,omitempty"`
}

// Allows reports whether value is acceptable for the entry's field kind.
func (e SchemaEntry) Allows(value string) bool {
	if e.Type != FieldChoose {
		return true
	}
	for _, v := range e.Variants {
		if v == value {
			return true
		}
	}
	return false
}

// Schema is the ordered attribute declaration of a task type.
type Schema []SchemaEntry

// Lookup returns the entry with the given id.
func (s Schema) Lookup(id string) (SchemaEntry, bool) {
	for _, e := range s {
		if e.ID == id {
			return e, true
		}
	}
	return SchemaEntry{}, false
}

// Validate checks every entry and that ids are unique.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, e := range s {
		if err := validation.Validate(e); err != nil {
			return fmt.Errorf("schema entry %d: %w", i, err)
		}
		if seen[e.ID] {
			return errors.InvalidInput("id", fmt.Sprintf("duplicate schema id %q", e.ID))
		}
		seen[e.ID] = true
	}
	return nil
}
