// Package validation validates input with go-playground/validator struct
// tags, plus a small collector for checks that do not fit a tag.
//
// # Struct Tag Validation
//
//	type SchemaEntry struct {
//	    ID   string    `json:"id" validate:"required,identifier"`
//	    Type FieldKind `json:"type" validate:"oneof=input choose"`
//	}
//	err := validation.Validate(entry)
//
// # Programmatic Validation
//
//	err := validation.New().
//	    OneOf("driver", c.Driver, []string{"memory", "sqlite", "redis"}).
//	    Min("max_parallel", c.MaxParallel, 1).
//	    Validate()
//
// Both forms return an *errors.AppError with code INVALID_INPUT and a
// "fields" detail listing every failed field.
package validation
