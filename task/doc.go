// Package task defines typed pipeline tasks: the attribute schema a task
// type declares, the bindings a task instance holds against that schema,
// and the registry that maps persisted type tags back to implementations.
//
// A type implements exactly one capability matching its Kind:
//
//	source     Extract(ctx, task) (*Dataset, error)
//	transform  Apply(ctx, task, inputs) (*Dataset, error)
//	sink       Push(ctx, task, inputs) error
//
// Tags that are not registered resolve to Generic, which keeps the stored
// tag and bindings but cannot run.
package task
