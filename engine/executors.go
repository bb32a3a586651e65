package engine

import (
	"context"
	"fmt"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/task"
)

// executor runs the body of one task kind.
type executor func(ctx context.Context, r *run, t *task.Task, res *TaskResult) error

func executeSource(ctx context.Context, r *run, t *task.Task, res *TaskResult) error {
	src, ok := t.Type.(task.Source)
	if !ok {
		return errors.UnsupportedTaskType(t.TypeTag())
	}
	ds, err := src.Extract(ctx, t)
	if err != nil {
		return err
	}
	if ds == nil || ds.FileName == "" {
		return fmt.Errorf("engine: source %s produced no named dataset", t.Key())
	}
	if err := r.write(ctx, t, ds.FileName, ds.Data, res); err != nil {
		return err
	}
	r.pipeline.SetVariable(VarNativeFileName, ds.FileName)
	return nil
}

func executeTransform(ctx context.Context, r *run, t *task.Task, res *TaskResult) error {
	tr, ok := t.Type.(task.Transform)
	if !ok {
		return errors.UnsupportedTaskType(t.TypeTag())
	}
	inputs, err := r.inputs(ctx, t)
	if err != nil {
		return err
	}
	out, err := tr.Apply(ctx, t, inputs)
	if err != nil {
		return err
	}
	if out == nil {
		return fmt.Errorf("engine: transform %s produced no dataset", t.Key())
	}
	name := r.fileName(t)
	if name == "" {
		name = out.FileName
	}
	if name == "" {
		return fmt.Errorf("engine: transform %s has no file name to write under", t.Key())
	}
	return r.write(ctx, t, name, out.Data, res)
}

func executeSink(ctx context.Context, r *run, t *task.Task, res *TaskResult) error {
	sink, ok := t.Type.(task.Sink)
	if !ok {
		return errors.UnsupportedTaskType(t.TypeTag())
	}
	inputs, err := r.inputs(ctx, t)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		res.Bytes += len(in.Data)
	}
	return sink.Push(ctx, t, inputs)
}
