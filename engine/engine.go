package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/dataset"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/observability"
	"github.com/kbukum/runemaster/resilience"
	"github.com/kbukum/runemaster/task"
)

// VarNativeFileName is the variable holding the file name the last source
// wrote its dataset under.
const VarNativeFileName = "native_file_name"

var errSkipped = fmt.Errorf("engine: skipped after sibling failure")

// Engine runs pipelines step by step against a dataset store.
type Engine struct {
	Datasets    *dataset.Store
	Log         *logger.Logger
	MaxParallel int
	Metrics     *observability.Metrics

	executors map[task.Kind]executor
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.Log = l.WithComponent("engine") }
}

// WithMaxParallel bounds the tasks of one step running at the same time.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.MaxParallel = n }
}

// WithMetrics records run and task metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.Metrics = m }
}

// New creates an Engine. Tasks within a step run one at a time unless
// WithMaxParallel says otherwise.
func New(datasets *dataset.Store, opts ...Option) *Engine {
	e := &Engine{Datasets: datasets, Log: logger.Nop(), MaxParallel: 1}
	for _, opt := range opts {
		opt(e)
	}
	if e.MaxParallel < 1 {
		e.MaxParallel = 1
	}
	e.executors = map[task.Kind]executor{
		task.KindSource:    executeSource,
		task.KindTransform: executeTransform,
		task.KindSink:      executeSink,
	}
	return e
}

// Run executes every step of p in order. The first failing task fails the
// run once the tasks of its step already in flight have returned; later steps
// never start and written datasets stay in place.
func (e *Engine) Run(ctx context.Context, p *dag.Pipeline) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.ContextWithRun(ctx, runID, p.Key())

	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)
	observability.SetSpanAttribute(ctx, observability.AttrPipeline, p.Key())

	r := &run{
		engine:   e,
		pipeline: p,
		log:      e.Log.WithContext(ctx),
		outputs:  make(map[string]string),
		result: &Result{
			RunID:       runID,
			Pipeline:    p.Key(),
			State:       StateInit,
			TaskResults: make(map[string]TaskResult),
		},
	}
	if p.Graph != nil {
		r.result.Steps = p.Graph.Len()
	}
	if e.Metrics != nil {
		e.Metrics.RecordRunStart(ctx)
	}
	r.log.Info("run started", logger.Fields("steps", r.result.Steps))

	err := r.execute(ctx)

	r.result.Duration = time.Since(start)
	status := string(r.result.State)
	observability.SetSpanAttribute(ctx, observability.AttrStatus, status)
	observability.SetSpanError(ctx, err)
	if e.Metrics != nil {
		e.Metrics.RecordRunEnd(ctx, p.Key(), status, r.result.Duration)
		if appErr, ok := errors.AsAppError(err); ok {
			e.Metrics.RecordError(ctx, string(appErr.Code), "engine")
		}
	}
	fields := logger.DurationFields("run", r.result.Duration)
	if err != nil {
		r.log.WithError(err).Error("run failed", fields)
	} else {
		r.log.Info("run finished", fields)
	}
	return r.result, err
}

type run struct {
	engine   *Engine
	pipeline *dag.Pipeline
	log      *logger.Logger

	mu      sync.Mutex
	result  *Result
	outputs map[string]string // task key -> file name of its dataset
}

func (r *run) transition(to State, fields ...map[string]interface{}) {
	r.mu.Lock()
	from := r.result.State
	r.result.State = to
	r.mu.Unlock()
	f := logger.Fields(logger.FieldState, string(to), "from", string(from))
	for _, extra := range fields {
		for k, v := range extra {
			f[k] = v
		}
	}
	r.log.Debug("state changed", f)
}

func (r *run) fail(taskKey string, err error) error {
	r.mu.Lock()
	if r.result.Failed == nil {
		r.result.Failed = &Failure{Task: taskKey, Err: err}
	}
	r.result.State = StateFailed
	r.mu.Unlock()
	return err
}

func (r *run) execute(ctx context.Context) error {
	e := r.engine
	key := r.pipeline.Key()

	r.transition(StatePipelinePrep)
	if err := e.Datasets.EnsureNamespace(ctx, key); err != nil {
		return r.fail("", err)
	}
	if r.pipeline.Graph == nil {
		r.transition(StateDone)
		return nil
	}

	bulkhead := resilience.NewBulkhead("engine."+key, e.MaxParallel)
	for i, step := range r.pipeline.Graph.Steps() {
		if err := ctx.Err(); err != nil {
			return r.fail("", err)
		}
		if err := r.runStep(ctx, bulkhead, i, step); err != nil {
			return err
		}
	}
	r.transition(StateDone)
	return nil
}

// runStep is the barrier between steps: it returns once every started task
// of the step has returned.
func (r *run) runStep(ctx context.Context, bulkhead *resilience.Bulkhead, index int, step dag.Step) error {
	if len(step) == 1 || r.engine.MaxParallel == 1 {
		for _, t := range step {
			if err := r.runTask(ctx, index, t); err != nil {
				return r.fail(t.Key(), err)
			}
		}
		return nil
	}

	var (
		failed   atomic.Bool
		once     sync.Once
		firstKey string
		firstErr error
	)
	fns := make([]func() error, len(step))
	for j, t := range step {
		fns[j] = func() error {
			if failed.Load() {
				return errSkipped
			}
			err := r.runTask(ctx, index, t)
			if err != nil {
				failed.Store(true)
				once.Do(func() { firstKey, firstErr = t.Key(), err })
			}
			return err
		}
	}
	for j, err := range bulkhead.Go(ctx, fns...) {
		if err != nil && firstErr == nil {
			// context ended while waiting for a slot
			firstKey, firstErr = step[j].Key(), err
		}
	}
	if firstErr != nil {
		return r.fail(firstKey, firstErr)
	}
	return nil
}

func (r *run) runTask(ctx context.Context, step int, t *task.Task) (err error) {
	start := time.Now()
	kind := task.Kind("")
	if t.Type != nil {
		kind = t.Type.Kind()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanTaskExecute)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrTask, t.Key())
	observability.SetSpanAttribute(ctx, observability.AttrTaskType, t.TypeTag())
	observability.SetSpanAttribute(ctx, observability.AttrTaskKind, string(kind))
	observability.SetSpanAttribute(ctx, observability.AttrStep, step)

	log := r.log.WithFields(logger.Fields(
		logger.FieldTask, t.Key(),
		logger.FieldTaskType, t.TypeTag(),
		logger.FieldKind, string(kind),
		logger.FieldStep, step,
	))
	res := TaskResult{Task: t.Key(), Type: t.TypeTag(), Kind: kind, Step: step}

	defer func() {
		res.Duration = time.Since(start)
		res.Status = StatusCompleted
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
		}
		r.mu.Lock()
		r.result.TaskResults[t.Key()] = res
		r.mu.Unlock()

		observability.SetSpanAttribute(ctx, observability.AttrStatus, res.Status)
		observability.SetSpanError(ctx, err)
		if m := r.engine.Metrics; m != nil {
			m.RecordTask(ctx, t.TypeTag(), string(kind), res.Status, res.Duration)
		}
		fields := logger.DurationFields("task", res.Duration)
		fields["bytes"] = res.Bytes
		if err != nil {
			log.WithError(err).Error("task failed", fields)
		} else {
			log.Info("task completed", fields)
		}
	}()

	r.transition(StateTaskPrep, logger.Fields(logger.FieldTask, t.Key()))
	if err := r.engine.Datasets.EnsureTaskNamespace(ctx, r.pipeline.Key(), t.Key()); err != nil {
		return errors.ExecutionFailed(t.Key(), err)
	}
	if err := t.Validate(); err != nil {
		return errors.Wrap(err).WithDetail("task", t.Key())
	}
	exec, ok := r.engine.executors[kind]
	if !ok {
		return errors.UnsupportedTaskType(t.TypeTag()).WithDetail("task", t.Key())
	}

	r.transition(StateExecute, logger.Fields(logger.FieldTask, t.Key()))
	if err := exec(ctx, r, t, &res); err != nil {
		return withTask(err, t.Key())
	}
	return nil
}

// withTask attaches the task to authoring errors and wraps everything else
// as an execution failure.
func withTask(err error, taskKey string) error {
	if appErr, ok := errors.AsAppError(err); ok {
		switch appErr.Code {
		case errors.ErrCodeMissingAttribute, errors.ErrCodeUnsupportedTaskType,
			errors.ErrCodeUnknownAttribute, errors.ErrCodeExecutionFailed:
			return appErr.WithDetail("task", taskKey)
		}
	}
	return errors.ExecutionFailed(taskKey, err)
}

// fileName is the dataset name a task reads and writes: its first
// predecessor's, else the pipeline's recorded native file name.
func (r *run) fileName(t *task.Task) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pred := range r.pipeline.Graph.Predecessors(t.Key()) {
		if name, ok := r.outputs[pred.Key()]; ok {
			return name
		}
	}
	name, _ := r.pipeline.Variable(VarNativeFileName)
	return name
}

func (r *run) recordOutput(t *task.Task, fileName string) {
	r.mu.Lock()
	r.outputs[t.Key()] = fileName
	r.mu.Unlock()
}

// inputs reads the dataset of every predecessor that wrote one.
func (r *run) inputs(ctx context.Context, t *task.Task) ([]task.Dataset, error) {
	var out []task.Dataset
	for _, pred := range r.pipeline.Graph.Predecessors(t.Key()) {
		r.mu.Lock()
		name, ok := r.outputs[pred.Key()]
		r.mu.Unlock()
		if !ok {
			continue
		}
		data, err := r.engine.Datasets.Read(ctx, r.pipeline.Key(), pred.Key(), name)
		if err != nil {
			return nil, err
		}
		out = append(out, task.Dataset{FileName: name, Data: data})
	}
	return out, nil
}

func (r *run) write(ctx context.Context, t *task.Task, fileName string, data []byte, res *TaskResult) error {
	if err := r.engine.Datasets.Write(ctx, r.pipeline.Key(), t.Key(), fileName, data); err != nil {
		return err
	}
	r.recordOutput(t, fileName)
	res.FileName = fileName
	res.Bytes = len(data)
	return nil
}
