package manager

import (
	"context"
	"sync"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/engine"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/graphstore"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/task"
)

// TypeInfo describes a registered task type.
type TypeInfo struct {
	Tag    string      `json:"tag"`
	Kind   task.Kind   `json:"kind"`
	Schema task.Schema `json:"schema"`
}

// Manager is the entry point shared by the CLI and the HTTP API.
type Manager struct {
	Store    *graphstore.Store
	Engine   *engine.Engine
	Registry *task.Registry

	log   *logger.Logger
	runMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l.WithComponent("manager") }
}

// WithRegistry overrides the registry used for new tasks. It defaults to
// the store's registry.
func WithRegistry(r *task.Registry) Option {
	return func(m *Manager) { m.Registry = r }
}

// New creates a Manager.
func New(store *graphstore.Store, eng *engine.Engine, opts ...Option) *Manager {
	m := &Manager{Store: store, Engine: eng, Registry: store.Registry(), log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListPipelines summarizes every stored pipeline.
func (m *Manager) ListPipelines(ctx context.Context) ([]graphstore.PipelineSummary, error) {
	return m.Store.ListPipelines(ctx)
}

// ListTasks returns the tasks of a pipeline in step order. An unknown or
// removed pipeline has no tasks.
func (m *Manager) ListTasks(ctx context.Context, pipelineKey string) ([]graphstore.TaskRecord, error) {
	recs, err := m.Store.ListTasks(ctx, pipelineKey)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []graphstore.TaskRecord{}
	}
	return recs, nil
}

// AddPipeline saves p, replacing a stored pipeline with the same name.
func (m *Manager) AddPipeline(ctx context.Context, p *dag.Pipeline) error {
	if p == nil || p.Name == "" {
		return errors.InvalidInput("name", "pipeline name is required")
	}
	if err := m.Store.Save(ctx, p); err != nil {
		return err
	}
	m.log.Info("pipeline saved", logger.Fields(logger.FieldPipeline, p.Key(), "tasks", len(p.Tasks())))
	return nil
}

// Apply builds a definition against the registry and saves the result.
func (m *Manager) Apply(ctx context.Context, def *dag.Definition) (*dag.Pipeline, error) {
	p, err := def.Build(m.Registry)
	if err != nil {
		return nil, err
	}
	if err := m.AddPipeline(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemovePipeline deletes a pipeline with its tasks and edges. Datasets in
// the blob store are left alone.
func (m *Manager) RemovePipeline(ctx context.Context, name string) error {
	if err := m.Store.Delete(ctx, name); err != nil {
		return err
	}
	m.log.Info("pipeline removed", logger.Fields(logger.FieldPipeline, name))
	return nil
}

// AddTask appends a new task as the final step of a pipeline.
func (m *Manager) AddTask(ctx context.Context, pipelineKey, name, tag string, attributes map[string]string) (*dag.Pipeline, error) {
	if name == "" {
		return nil, errors.InvalidInput("name", "task name is required")
	}
	typ, ok := m.Registry.Lookup(tag)
	if !ok {
		return nil, errors.UnsupportedTaskType(tag)
	}
	p, err := m.Store.Load(ctx, pipelineKey)
	if err != nil {
		return nil, err
	}
	t := p.NewTask(name, typ)
	if p.Graph.Contains(t.Key()) {
		return nil, errors.AlreadyExists("task").WithDetail("id", t.Key())
	}
	if err := t.Bind(attributes); err != nil {
		return nil, err
	}
	if err := p.Add(t); err != nil {
		return nil, err
	}
	if err := m.Store.Save(ctx, p); err != nil {
		return nil, err
	}
	m.log.Info("task added", logger.Fields(logger.FieldPipeline, pipelineKey, logger.FieldTask, t.Key(), logger.FieldTaskType, tag))
	return p, nil
}

// RemoveTask drops a task; its neighbours are reconnected.
func (m *Manager) RemoveTask(ctx context.Context, pipelineKey, name string) (*dag.Pipeline, error) {
	p, err := m.Store.RemoveTask(ctx, pipelineKey, name)
	if err != nil {
		return nil, err
	}
	m.log.Info("task removed", logger.Fields(logger.FieldPipeline, pipelineKey, logger.FieldTask, name))
	return p, nil
}

// RunPipeline loads and runs a pipeline, then saves it so variables set
// during the run survive. Runs are serialized per manager.
func (m *Manager) RunPipeline(ctx context.Context, name string) (*engine.Result, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	p, err := m.Store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	res, runErr := m.Engine.Run(ctx, p)
	// the variable bag is persisted even for failed runs
	saveCtx := context.WithoutCancel(ctx)
	if err := m.Store.Save(saveCtx, p); err != nil {
		if runErr != nil {
			m.log.WithError(err).Warn("saving variables after failed run", logger.Fields(logger.FieldPipeline, name))
			return res, runErr
		}
		return res, err
	}
	return res, runErr
}

// ListTypes describes every registered task type, sorted by tag.
func (m *Manager) ListTypes() []TypeInfo {
	types := m.Registry.List()
	out := make([]TypeInfo, len(types))
	for i, t := range types {
		out[i] = TypeInfo{Tag: t.Tag(), Kind: t.Kind(), Schema: t.Schema()}
	}
	return out
}
