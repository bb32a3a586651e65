package graphstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/observability"
	"github.com/kbukum/runemaster/task"
)

// Store maps pipelines onto a Backend and back.
type Store struct {
	backend  Backend
	registry *task.Registry
	log      *logger.Logger
	traverse bool
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry sets the registry used to resolve stored type tags.
func WithRegistry(r *task.Registry) Option {
	return func(s *Store) { s.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l.WithComponent("graphstore") }
}

// WithTraversal makes Load rebuild steps from the vertex and edge
// collections instead of the record's task list.
func WithTraversal() Option {
	return func(s *Store) { s.traverse = true }
}

// New creates a Store over backend. The default registry is used unless
// WithRegistry is given.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, registry: task.DefaultRegistry(), log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry used on load.
func (s *Store) Registry() *task.Registry { return s.registry }

// Save writes every vertex and edge of p, then its record, then prunes
// vertices and edges of the pipeline that are no longer in the graph.
func (s *Store) Save(ctx context.Context, p *dag.Pipeline) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanGraphSave)
	defer span.End()
	defer func() { observability.SetSpanError(ctx, err) }()
	observability.SetSpanAttribute(ctx, observability.AttrPipeline, p.Key())

	key := p.Key()
	g := p.Graph
	if g == nil {
		g = dag.NewGraph(key)
	}
	var records []TaskRecord
	for i, step := range g.Steps() {
		for _, t := range step {
			rec := newTaskRecord(t, i)
			if err := s.backend.Tasks().Upsert(ctx, rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
	}

	edges := g.Edges()
	liveEdges := make(map[string]bool, len(edges))
	for _, e := range edges {
		rec := EdgeRecord{Key: EdgeKey(e.From, e.To), From: e.From, To: e.To, PipelineKey: key}
		if err := s.backend.Edges().Upsert(ctx, rec); err != nil {
			return err
		}
		liveEdges[rec.Key] = true
	}

	prec := PipelineRecord{
		Key:         key,
		Name:        p.Name,
		PipelineKey: key,
		Variables:   p.VariablesSnapshot(),
		Tasks:       records,
	}
	if _, err := s.backend.Pipelines().Get(ctx, key); err == nil {
		err = s.backend.Pipelines().Update(ctx, prec)
		if err != nil {
			return err
		}
	} else if errors.HasCode(err, errors.ErrCodeNotFound) {
		if err := s.backend.Pipelines().Insert(ctx, prec); err != nil {
			return err
		}
	} else {
		return err
	}

	pruned, err := s.prune(ctx, key, records, liveEdges)
	if err != nil {
		return err
	}
	s.log.Debug("pipeline saved", logger.Fields(
		logger.FieldPipeline, key, "tasks", len(records), "edges", len(edges), "pruned", pruned,
	))
	return nil
}

func (s *Store) prune(ctx context.Context, pipelineKey string, live []TaskRecord, liveEdges map[string]bool) (int, error) {
	f := Filter{PipelineKey: pipelineKey}
	n := 0

	edges, err := s.backend.Edges().Scan(ctx, f)
	if err != nil {
		return 0, err
	}
	for _, e := range edges {
		if liveEdges[e.Key] {
			continue
		}
		if err := s.backend.Edges().Delete(ctx, e.Key); err != nil {
			return n, err
		}
		n++
	}

	vertices, err := s.backend.Tasks().Scan(ctx, f)
	if err != nil {
		return n, err
	}
	for _, v := range vertices {
		if slices.ContainsFunc(live, func(r TaskRecord) bool { return r.Key == v.Key }) {
			continue
		}
		if err := s.backend.Tasks().Delete(ctx, v.Key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Load reconstructs a pipeline. Unknown type tags resolve to the generic
// fallback so old records stay readable.
func (s *Store) Load(ctx context.Context, name string) (_ *dag.Pipeline, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanGraphLoad)
	defer span.End()
	defer func() { observability.SetSpanError(ctx, err) }()
	observability.SetSpanAttribute(ctx, observability.AttrPipeline, name)

	prec, err := s.backend.Pipelines().Get(ctx, name)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, errors.UnknownPipeline(name).WithCause(err)
		}
		return nil, err
	}

	var steps [][]*task.Task
	if s.traverse {
		steps, err = s.traverseSteps(ctx, prec.Key)
	} else {
		steps = s.listSteps(prec.Tasks)
	}
	if err != nil {
		return nil, err
	}

	g, err := dag.FromSteps(prec.Key, steps)
	if err != nil {
		return nil, fmt.Errorf("graphstore: rebuild %s: %w", name, err)
	}
	p := dag.NewPipeline(prec.Name)
	p.Graph = g
	p.SetVariables(prec.Variables)
	return p, nil
}

func (s *Store) restore(rec TaskRecord) *task.Task {
	t := task.New(rec.PipelineKey, rec.Name, s.registry.Resolve(rec.TaskType))
	t.Restore(rec.Attributes)
	return t
}

// listSteps groups the ordered task list by step index.
func (s *Store) listSteps(records []TaskRecord) [][]*task.Task {
	var steps [][]*task.Task
	last := -1
	for _, rec := range records {
		if len(steps) == 0 || rec.Step != last {
			steps = append(steps, nil)
			last = rec.Step
		}
		steps[len(steps)-1] = append(steps[len(steps)-1], s.restore(rec))
	}
	return steps
}

func (s *Store) traverseSteps(ctx context.Context, pipelineKey string) ([][]*task.Task, error) {
	f := Filter{PipelineKey: pipelineKey}
	vertices, err := s.backend.Tasks().Scan(ctx, f)
	if err != nil {
		return nil, err
	}
	edgeRecs, err := s.backend.Edges().Scan(ctx, f)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(vertices, func(a, b TaskRecord) int { return a.Step - b.Step })

	byKey := make(map[string]TaskRecord, len(vertices))
	nodes := make([]string, len(vertices))
	for i, v := range vertices {
		byKey[v.Key] = v
		nodes[i] = v.Key
	}
	edges := make([]dag.Edge, len(edgeRecs))
	for i, e := range edgeRecs {
		edges[i] = dag.Edge{From: e.From, To: e.To}
	}

	levels, err := dag.BuildLevels(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("graphstore: traverse %s: %w", pipelineKey, err)
	}
	steps := make([][]*task.Task, len(levels))
	for i, level := range levels {
		for _, k := range level {
			steps[i] = append(steps[i], s.restore(byKey[k]))
		}
	}
	return steps, nil
}

// Delete removes the pipeline's edges and vertices, then its record.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanGraphDelete)
	defer span.End()
	defer func() { observability.SetSpanError(ctx, err) }()

	if _, err := s.backend.Pipelines().Get(ctx, name); err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return errors.UnknownPipeline(name).WithCause(err)
		}
		return err
	}

	f := Filter{PipelineKey: name}
	edges, err := s.backend.Edges().DeleteWhere(ctx, f)
	if err != nil {
		return err
	}
	vertices, err := s.backend.Tasks().DeleteWhere(ctx, f)
	if err != nil {
		return err
	}
	if err := s.backend.Pipelines().Delete(ctx, name); err != nil {
		return err
	}
	s.log.Debug("pipeline deleted", logger.Fields(logger.FieldPipeline, name, "tasks", vertices, "edges", edges))
	return nil
}

// ListPipelines summarizes every stored pipeline.
func (s *Store) ListPipelines(ctx context.Context) ([]PipelineSummary, error) {
	recs, err := s.backend.Pipelines().Scan(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]PipelineSummary, len(recs))
	for i, r := range recs {
		out[i] = PipelineSummary{Key: r.Key, Name: r.Name, Variables: len(r.Variables), Tasks: len(r.Tasks)}
	}
	return out, nil
}

// ListTasks returns the vertices of a pipeline in step order.
func (s *Store) ListTasks(ctx context.Context, pipelineKey string) ([]TaskRecord, error) {
	recs, err := s.backend.Tasks().Scan(ctx, Filter{PipelineKey: pipelineKey})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, func(a, b TaskRecord) int { return a.Step - b.Step })
	return recs, nil
}

// ListEdges returns the edges stamped with a pipeline.
func (s *Store) ListEdges(ctx context.Context, pipelineKey string) ([]EdgeRecord, error) {
	return s.backend.Edges().Scan(ctx, Filter{PipelineKey: pipelineKey})
}

// RemoveTask drops a task and its edges and saves the reconnected graph.
func (s *Store) RemoveTask(ctx context.Context, pipelineKey, name string) (*dag.Pipeline, error) {
	p, err := s.Load(ctx, pipelineKey)
	if err != nil {
		return nil, err
	}
	g, err := p.Graph.Remove(name)
	if err != nil {
		return nil, err
	}
	var key string
	for _, t := range p.Tasks() {
		if t.Name == name {
			key = t.Key()
		}
	}
	for _, e := range p.Graph.Edges() {
		if e.From == key || e.To == key {
			if err := s.backend.Edges().Delete(ctx, EdgeKey(e.From, e.To)); err != nil {
				return nil, err
			}
		}
	}
	if err := s.backend.Tasks().Delete(ctx, key); err != nil {
		return nil, err
	}

	p.Graph = g
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
