package dag

import (
	"maps"
	"sync"

	"github.com/kbukum/runemaster/task"
)

// Pipeline is a named task graph plus a variable bag. The name is also the
// persisted identity and the pipeline key of every task.
type Pipeline struct {
	Name  string
	Graph *Graph

	mu        sync.RWMutex
	variables map[string]string
}

// NewPipeline creates a pipeline with an empty graph.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		Name:      name,
		Graph:     NewGraph(name),
		variables: make(map[string]string),
	}
}

// Key returns the pipeline identity.
func (p *Pipeline) Key() string { return p.Name }

// NewTask creates a task keyed to this pipeline.
func (p *Pipeline) NewTask(name string, typ task.Type) *task.Task {
	return task.New(p.Key(), name, typ)
}

// Add merges a task or graph into the pipeline graph by chaining.
func (p *Pipeline) Add(operand any) error {
	g, err := Chain(p.graph(), operand)
	if err != nil {
		return err
	}
	p.Graph = g
	return nil
}

// Tasks returns every task in step order.
func (p *Pipeline) Tasks() []*task.Task {
	return p.graph().Tasks()
}

// Variable returns a value from the variable bag.
func (p *Pipeline) Variable(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.variables[key]
	return v, ok
}

// SetVariable stores a value in the variable bag.
func (p *Pipeline) SetVariable(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.variables == nil {
		p.variables = make(map[string]string)
	}
	p.variables[key] = value
}

// SetVariables replaces the variable bag.
func (p *Pipeline) SetVariables(vars map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variables = maps.Clone(vars)
	if p.variables == nil {
		p.variables = make(map[string]string)
	}
}

// VariablesSnapshot returns a copy of the variable bag.
func (p *Pipeline) VariablesSnapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.variables))
	maps.Copy(out, p.variables)
	return out
}

func (p *Pipeline) graph() *Graph {
	if p.Graph == nil {
		p.Graph = NewGraph(p.Name)
	}
	return p.Graph
}
