package dag

import (
	"fmt"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/task"
)

// Step is a set of mutually unordered tasks. Insertion order is kept for
// persistence and display.
type Step []*task.Task

// Graph is an ordered sequence of steps belonging to one pipeline.
type Graph struct {
	pipelineKey string
	steps       []Step
}

// Edge represents a dependency: To runs after From.
type Edge struct {
	From string
	To   string
}

// NewGraph creates an empty graph for a pipeline.
func NewGraph(pipelineKey string) *Graph {
	return &Graph{pipelineKey: pipelineKey}
}

// FromSteps rebuilds a graph from stored steps, enforcing the same
// invariants as composition.
func FromSteps(pipelineKey string, steps [][]*task.Task) (*Graph, error) {
	g := NewGraph(pipelineKey)
	for _, s := range steps {
		next, err := g.appendStep(s)
		if err != nil {
			return nil, err
		}
		g = next
	}
	return g, nil
}

// Link chains two tasks into a two-step graph.
func Link(a, b *task.Task) (*Graph, error) {
	if a == nil || b == nil {
		return nil, errors.UnprocessableComposition("nil task")
	}
	g, err := NewGraph(a.PipelineKey).Then(a)
	if err != nil {
		return nil, err
	}
	return g.Then(b)
}

// Then returns a new graph with one more final step holding only t. The new
// task depends on every task of the previous final step.
func (g *Graph) Then(t *task.Task) (*Graph, error) {
	if t == nil {
		return nil, errors.UnprocessableComposition("nil task")
	}
	return g.appendStep(Step{t})
}

// Fork returns a new graph with one more final step holding the given
// sibling tasks.
func (g *Graph) Fork(ts ...*task.Task) (*Graph, error) {
	if len(ts) == 0 {
		return nil, errors.UnprocessableComposition("fork needs at least one task")
	}
	for _, t := range ts {
		if t == nil {
			return nil, errors.UnprocessableComposition("nil task")
		}
	}
	return g.appendStep(Step(ts))
}

// Merge chains two graphs. It is only defined when g has no steps, in which
// case other is returned unchanged.
func (g *Graph) Merge(other *Graph) (*Graph, error) {
	if other == nil {
		return nil, errors.UnprocessableComposition("nil graph")
	}
	if !g.Empty() {
		return nil, errors.UnprocessableComposition("cannot chain two non-empty graphs")
	}
	if g.pipelineKey != "" && other.pipelineKey != "" && g.pipelineKey != other.pipelineKey {
		return nil, errors.UnprocessableComposition(
			fmt.Sprintf("graph belongs to pipeline %s, not %s", other.pipelineKey, g.pipelineKey))
	}
	return other, nil
}

// Chain dispatches over the operand types: task-task, graph-task and
// graph-graph. Any other pairing fails.
func Chain(left, right any) (*Graph, error) {
	switch l := left.(type) {
	case *task.Task:
		if r, ok := right.(*task.Task); ok {
			return Link(l, r)
		}
	case *Graph:
		if l == nil {
			break
		}
		switch r := right.(type) {
		case *task.Task:
			return l.Then(r)
		case *Graph:
			return l.Merge(r)
		}
	}
	return nil, errors.UnprocessableComposition(fmt.Sprintf("cannot chain %T with %T", left, right))
}

// Remove returns a new graph without the named task. A step left empty
// disappears, so its predecessors connect straight to its successors.
func (g *Graph) Remove(name string) (*Graph, error) {
	out := NewGraph(g.pipelineKey)
	found := false
	for _, s := range g.steps {
		kept := make(Step, 0, len(s))
		for _, t := range s {
			if t.Name == name {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) > 0 {
			out.steps = append(out.steps, kept)
		}
	}
	if !found {
		return nil, errors.UnknownTask(g.pipelineKey + "_" + name)
	}
	return out, nil
}

// Empty reports whether the graph has zero steps.
func (g *Graph) Empty() bool { return g == nil || len(g.steps) == 0 }

// PipelineKey returns the pipeline every task of the graph belongs to.
func (g *Graph) PipelineKey() string { return g.pipelineKey }

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.steps) }

// Steps returns a copy of the steps.
func (g *Graph) Steps() []Step {
	out := make([]Step, len(g.steps))
	for i, s := range g.steps {
		out[i] = append(Step(nil), s...)
	}
	return out
}

// Tasks returns every task flattened in step order.
func (g *Graph) Tasks() []*task.Task {
	var out []*task.Task
	for _, s := range g.steps {
		out = append(out, s...)
	}
	return out
}

// Contains reports whether a task with the given key is part of the graph.
func (g *Graph) Contains(key string) bool {
	for _, s := range g.steps {
		for _, t := range s {
			if t.Key() == key {
				return true
			}
		}
	}
	return false
}

// StepOf returns the step index holding the task key, or -1.
func (g *Graph) StepOf(key string) int {
	for i, s := range g.steps {
		for _, t := range s {
			if t.Key() == key {
				return i
			}
		}
	}
	return -1
}

// Predecessors returns the tasks of the step before the task's own step.
func (g *Graph) Predecessors(key string) []*task.Task {
	i := g.StepOf(key)
	if i <= 0 {
		return nil
	}
	return append([]*task.Task(nil), g.steps[i-1]...)
}

// Edges returns the full cross product between consecutive steps, by task
// key, in step and insertion order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for i := 1; i < len(g.steps); i++ {
		for _, from := range g.steps[i-1] {
			for _, to := range g.steps[i] {
				edges = append(edges, Edge{From: from.Key(), To: to.Key()})
			}
		}
	}
	return edges
}

func (g *Graph) appendStep(s Step) (*Graph, error) {
	if len(s) == 0 {
		return nil, errors.UnprocessableComposition("empty step")
	}
	key := g.pipelineKey
	seen := make(map[string]bool, len(s))
	for _, t := range s {
		if key == "" {
			key = t.PipelineKey
		}
		if t.PipelineKey != key {
			return nil, errors.UnprocessableComposition(
				fmt.Sprintf("task %s belongs to pipeline %s, not %s", t.Name, t.PipelineKey, key))
		}
		if seen[t.Key()] || g.Contains(t.Key()) {
			return nil, errors.UnprocessableComposition(fmt.Sprintf("task %s already in graph", t.Key()))
		}
		seen[t.Key()] = true
	}

	steps := make([]Step, len(g.steps), len(g.steps)+1)
	copy(steps, g.steps)
	steps = append(steps, append(Step(nil), s...))
	return &Graph{pipelineKey: key, steps: steps}, nil
}

// BuildLevels uses Kahn's algorithm to group nodes by dependency level.
// Level members keep the order of nodes. Returns an error if an edge names
// an unknown node or a cycle is detected.
func BuildLevels(nodes []string, edges []Edge) ([][]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}

	dependents := make(map[string][]string)
	for _, e := range edges {
		if _, ok := inDegree[e.From]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.From)
		}
		if _, ok := inDegree[e.To]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	ready := make(map[string]bool)
	for _, n := range nodes {
		if inDegree[n] == 0 {
			ready[n] = true
		}
	}

	var levels [][]string
	visited := 0
	for len(ready) > 0 {
		var level []string
		for _, n := range nodes {
			if ready[n] {
				level = append(level, n)
			}
		}
		levels = append(levels, level)
		visited += len(level)

		next := make(map[string]bool)
		for _, n := range level {
			for _, dep := range dependents[n] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next[dep] = true
				}
			}
		}
		ready = next
	}

	if visited != len(nodes) {
		return nil, fmt.Errorf("dag: cycle detected, processed %d of %d nodes", visited, len(nodes))
	}
	return levels, nil
}
