package api

import "github.com/kbukum/runemaster/dag"

// TaskView is a task as rendered by the API.
type TaskView struct {
	Key        string            `json:"key"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// PipelineView is a pipeline with its steps.
type PipelineView struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables"`
	Steps     [][]TaskView      `json:"steps"`
}

// NewPipelineView renders p.
func NewPipelineView(p *dag.Pipeline) PipelineView {
	v := PipelineView{Name: p.Name, Variables: p.VariablesSnapshot(), Steps: [][]TaskView{}}
	if p.Graph == nil {
		return v
	}
	for _, step := range p.Graph.Steps() {
		row := make([]TaskView, len(step))
		for i, t := range step {
			row[i] = TaskView{Key: t.Key(), Name: t.Name, Type: t.TypeTag(), Attributes: t.Values()}
		}
		v.Steps = append(v.Steps, row)
	}
	return v
}
