package graphstore

import (
	"maps"

	"github.com/kbukum/runemaster/task"
)

// Record is a stored document addressed by key and stamped with the
// pipeline it belongs to.
type Record interface {
	RecordKey() string
	RecordPipeline() string
}

// TaskRecord is a "task" vertex.
type TaskRecord struct {
	Key         string                  `json:"key"`
	PipelineKey string                  `json:"pipeline_key"`
	Name        string                  `json:"name"`
	TaskType    string                  `json:"task_type"`
	Step        int                     `json:"step"`
	Attributes  map[string]task.Binding `json:"attributes"`
}

func (r TaskRecord) RecordKey() string      { return r.Key }
func (r TaskRecord) RecordPipeline() string { return r.PipelineKey }

// EdgeRecord is a "next" edge from a task vertex to one of its successors.
type EdgeRecord struct {
	Key         string `json:"key"`
	From        string `json:"from"`
	To          string `json:"to"`
	PipelineKey string `json:"pipeline_key"`
}

func (r EdgeRecord) RecordKey() string      { return r.Key }
func (r EdgeRecord) RecordPipeline() string { return r.PipelineKey }

// EdgeKey is the identity of the edge from -> to.
func EdgeKey(from, to string) string { return from + "__" + to }

// PipelineRecord holds the pipeline name, its variable bag and the ordered
// task list. Tasks is a projection of the vertex collection kept so loads
// need no traversal.
type PipelineRecord struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	PipelineKey string            `json:"pipeline_key"`
	Variables   map[string]string `json:"variables"`
	Tasks       []TaskRecord      `json:"tasks"`
}

func (r PipelineRecord) RecordKey() string      { return r.Key }
func (r PipelineRecord) RecordPipeline() string { return r.PipelineKey }

// PipelineSummary is one row of ListPipelines.
type PipelineSummary struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Variables int    `json:"variables"`
	Tasks     int    `json:"tasks"`
}

func newTaskRecord(t *task.Task, step int) TaskRecord {
	return TaskRecord{
		Key:         t.Key(),
		PipelineKey: t.PipelineKey,
		Name:        t.Name,
		TaskType:    t.TypeTag(),
		Step:        step,
		Attributes:  maps.Clone(t.Attributes),
	}
}
