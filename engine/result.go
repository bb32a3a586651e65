package engine

import (
	"time"

	"github.com/kbukum/runemaster/task"
)

// State is the position of a run in its lifecycle.
type State string

const (
	StateInit         State = "init"
	StatePipelinePrep State = "pipeline_prep"
	StateTaskPrep     State = "task_prep"
	StateExecute      State = "execute"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Task statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskResult records one task execution.
type TaskResult struct {
	Task     string        `json:"task"`
	Type     string        `json:"type"`
	Kind     task.Kind     `json:"kind"`
	Step     int           `json:"step"`
	Status   string        `json:"status"`
	FileName string        `json:"file_name,omitempty"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Failure names the task that failed a run.
type Failure struct {
	Task string `json:"task"`
	Err  error  `json:"-"`
}

// Result is the outcome of Run. Tasks of steps that never started have no
// entry in TaskResults.
type Result struct {
	RunID       string                `json:"run_id"`
	Pipeline    string                `json:"pipeline"`
	State       State                 `json:"state"`
	Steps       int                   `json:"steps"`
	TaskResults map[string]TaskResult `json:"task_results"`
	Failed      *Failure              `json:"failed,omitempty"`
	Duration    time.Duration         `json:"duration"`
}

// Succeeded reports whether the run reached StateDone.
func (r *Result) Succeeded() bool { return r.State == StateDone }
