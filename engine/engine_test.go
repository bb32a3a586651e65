package engine_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/dataset"
	"github.com/kbukum/runemaster/engine"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/storage/local"
	"github.com/kbukum/runemaster/task"
	"github.com/kbukum/runemaster/task/builtin"
)

type constSource struct {
	file string
	data string
	err  error
	hook func(ctx context.Context) error
}

func (s *constSource) Tag() string         { return "ConstSource" }
func (s *constSource) Kind() task.Kind     { return task.KindSource }
func (s *constSource) Schema() task.Schema { return nil }

func (s *constSource) Extract(ctx context.Context, _ *task.Task) (*task.Dataset, error) {
	if s.hook != nil {
		if err := s.hook(ctx); err != nil {
			return nil, err
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &task.Dataset{FileName: s.file, Data: []byte(s.data)}, nil
}

type captureSink struct {
	mu  sync.Mutex
	got []task.Dataset
}

func (c *captureSink) Tag() string         { return "CaptureSink" }
func (c *captureSink) Kind() task.Kind     { return task.KindSink }
func (c *captureSink) Schema() task.Schema { return nil }

func (c *captureSink) Push(_ context.Context, _ *task.Task, inputs []task.Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, inputs...)
	return nil
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *dataset.Store) {
	t.Helper()
	backend, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	ds := dataset.New(backend)
	return engine.New(ds, opts...), ds
}

func build(t *testing.T, p *dag.Pipeline, steps ...[]*task.Task) {
	t.Helper()
	g := p.Graph
	for _, step := range steps {
		var err error
		if g, err = g.Fork(step...); err != nil {
			t.Fatalf("fork: %v", err)
		}
	}
	p.Graph = g
}

func TestRun_SourceQuerySink(t *testing.T) {
	ctx := context.Background()
	eng, ds := newEngine(t)

	p := dag.NewPipeline("p1")
	src := p.NewTask("src", &constSource{file: "data.csv", data: "a,b\n1,2\n3,2\n"})
	query := p.NewTask("query", &builtin.CSVQueryTask{})
	if err := query.Bind(map[string]string{"query": "select distinct a"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	sink := &captureSink{}
	build(t, p, []*task.Task{src}, []*task.Task{query}, []*task.Task{p.NewTask("out", sink)})

	res, err := eng.Run(ctx, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != engine.StateDone || !res.Succeeded() {
		t.Fatalf("state = %s, want done", res.State)
	}
	if res.Steps != 3 || len(res.TaskResults) != 3 {
		t.Fatalf("steps=%d results=%d", res.Steps, len(res.TaskResults))
	}
	if res.RunID == "" {
		t.Fatal("missing run id")
	}

	want := []task.Dataset{{FileName: "data.csv", Data: []byte("a\n1\n3\n")}}
	if diff := cmp.Diff(want, sink.got); diff != "" {
		t.Fatalf("sink input mismatch (-want +got):\n%s", diff)
	}
	if name, _ := p.Variable(engine.VarNativeFileName); name != "data.csv" {
		t.Fatalf("native_file_name = %q", name)
	}

	files, err := ds.List(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	if diff := cmp.Diff([]string{"p1/p1_query/data.csv", "p1/p1_src/data.csv"}, paths); diff != "" {
		t.Fatalf("blobs mismatch (-want +got):\n%s", diff)
	}

	if r := res.TaskResults["p1_query"]; r.Status != engine.StatusCompleted || r.Kind != task.KindTransform || r.Step != 1 {
		t.Fatalf("query result = %+v", r)
	}
}

func TestRun_Failures(t *testing.T) {
	boom := stderrors.New("boom")

	tests := []struct {
		name       string
		first      func(p *dag.Pipeline) *task.Task
		code       errors.ErrorCode
		failedTask string
	}{
		{
			name: "missing attribute",
			first: func(p *dag.Pipeline) *task.Task {
				return p.NewTask("q", &builtin.CSVQueryTask{})
			},
			code:       errors.ErrCodeMissingAttribute,
			failedTask: "p_q",
		},
		{
			name: "unsupported kind",
			first: func(p *dag.Pipeline) *task.Task {
				return p.NewTask("old", task.Generic{TypeTag: "RetiredTask"})
			},
			code:       errors.ErrCodeUnsupportedTaskType,
			failedTask: "p_old",
		},
		{
			name: "body error",
			first: func(p *dag.Pipeline) *task.Task {
				return p.NewTask("src", &constSource{err: boom})
			},
			code:       errors.ErrCodeExecutionFailed,
			failedTask: "p_src",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newEngine(t)
			p := dag.NewPipeline("p")
			sink := &captureSink{}
			build(t, p, []*task.Task{tt.first(p)}, []*task.Task{p.NewTask("out", sink)})

			res, err := eng.Run(context.Background(), p)
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			appErr, _ := errors.AsAppError(err)
			if appErr.Details["task"] != tt.failedTask {
				t.Fatalf("task detail = %v", appErr.Details["task"])
			}
			if res.State != engine.StateFailed || res.Failed == nil || res.Failed.Task != tt.failedTask {
				t.Fatalf("result = %+v", res)
			}
			if _, ran := res.TaskResults["p_out"]; ran || len(sink.got) != 0 {
				t.Fatal("step after the failure ran")
			}
			if tt.code == errors.ErrCodeExecutionFailed && !stderrors.Is(err, boom) {
				t.Fatalf("cause lost: %v", err)
			}
		})
	}
}

func TestRun_FailureKeepsEarlierBlobs(t *testing.T) {
	ctx := context.Background()
	eng, ds := newEngine(t)

	p := dag.NewPipeline("p")
	src := p.NewTask("src", &constSource{file: "in.csv", data: "a\n1\n"})
	query := p.NewTask("q", &builtin.CSVQueryTask{})
	if err := query.Bind(map[string]string{"query": "select distinct missing"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	build(t, p, []*task.Task{src}, []*task.Task{query})

	if _, err := eng.Run(ctx, p); !errors.HasCode(err, errors.ErrCodeExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
	data, err := ds.Read(ctx, "p", "p_src", "in.csv")
	if err != nil || string(data) != "a\n1\n" {
		t.Fatalf("source blob = %q, %v", data, err)
	}
}

func TestRun_SequentialStepStopsAtFirstFailure(t *testing.T) {
	eng, _ := newEngine(t)
	p := dag.NewPipeline("p")
	bad := p.NewTask("bad", &constSource{err: stderrors.New("down")})
	good := p.NewTask("good", &constSource{file: "f", data: "x"})
	build(t, p, []*task.Task{bad, good})

	res, err := eng.Run(context.Background(), p)
	if err == nil {
		t.Fatal("expected failure")
	}
	if _, ran := res.TaskResults["p_good"]; ran {
		t.Fatal("sibling ran after failure with MaxParallel 1")
	}
}

func TestRun_ParallelStep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	eng, _ := newEngine(t, engine.WithMaxParallel(2))

	// Each source waits until the other has started.
	var barrier sync.WaitGroup
	barrier.Add(2)
	wait := func(ctx context.Context) error {
		barrier.Done()
		done := make(chan struct{})
		go func() { barrier.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p := dag.NewPipeline("p")
	sink := &captureSink{}
	build(t, p,
		[]*task.Task{
			p.NewTask("a", &constSource{file: "a.csv", data: "A", hook: wait}),
			p.NewTask("b", &constSource{file: "b.csv", data: "B", hook: wait}),
		},
		[]*task.Task{p.NewTask("out", sink)},
	)

	if _, err := eng.Run(ctx, p); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := map[string]string{}
	for _, d := range sink.got {
		got[d.FileName] = string(d.Data)
	}
	if diff := cmp.Diff(map[string]string{"a.csv": "A", "b.csv": "B"}, got); diff != "" {
		t.Fatalf("sink input mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	eng, _ := newEngine(t)
	p := dag.NewPipeline("p")
	build(t, p, []*task.Task{p.NewTask("src", &constSource{file: "f", data: "x"})})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := eng.Run(ctx, p)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.State != engine.StateFailed || len(res.TaskResults) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRun_EmptyPipeline(t *testing.T) {
	eng, _ := newEngine(t)
	res, err := eng.Run(context.Background(), dag.NewPipeline("empty"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != engine.StateDone || res.Steps != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []engine.State{engine.StateDone, engine.StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []engine.State{engine.StateInit, engine.StatePipelinePrep, engine.StateTaskPrep, engine.StateExecute} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
