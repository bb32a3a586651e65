package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/runemaster/engine"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/graphstore"
	"github.com/kbukum/runemaster/logger"
)

// workspace writes a config, a CSV input and a pipeline definition into a
// temp dir.
type workspace struct {
	dir        string
	config     string
	definition string
}

func newWorkspace(t *testing.T, graphStore string) workspace {
	t.Helper()
	dir := t.TempDir()
	w := workspace{
		dir:        dir,
		config:     filepath.Join(dir, "config.yml"),
		definition: filepath.Join(dir, "pipeline.yml"),
	}
	input := filepath.Join(dir, "people.csv")
	write(t, input, "a,b\n1,x\n3,y\n1,z\n")

	write(t, w.config, `
name: runemaster
logging:
  level: error
storage:
  base_path: `+filepath.Join(dir, "datasets")+`
`+graphStore)

	write(t, w.definition, `
name: p1
variables:
  owner: ops
steps:
  - - name: src
      type: DownloadTask
      attributes:
        source: Local File System
        path: `+input+`
  - - name: distinct
      type: CSVQueryTask
      attributes:
        query: select distinct a
`)
	return w
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(&cli{log: logger.Nop()})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", w.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (w workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := w.run(t, args...)
	if err != nil {
		t.Fatalf("runemaster %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func graphStoreSQLite(dir string) string {
	return `
graph_store:
  driver: sqlite
database:
  dsn: ` + filepath.Join(dir, "runemaster.db") + `
`
}

func TestCLI_SQLiteLifecycle(t *testing.T) {
	dir := t.TempDir()
	w := newWorkspace(t, graphStoreSQLite(dir))

	if out := w.mustRun(t, "apply", "-f", w.definition); !strings.Contains(out, "pipeline p1 applied (2 tasks)") {
		t.Fatalf("apply output: %q", out)
	}

	var pipelines []graphstore.PipelineSummary
	decodeOutput(t, w.mustRun(t, "pipelines", "list"), &pipelines)
	want := []graphstore.PipelineSummary{{Key: "p1", Name: "p1", Variables: 1, Tasks: 2}}
	if diff := cmp.Diff(want, pipelines); diff != "" {
		t.Fatalf("pipelines mismatch (-want +got):\n%s", diff)
	}

	var tasks []graphstore.TaskRecord
	decodeOutput(t, w.mustRun(t, "tasks", "list", "--pipeline", "p1"), &tasks)
	if len(tasks) != 2 || tasks[0].Key != "p1_src" || tasks[1].Key != "p1_distinct" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	var res engine.Result
	decodeOutput(t, w.mustRun(t, "run", "p1"), &res)
	if res.State != engine.StateDone || res.TaskResults["p1_distinct"].FileName != "people.csv" {
		t.Fatalf("unexpected run result: %+v", res)
	}
	blob, err := os.ReadFile(filepath.Join(w.dir, "datasets", "p1", "p1_distinct", "people.csv"))
	if err != nil {
		t.Fatalf("read query output: %v", err)
	}
	if string(blob) != "a\n1\n3\n" {
		t.Fatalf("query output = %q", blob)
	}

	// the run persisted native_file_name, a second process sees it
	decodeOutput(t, w.mustRun(t, "pipelines", "list"), &pipelines)
	if pipelines[0].Variables != 2 {
		t.Fatalf("variables after run = %d", pipelines[0].Variables)
	}

	w.mustRun(t, "tasks", "rm", "p1", "distinct")
	decodeOutput(t, w.mustRun(t, "tasks", "list", "-p", "p1"), &tasks)
	if len(tasks) != 1 {
		t.Fatalf("tasks after rm: %+v", tasks)
	}

	w.mustRun(t, "pipelines", "rm", "p1")
	if _, err := w.run(t, "run", "p1"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCLI_RunFailurePrintsResult(t *testing.T) {
	dir := t.TempDir()
	w := newWorkspace(t, graphStoreSQLite(dir))
	def, _ := os.ReadFile(w.definition)
	write(t, w.definition, strings.Replace(string(def), "select distinct a", "select distinct zzz", 1))
	w.mustRun(t, "apply", "-f", w.definition)

	out, err := w.run(t, "run", "p1")
	if !errors.HasCode(err, errors.ErrCodeExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
	var res engine.Result
	decodeOutput(t, out, &res)
	if res.State != engine.StateFailed || res.Failed == nil || res.Failed.Task != "p1_distinct" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCLI_RedisGraphStore(t *testing.T) {
	mini := miniredis.RunT(t)
	w := newWorkspace(t, `
graph_store:
  driver: redis
redis:
  addr: `+mini.Addr()+`
`)

	w.mustRun(t, "apply", "-f", w.definition)
	var res engine.Result
	decodeOutput(t, w.mustRun(t, "run", "p1"), &res)
	if res.State != engine.StateDone {
		t.Fatalf("state = %s", res.State)
	}
	if len(mini.Keys()) == 0 {
		t.Fatal("nothing written to redis")
	}
}

func TestCLI_ApplyByName(t *testing.T) {
	w := newWorkspace(t, "graph_store:\n  driver: memory\n")
	out := w.mustRun(t, "apply", "--dir", w.dir, "pipeline")
	if !strings.Contains(out, "pipeline p1 applied (2 tasks)") {
		t.Fatalf("apply output: %q", out)
	}
}

func TestCLI_Types(t *testing.T) {
	w := newWorkspace(t, "graph_store:\n  driver: memory\n")
	var types []struct {
		Tag string `json:"tag"`
	}
	decodeOutput(t, w.mustRun(t, "types"), &types)
	var tags []string
	for _, ti := range types {
		tags = append(tags, ti.Tag)
	}
	for _, want := range []string{"CSVQueryTask", "DownloadTask", "ObjectUploadTask", "SSHUploadTask"} {
		if !strings.Contains(strings.Join(tags, ","), want) {
			t.Errorf("missing type %s in %v", want, tags)
		}
	}
}

func TestCLI_Arguments(t *testing.T) {
	w := newWorkspace(t, "graph_store:\n  driver: memory\n")
	tests := []struct {
		name string
		args []string
	}{
		{"run without name", []string{"run"}},
		{"apply without file", []string{"apply"}},
		{"apply missing file", []string{"apply", "-f", filepath.Join(w.dir, "nope.yml")}},
		{"apply file and name", []string{"apply", "-f", w.definition, "p1"}},
		{"apply unknown name", []string{"apply", "--dir", w.dir, "nope"}},
		{"tasks list without pipeline", []string{"tasks", "list"}},
		{"tasks rm with one arg", []string{"tasks", "rm", "p1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.run(t, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCLI_Version(t *testing.T) {
	w := newWorkspace(t, "")
	if out := w.mustRun(t, "version"); !strings.HasPrefix(out, "dev") {
		t.Fatalf("version output: %q", out)
	}
}

func decodeOutput(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
}
