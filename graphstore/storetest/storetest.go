// Package storetest holds the behaviour every graphstore.Backend must show,
// runnable against any implementation:
//
//	func TestBackend(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) graphstore.Backend { return newBackend(t) })
//	}
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/graphstore"
	"github.com/kbukum/runemaster/task"
)

// Factory returns a fresh, empty backend.
type Factory func(t *testing.T) graphstore.Backend

type fixtureType struct {
	tag  string
	kind task.Kind
}

func (f fixtureType) Tag() string     { return f.tag }
func (f fixtureType) Kind() task.Kind { return f.kind }
func (f fixtureType) Schema() task.Schema {
	return task.Schema{
		{ID: "path", Name: "Path", Type: task.FieldInput},
		{ID: "mode", Name: "Mode", Type: task.FieldChoose, Variants: []string{"fast", "slow"}, Optional: true},
	}
}

// Registry returns a registry holding the fixture types used by the suite.
func Registry() *task.Registry {
	r := task.NewRegistry()
	for _, ft := range []fixtureType{
		{"FixtureSource", task.KindSource},
		{"FixtureTransform", task.KindTransform},
		{"FixtureSink", task.KindSink},
	} {
		if err := r.Register(ft); err != nil {
			panic(err)
		}
	}
	return r
}

// Chain builds name as a single chain of tasks n0..n(len-1) whose types
// cycle source, transform, sink.
func Chain(t *testing.T, reg *task.Registry, name string, tasks ...string) *dag.Pipeline {
	t.Helper()
	tags := []string{"FixtureSource", "FixtureTransform", "FixtureSink"}
	p := dag.NewPipeline(name)
	for i, n := range tasks {
		typ, _ := reg.Lookup(tags[min(i, len(tags)-1)])
		tk := p.NewTask(n, typ)
		if err := tk.Bind(map[string]string{"path": "/data/" + n}); err != nil {
			t.Fatalf("Bind(%s) error = %v", n, err)
		}
		if err := p.Add(tk); err != nil {
			t.Fatalf("Add(%s) error = %v", n, err)
		}
	}
	return p
}

type snapshot struct {
	Name string
	Keys [][]string
	Tags [][]string
	Vals []map[string]string
	Vars map[string]string
}

func snap(p *dag.Pipeline) snapshot {
	s := snapshot{Name: p.Name, Vars: p.VariablesSnapshot()}
	for _, step := range p.Graph.Steps() {
		var keys, tags []string
		for _, tk := range step {
			keys = append(keys, tk.Key())
			tags = append(tags, tk.TypeTag())
			s.Vals = append(s.Vals, tk.Values())
		}
		s.Keys = append(s.Keys, keys)
		s.Tags = append(s.Tags, tags)
	}
	return s
}

func counts(t *testing.T, b graphstore.Backend) (tasks, edges, pipelines int) {
	t.Helper()
	ctx := context.Background()
	tr, err := b.Tasks().Scan(ctx, graphstore.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	er, err := b.Edges().Scan(ctx, graphstore.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	pr, err := b.Pipelines().Scan(ctx, graphstore.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	return len(tr), len(er), len(pr)
}

// Run executes the collection contract and the mapping tests against
// backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("Collection", func(t *testing.T) { testCollection(t, newBackend(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newBackend) })
	t.Run("SaveIdempotent", func(t *testing.T) { testSaveIdempotent(t, newBackend(t)) })
	t.Run("SavePrunes", func(t *testing.T) { testSavePrunes(t, newBackend(t)) })
	t.Run("UnsavedEdits", func(t *testing.T) { testUnsavedEdits(t, newBackend(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newBackend(t)) })
	t.Run("RemoveTask", func(t *testing.T) { testRemoveTask(t, newBackend) })
	t.Run("UnknownTag", func(t *testing.T) { testUnknownTag(t, newBackend(t)) })
	t.Run("ListPipelines", func(t *testing.T) { testListPipelines(t, newBackend(t)) })
}

func testCollection(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	c := b.Edges()
	e1 := graphstore.EdgeRecord{Key: "a__b", From: "a", To: "b", PipelineKey: "p"}
	e2 := graphstore.EdgeRecord{Key: "b__c", From: "b", To: "c", PipelineKey: "p"}
	e3 := graphstore.EdgeRecord{Key: "x__y", From: "x", To: "y", PipelineKey: "q"}

	if _, err := c.Get(ctx, "a__b"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Get(missing) error = %v, want NOT_FOUND", err)
	}
	if err := c.Update(ctx, e1); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Update(missing) error = %v, want NOT_FOUND", err)
	}
	for _, e := range []graphstore.EdgeRecord{e1, e2, e3} {
		if err := c.Insert(ctx, e); err != nil {
			t.Fatalf("Insert(%s) error = %v", e.Key, err)
		}
	}
	if err := c.Insert(ctx, e1); !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		t.Fatalf("Insert(duplicate) error = %v, want ALREADY_EXISTS", err)
	}

	moved := e1
	moved.To = "z"
	if err := c.Upsert(ctx, moved); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := c.Get(ctx, "a__b")
	if err != nil || got.To != "z" {
		t.Fatalf("Get() after Upsert = %+v, %v", got, err)
	}

	scanned, err := c.Scan(ctx, graphstore.Filter{PipelineKey: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]graphstore.EdgeRecord{moved, e2}, scanned); diff != "" {
		t.Errorf("Scan(p) mismatch (-want +got):\n%s", diff)
	}

	n, err := c.DeleteWhere(ctx, graphstore.Filter{PipelineKey: "p"})
	if err != nil || n != 2 {
		t.Fatalf("DeleteWhere(p) = %d, %v; want 2", n, err)
	}
	if err := c.Delete(ctx, "x__y"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, "x__y"); err != nil {
		t.Fatalf("Delete(missing) error = %v, want nil", err)
	}
	if all, _ := c.Scan(ctx, graphstore.Filter{}); len(all) != 0 {
		t.Errorf("Scan() after deletes = %+v, want empty", all)
	}
}

func testRoundTrip(t *testing.T, newBackend Factory) {
	reg := Registry()
	for _, traverse := range []bool{false, true} {
		name := "list"
		if traverse {
			name = "traversal"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			opts := []graphstore.Option{graphstore.WithRegistry(reg)}
			if traverse {
				opts = append(opts, graphstore.WithTraversal())
			}
			s := graphstore.New(newBackend(t), opts...)

			p := Chain(t, reg, "p1", "extract", "shape")
			typ, _ := reg.Lookup("FixtureSink")
			g, err := p.Graph.Fork(p.NewTask("push_a", typ), p.NewTask("push_b", typ))
			if err != nil {
				t.Fatal(err)
			}
			p.Graph = g
			p.SetVariable("native_file_name", "data.csv")

			if err := s.Save(ctx, p); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := s.Load(ctx, "p1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(snap(p), snap(got)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// testUnsavedEdits checks that stored records are detached from the live
// pipeline once Save returns.
func testUnsavedEdits(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	reg := Registry()
	s := graphstore.New(b, graphstore.WithRegistry(reg))
	p := Chain(t, reg, "p1", "a", "b")
	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}

	if err := p.Tasks()[0].Bind(map[string]string{"path": "/changed"}); err != nil {
		t.Fatal(err)
	}
	p.SetVariable("owner", "nobody")

	got, err := s.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v, _ := got.Tasks()[0].Value("path"); v != "/data/a" {
		t.Errorf("stored path after unsaved rebind = %q, want /data/a", v)
	}
	if _, ok := got.Variable("owner"); ok {
		t.Error("unsaved variable reached the stored pipeline")
	}
	recs, err := s.ListTasks(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if v := recs[0].Attributes["path"].Value; v != "/data/a" {
		t.Errorf("stored vertex path after unsaved rebind = %q, want /data/a", v)
	}
}

func testSaveIdempotent(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	reg := Registry()
	s := graphstore.New(b, graphstore.WithRegistry(reg))
	p := Chain(t, reg, "p1", "a", "b", "c")

	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	tk, ed, pl := counts(t, b)
	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	tk2, ed2, pl2 := counts(t, b)
	if tk != tk2 || ed != ed2 || pl != pl2 {
		t.Errorf("second Save grew records: %d/%d/%d -> %d/%d/%d", tk, ed, pl, tk2, ed2, pl2)
	}
	if tk != 3 || ed != 2 || pl != 1 {
		t.Errorf("records = %d tasks, %d edges, %d pipelines; want 3, 2, 1", tk, ed, pl)
	}
}

func testSavePrunes(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	reg := Registry()
	s := graphstore.New(b, graphstore.WithRegistry(reg))

	if err := s.Save(ctx, Chain(t, reg, "p1", "a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, Chain(t, reg, "p1", "a", "c")); err != nil {
		t.Fatal(err)
	}
	edges, err := s.ListEdges(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	want := []graphstore.EdgeRecord{{Key: "p1_a__p1_c", From: "p1_a", To: "p1_c", PipelineKey: "p1"}}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("edges after shrink (-want +got):\n%s", diff)
	}
	if tk, _, _ := counts(t, b); tk != 2 {
		t.Errorf("tasks after shrink = %d, want 2", tk)
	}
}

func testDelete(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	reg := Registry()
	s := graphstore.New(b, graphstore.WithRegistry(reg))

	for _, name := range []string{"p1", "p2"} {
		if err := s.Save(ctx, Chain(t, reg, name, "a", "b", "c")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	tasks, err := s.ListTasks(ctx, "p1")
	if err != nil || len(tasks) != 0 {
		t.Errorf("ListTasks(p1) after delete = %v, %v; want empty", tasks, err)
	}
	if edges, _ := s.ListEdges(ctx, "p1"); len(edges) != 0 {
		t.Errorf("edges of p1 after delete = %v", edges)
	}
	if _, err := s.Load(ctx, "p1"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Load(p1) after delete error = %v, want NOT_FOUND", err)
	}
	if err := s.Delete(ctx, "p1"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("second Delete error = %v, want NOT_FOUND", err)
	}
	if tk, ed, pl := counts(t, b); tk != 3 || ed != 2 || pl != 1 {
		t.Errorf("p2 records = %d/%d/%d, want 3/2/1", tk, ed, pl)
	}
}

func testRemoveTask(t *testing.T, newBackend Factory) {
	tests := []struct {
		name      string
		remove    string
		wantSteps [][]string
		wantEdges []string
	}{
		{"middle reconnects", "b", [][]string{{"p1_a"}, {"p1_c"}}, []string{"p1_a__p1_c"}},
		{"end drops incoming edge", "c", [][]string{{"p1_a"}, {"p1_b"}}, []string{"p1_a__p1_b"}},
		{"start drops outgoing edge", "a", [][]string{{"p1_b"}, {"p1_c"}}, []string{"p1_b__p1_c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			reg := Registry()
			b := newBackend(t)
			s := graphstore.New(b, graphstore.WithRegistry(reg))
			if err := s.Save(ctx, Chain(t, reg, "p1", "a", "b", "c")); err != nil {
				t.Fatal(err)
			}

			if _, err := s.RemoveTask(ctx, "p1", tt.remove); err != nil {
				t.Fatalf("RemoveTask() error = %v", err)
			}
			got, err := s.Load(ctx, "p1")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.wantSteps, snap(got).Keys); diff != "" {
				t.Errorf("steps mismatch (-want +got):\n%s", diff)
			}
			edges, _ := s.ListEdges(ctx, "p1")
			var keys []string
			for _, e := range edges {
				keys = append(keys, e.Key)
			}
			if diff := cmp.Diff(tt.wantEdges, keys); diff != "" {
				t.Errorf("edges mismatch (-want +got):\n%s", diff)
			}
			if tk, _, _ := counts(t, b); tk != 2 {
				t.Errorf("tasks = %d, want 2", tk)
			}
		})
	}

	t.Run("unknown task", func(t *testing.T) {
		ctx := context.Background()
		reg := Registry()
		s := graphstore.New(newBackend(t), graphstore.WithRegistry(reg))
		if err := s.Save(ctx, Chain(t, reg, "p1", "a")); err != nil {
			t.Fatal(err)
		}
		if _, err := s.RemoveTask(ctx, "p1", "zz"); !errors.HasCode(err, errors.ErrCodeNotFound) {
			t.Errorf("RemoveTask(zz) error = %v, want NOT_FOUND", err)
		}
	})
}

func testUnknownTag(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	reg := Registry()
	if err := graphstore.New(b, graphstore.WithRegistry(reg)).Save(ctx, Chain(t, reg, "p1", "a", "b")); err != nil {
		t.Fatal(err)
	}

	got, err := graphstore.New(b, graphstore.WithRegistry(task.NewRegistry())).Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load() with empty registry error = %v", err)
	}
	tasks := got.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if _, ok := tasks[0].Type.(task.Generic); !ok {
		t.Errorf("type = %T, want task.Generic", tasks[0].Type)
	}
	if tasks[0].TypeTag() != "FixtureSource" {
		t.Errorf("tag = %q, want FixtureSource", tasks[0].TypeTag())
	}
	if v, _ := tasks[0].Value("path"); v != "/data/a" {
		t.Errorf("path = %q, want /data/a", v)
	}
}

func testListPipelines(t *testing.T, b graphstore.Backend) {
	ctx := context.Background()
	reg := Registry()
	s := graphstore.New(b, graphstore.WithRegistry(reg))

	p1 := Chain(t, reg, "p1", "a", "b")
	p1.SetVariable("native_file_name", "x.csv")
	for _, p := range []*dag.Pipeline{p1, Chain(t, reg, "p2", "a")} {
		if err := s.Save(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListPipelines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []graphstore.PipelineSummary{
		{Key: "p1", Name: "p1", Variables: 1, Tasks: 2},
		{Key: "p2", Name: "p2", Variables: 0, Tasks: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListPipelines() mismatch (-want +got):\n%s", diff)
	}
}
