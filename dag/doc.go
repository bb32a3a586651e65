// Package dag provides the task graph composition algebra and the Pipeline
// that owns a graph.
//
// A Graph is an ordered list of steps; each step is a set of tasks that run
// after every task of the previous step. Graphs are built by chaining:
//
//   - Link(a, b): task then task, two steps
//   - g.Then(t): appends a final step {t}
//   - g.Fork(t1, t2...): appends a final step of siblings
//   - g.Merge(h): only defined when g is empty
//
// Graphs are values: composition returns a new graph and never mutates its
// operands. Pipelines can also be declared in YAML and built against a
// task.Registry (see Definition).
package dag
