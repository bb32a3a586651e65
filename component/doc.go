// Package component defines the lifecycle contract for infrastructure the
// runemaster binary wires up at startup (graph store backend, blob storage,
// telemetry) and a Registry that starts them in order and stops them in
// reverse.
package component
