// Package manager is the operation surface over a graph store and an
// engine. The CLI and the HTTP API are thin adapters over it.
package manager
