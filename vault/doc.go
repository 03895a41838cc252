// Package vault contains implementations of core.ContentStore.
//
// The ContentStore interface lives in the core package so that the graph
// kernel and the run engine do not depend on a storage backend. This
// package provides:
//
//   - InMemoryStore for tests, dry runs and single process prototypes
//   - FileStore for a directory of markdown notes (an Obsidian style vault)
//
// Both stores implement core.NoteReader: notes may start with a YAML front
// matter block whose properties become template values of the nodes that
// reference them.
package vault
