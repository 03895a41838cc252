package graph

import (
	"fmt"
	"sync/atomic"
)

// Object is implemented by *Node, *Edge and *Group.
type Object interface {
	ID() string
	Kind() Kind
	Text() string
	Status() Status
	// Err is the fault recorded when the object went to StatusError.
	Err() error
	// IsClone reports whether the object was created by a loop iteration.
	IsClone() bool
	// Origin is the id of the hydrated object this one was cloned from
	// (its own id for hydrated objects).
	Origin() string
	Dependencies() []Dependency
	base() *Base
}

// Base carries the state shared by every object variant. Status and Err
// may be read concurrently; everything else is owned by the graph's
// timeline lock once the object has been added.
type Base struct {
	id        string
	text      string
	kind      Kind
	status    atomic.Int32
	err       atomic.Pointer[error]
	deps      []Dependency
	listeners []string

	clone    bool
	parent   string
	origin   string
	clonedBy string
	// iters maps the origin id of each enclosing loop to this object's
	// iteration within it. Missing keys mean iteration 0.
	iters map[string]int
}

func (b *Base) init(id, text string, kind Kind) {
	b.id = id
	b.text = text
	b.kind = kind
	b.origin = id
}

func (b *Base) ID() string         { return b.id }
func (b *Base) Kind() Kind         { return b.kind }
func (b *Base) Text() string       { return b.text }
func (b *Base) IsClone() bool      { return b.clone }
func (b *Base) Origin() string     { return b.origin }
func (b *Base) Status() Status     { return Status(b.status.Load()) }
func (b *Base) base() *Base        { return b }
func (b *Base) setStatus(s Status) { b.status.Store(int32(s)) }

func (b *Base) Err() error {
	if p := b.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *Base) setErr(err error) {
	if err == nil {
		b.err.Store(nil)
		return
	}
	b.err.Store(&err)
}

// Dependencies returns a copy of the dependency terms.
func (b *Base) Dependencies() []Dependency {
	return append([]Dependency(nil), b.deps...)
}

// Iteration returns the iteration index of the object within the loop
// whose hydrated id is loopID.
func (b *Base) Iteration(loopID string) int {
	return b.iters[loopID]
}

// AddDependency appends a term. An id may appear in only one term of an
// object and only once within an alternative set.
func (b *Base) AddDependency(d Dependency) error {
	ids := d.IDs()
	if len(ids) == 0 {
		return fmt.Errorf("%w: empty dependency term on %s", ErrInvalidGraph, b.id)
	}

	seen := make(map[string]struct{})
	for _, existing := range b.deps {
		for _, id := range existing.IDs() {
			seen[id] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return &DuplicateAlternativeError{Object: b.id, ID: id}
		}
		seen[id] = struct{}{}
	}

	b.deps = append(b.deps, d)
	return nil
}

// termFor returns the term that references id, or nil.
func (b *Base) termFor(id string) Dependency {
	for _, d := range b.deps {
		if contains(d, id) {
			return d
		}
	}
	return nil
}

func (b *Base) addListener(id string) {
	for _, l := range b.listeners {
		if l == id {
			return
		}
	}
	b.listeners = append(b.listeners, id)
}

// copyBase initializes b as an iteration clone of src.
func (b *Base) copyBase(src *Base, idMap map[string]string, loop, loopOrigin string, iteration int) {
	b.clone = true
	b.parent = src.id
	b.origin = src.origin
	b.clonedBy = loop
	b.iters = make(map[string]int, len(src.iters)+1)
	for k, v := range src.iters {
		b.iters[k] = v
	}
	b.iters[loopOrigin] = iteration
	b.deps = make([]Dependency, 0, len(src.deps))
	for _, d := range src.deps {
		b.deps = append(b.deps, remap(d, idMap))
	}
}
