package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/canvasmesh/logging"
)

// Reason tells why a run settled.
type Reason string

const (
	ReasonComplete Reason = "complete"
	ReasonError    Reason = "error"
	ReasonStopped  Reason = "stopped"
)

// Outcome is reported once per run when the graph settles.
type Outcome struct {
	Reason Reason
	Err    error
}

// Observer is invoked for every status change, including resets. It runs
// under the timeline lock and must not call back into the graph.
type Observer func(obj Object, from, to Status)

// Graph is an arena of objects plus the runtime state of one run.
type Graph struct {
	mu        sync.Mutex
	objects   map[string]Object
	order     []string
	children  map[string][]string
	assembled bool
	observer  Observer

	env      Env
	log      logging.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	onSettle func(Outcome)

	gen      int
	started  bool
	stopped  bool
	settled  bool
	inflight int
	firstErr error
	fatal    error
	outcome  *Outcome
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		objects:  make(map[string]Object),
		children: make(map[string][]string),
		log:      logging.NoOpLogger{},
	}
}

// Add registers an object. Objects can only be added before Start.
func (g *Graph) Add(o Object) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return ErrAlreadyStarted
	}
	if _, ok := g.objects[o.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, o.ID())
	}
	g.insert(o)
	return nil
}

// SetObserver installs fn as the status observer.
func (g *Graph) SetObserver(fn Observer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observer = fn
}

func (g *Graph) insert(o Object) {
	b := o.base()
	g.objects[b.id] = o
	g.order = append(g.order, b.id)
	if b.clone {
		g.children[b.parent] = append(g.children[b.parent], b.id)
	}
}

// Get looks up an object by id.
func (g *Graph) Get(id string) (Object, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.objects[id]
	return o, ok
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	o, _ := g.Get(id)
	n, ok := o.(*Node)
	return n, ok
}

// Edge looks up an edge by id.
func (g *Graph) Edge(id string) (*Edge, bool) {
	o, _ := g.Get(id)
	e, ok := o.(*Edge)
	return e, ok
}

// Group looks up a group by id.
func (g *Graph) Group(id string) (*Group, bool) {
	o, _ := g.Get(id)
	grp, ok := o.(*Group)
	return grp, ok
}

// CloneOf returns the copy of id made for iteration of loop. Iteration 0 is
// the object itself.
func (g *Graph) CloneOf(id, loop string, iteration int) (Object, bool) {
	if iteration == 0 {
		return g.Get(id)
	}
	return g.Get(cloneID(id, loop, iteration))
}

// Objects returns every object in insertion order, clones last.
func (g *Graph) Objects() []Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Object, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.objects[id])
	}
	return out
}

// Len returns the number of objects including clones.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// AllDependenciesComplete reports whether every dependency term of id is
// satisfied: Single is Complete, exactly one AnyOf member is Complete and
// the enclosing group of an Entry term has started.
func (g *Graph) AllDependenciesComplete(id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.objects[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	return g.ready(o), nil
}

func (g *Graph) status(id string) Status {
	if o, ok := g.objects[id]; ok {
		return o.Status()
	}
	return StatusPending
}

func (g *Graph) ready(o Object) bool {
	for _, d := range o.base().deps {
		if !satisfied(d, g.status) {
			return false
		}
	}
	return true
}

func (g *Graph) originOf(id string) string {
	if o, ok := g.objects[id]; ok {
		return o.Origin()
	}
	return id
}

func cloneID(id, loop string, iteration int) string {
	return fmt.Sprintf("%s@%s.%d", id, loop, iteration)
}

func vertexOf(o Object) *Vertex {
	switch v := o.(type) {
	case *Node:
		return &v.Vertex
	case *Group:
		return &v.Vertex
	}
	return nil
}
