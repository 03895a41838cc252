package graph

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/hupe1980/canvasmesh/internal/util"
	"github.com/hupe1980/canvasmesh/logging"
)

// Start runs the graph. Every object without dependencies executes
// immediately; the rest is driven by status notifications. onSettle is
// called exactly once, outside the timeline lock, when the run completes,
// fails or is stopped.
func (g *Graph) Start(ctx context.Context, env Env, onSettle func(Outcome)) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := g.setupListeners(); err != nil {
		g.mu.Unlock()
		return err
	}

	g.started = true
	g.env = env
	g.log = env.Logger()
	if g.log == nil {
		g.log = logging.NoOpLogger{}
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.onSettle = onSettle

	var roots []Object
	for _, id := range g.order {
		if o := g.objects[id]; len(o.base().deps) == 0 {
			roots = append(roots, o)
		}
	}
	g.log.Debug("Graph started", "objects", len(g.order), "roots", len(roots))

	for _, o := range roots {
		if g.halted() {
			break
		}
		if o.Status() == StatusPending {
			g.launch(o)
		}
	}
	g.maybeSettle()
	g.unlockAndFire()
	return nil
}

// Stop cancels the run. Objects that have not started stay Pending and
// results of in-flight work are discarded.
func (g *Graph) Stop() {
	g.mu.Lock()
	if !g.started || g.settled {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	g.settle(Outcome{Reason: ReasonStopped})
	g.unlockAndFire()
}

// Reset discards every clone, restores the hydrated wiring and returns all
// objects to Pending so the graph can be started again.
func (g *Graph) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started && !g.settled {
		return ErrRunning
	}

	kept := g.order[:0]
	for _, id := range g.order {
		if g.objects[id].IsClone() {
			delete(g.objects, id)
			continue
		}
		kept = append(kept, id)
	}
	g.order = kept
	g.children = make(map[string][]string)

	for _, id := range g.order {
		o := g.objects[id]
		b := o.base()
		from := b.Status()
		b.setStatus(StatusPending)
		b.setErr(nil)
		b.listeners = nil
		switch v := o.(type) {
		case *Node:
			v.output = Payload{}
			v.routes = nil
		case *Edge:
			v.carry = nil
			v.payload = Payload{}
		case *Group:
			v.resetRun()
		}
		if g.observer != nil {
			g.observer(o, from, StatusPending)
		}
	}

	g.gen++
	g.inflight = 0
	g.started, g.stopped, g.settled = false, false, false
	g.firstErr, g.fatal, g.outcome = nil, nil, nil
	g.cancel = nil
	return nil
}

func (g *Graph) setupListeners() error {
	for _, id := range g.order {
		g.objects[id].base().listeners = nil
	}
	for _, id := range g.order {
		if err := g.listen(g.objects[id]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) listen(o Object) error {
	for _, d := range o.base().deps {
		for _, id := range d.IDs() {
			t, ok := g.objects[id]
			if !ok {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownObject, o.ID(), id)
			}
			t.base().addListener(o.ID())
		}
	}
	return nil
}

func (g *Graph) halted() bool { return g.stopped || g.fatal != nil }

func (g *Graph) unlockAndFire() {
	out, cb := g.outcome, g.onSettle
	g.outcome = nil
	g.mu.Unlock()
	if out != nil && cb != nil {
		cb(*out)
	}
}

func (g *Graph) settle(out Outcome) {
	if g.settled {
		return
	}
	g.settled = true
	if g.cancel != nil {
		g.cancel()
	}
	g.outcome = &out
	if out.Err != nil {
		g.log.Info("Graph settled", "reason", string(out.Reason), "error", out.Err.Error())
		return
	}
	g.log.Info("Graph settled", "reason", string(out.Reason))
}

// maybeSettle must only run at the end of an entry point, when all
// synchronous dispatch has unwound.
func (g *Graph) maybeSettle() {
	if !g.started || g.settled {
		return
	}
	if g.fatal != nil {
		g.settle(Outcome{Reason: ReasonError, Err: g.fatal})
		return
	}
	if g.inflight > 0 {
		return
	}
	if g.firstErr != nil {
		g.settle(Outcome{Reason: ReasonError, Err: g.firstErr})
		return
	}
	var stuck []string
	for _, id := range g.order {
		if !g.objects[id].Status().Terminal() {
			stuck = append(stuck, id)
		}
	}
	if len(stuck) > 0 {
		g.settle(Outcome{Reason: ReasonError, Err: &StalledError{Pending: stuck}})
		return
	}
	g.settle(Outcome{Reason: ReasonComplete})
}

// transition writes the new status and notifies every listener before
// returning.
func (g *Graph) transition(o Object, to Status, err error) bool {
	b := o.base()
	from := b.Status()
	if !canTransition(from, to) {
		return false
	}
	if to == StatusError {
		b.setErr(err)
		if g.firstErr == nil {
			g.firstErr = err
		}
	}
	b.setStatus(to)
	g.log.Debug("Object transitioned", "object_id", b.id, "kind", b.kind.String(), "from", from.String(), "to", to.String())
	if g.observer != nil {
		g.observer(o, from, to)
	}
	g.notify(o, to)
	return true
}

func (g *Graph) notify(o Object, s Status) {
	listeners := append([]string(nil), o.base().listeners...)
	for _, id := range listeners {
		if g.halted() {
			return
		}
		if l, ok := g.objects[id]; ok {
			g.dependencyUpdated(l, o, s)
		}
	}
}

func (g *Graph) dependencyUpdated(o, from Object, s Status) {
	if grp, ok := o.(*Group); ok && grp.watches(from.ID()) {
		g.memberUpdated(grp, from, s)
	}

	d := o.base().termFor(from.ID())
	if d == nil {
		return
	}
	_, entry := d.(Entry)

	switch s {
	case StatusExecuting:
		if entry {
			g.dependencyCompleted(o)
		}
	case StatusComplete:
		if alt, ok := d.(AnyOf); ok && countComplete(alt, g.status) > 1 {
			g.conflict(o, alt)
			return
		}
		if !entry {
			g.dependencyCompleted(o)
		}
	case StatusRejected:
		g.tryReject(o)
	case StatusError:
		g.dependencyErrored(o, from, d)
	}
}

func (g *Graph) dependencyCompleted(o Object) {
	if o.Status() != StatusPending {
		return
	}
	if g.ready(o) {
		g.launch(o)
	}
}

// tryReject rejects o when one of its terms can no longer be satisfied.
func (g *Graph) tryReject(o Object) bool {
	if o.Status() != StatusPending {
		return false
	}
	for _, d := range o.base().deps {
		if fullyRejected(d, g.status) {
			return g.transition(o, StatusRejected, nil)
		}
	}
	return false
}

func (g *Graph) dependencyErrored(o, from Object, d Dependency) {
	if o.Status() != StatusPending {
		return
	}
	if e, ok := d.(Entry); ok {
		// members keep running when a sibling fails after the group entered
		if grp, ok := g.objects[string(e)].(*Group); ok && grp.entered {
			return
		}
	}
	g.transition(o, StatusError, &UpstreamError{Object: o.ID(), Upstream: from.ID(), Err: from.Err()})
}

func (g *Graph) conflict(o Object, alt AnyOf) {
	var completed []string
	for _, id := range alt {
		if g.status(id) == StatusComplete {
			completed = append(completed, id)
		}
	}
	err := &ConflictingAlternativesError{Object: o.ID(), Completed: completed}
	g.log.Error("Conflicting alternatives completed", "object_id", o.ID(), "completed", completed)

	g.transition(o, StatusError, err)
	g.fatal = err
	g.settle(Outcome{Reason: ReasonError, Err: err})
}

// activate evaluates an object that was created after its dependencies may
// already have settled.
func (g *Graph) activate(o Object) {
	if o.Status() != StatusPending {
		return
	}
	for _, d := range o.base().deps {
		for _, id := range d.IDs() {
			if dep, ok := g.objects[id]; ok && dep.Status() == StatusError {
				g.dependencyErrored(o, dep, d)
				return
			}
		}
	}
	if g.tryReject(o) {
		return
	}
	if g.ready(o) {
		g.launch(o)
	}
}

func (g *Graph) launch(o Object) {
	switch v := o.(type) {
	case *Node:
		g.executeNode(v)
	case *Edge:
		g.executeEdge(v)
	case *Group:
		g.executeGroup(v)
	}
}

func (g *Graph) executeNode(n *Node) {
	if !g.transition(n, StatusExecuting, nil) || g.halted() {
		return
	}

	in := g.inputs(n)
	gen, ctx, env := g.gen, g.ctx, g.env
	g.inflight++

	go func() {
		res, err := runOp(ctx, env, n, in)

		g.mu.Lock()
		if gen != g.gen {
			g.mu.Unlock()
			return
		}
		g.inflight--
		if !g.halted() && !g.settled {
			if err != nil {
				g.log.Warn("Node failed", "object_id", n.id, "error", err.Error())
				g.transition(n, StatusError, err)
			} else {
				n.output, n.routes = res.Output, res.Routes
				g.transition(n, StatusComplete, nil)
			}
			g.maybeSettle()
		}
		g.unlockAndFire()
	}()
}

func runOp(ctx context.Context, env Env, n *Node, in Inputs) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Object: n.id, Value: r}
		}
	}()

	op := n.op
	if op == nil {
		op = InputOp{}
	}
	res, err = op.run(ctx, env, in)
	if err != nil {
		err = fmt.Errorf("%s node %s: %w", op.Name(), n.id, err)
	}
	return res, err
}

func (g *Graph) executeEdge(e *Edge) {
	payload, ok := g.edgePayload(e)
	if !ok {
		// the source did not route anything along this edge
		g.transition(e, StatusRejected, nil)
		return
	}
	if !g.transition(e, StatusExecuting, nil) || g.halted() {
		return
	}
	e.payload = payload
	g.transition(e, StatusComplete, nil)
}

func (g *Graph) executeGroup(grp *Group) {
	n := 1
	switch grp.loop {
	case LoopRepeat:
		n = grp.maxLoops
	case LoopForEach:
		grp.items = g.collection(grp)
		n = len(grp.items)
	}
	if n < 1 {
		g.log.Debug("Loop has nothing to iterate", "object_id", grp.id)
		g.transition(grp, StatusRejected, nil)
		return
	}

	clones := g.expand(grp, n)
	grp.entered = true
	if !g.transition(grp, StatusExecuting, nil) {
		return
	}
	for _, c := range clones {
		if g.halted() {
			return
		}
		g.activate(c)
	}
	g.checkGroupDone(grp)
}

func (g *Graph) memberUpdated(grp *Group, m Object, s Status) {
	if grp.Status() != StatusExecuting {
		return
	}
	switch s {
	case StatusError:
		g.transition(grp, StatusError, &IterationError{
			Group:     grp.id,
			Member:    m.ID(),
			Iteration: m.base().iters[grp.origin],
			Err:       m.Err(),
		})
	case StatusComplete, StatusRejected:
		g.checkGroupDone(grp)
	}
}

func (g *Graph) checkGroupDone(grp *Group) {
	if grp.Status() != StatusExecuting {
		return
	}
	for _, id := range grp.watch {
		if !g.status(id).Terminal() {
			return
		}
	}
	g.transition(grp, StatusComplete, nil)
}

// collection gathers the ForEach items from the completed data edges that
// feed the group.
func (g *Graph) collection(grp *Group) []string {
	var items []string
	for _, ref := range grp.in {
		e, ok := g.objects[ref.ID].(*Edge)
		if !ok || e.typ != EdgeData || e.Status() != StatusComplete || !e.feeds(grp.id) {
			continue
		}
		if len(e.payload.Items) > 1 {
			items = append(items, e.payload.Items...)
			continue
		}
		items = append(items, util.SplitItems(e.payload.Text)...)
	}
	return items
}

// inputs folds the completed incoming edges of n and the bindings of its
// enclosing loops.
func (g *Graph) inputs(n *Node) Inputs {
	in := Inputs{NodeID: n.id, Text: n.text, Values: make(map[string]string)}

	for i := len(n.groups) - 1; i >= 0; i-- {
		grp, ok := g.objects[n.groups[i]].(*Group)
		if !ok || !grp.isLoop() {
			continue
		}
		iter := n.iters[grp.origin]
		in.Values["iteration"] = strconv.Itoa(iter)
		if grp.loop == LoopForEach && iter < len(grp.items) {
			in.Values["item"] = grp.items[iter]
			in.Values["index"] = strconv.Itoa(iter)
		}
	}

	for _, ref := range n.in {
		e, ok := g.objects[ref.ID].(*Edge)
		if !ok || e.Status() != StatusComplete || !e.feeds(n.id) {
			continue
		}
		p := e.payload.Clone()
		switch e.typ {
		case EdgeSystem:
			in.System = append(in.System, p.Text)
		case EdgeLog:
			if len(p.Transcript) > 0 {
				in.Log = append(in.Log, p.Transcript.String())
			} else {
				in.Log = append(in.Log, p.Text)
			}
		default:
			in.Positional = append(in.Positional, p.Text)
			if e.label != "" {
				in.Values[e.label] = p.Text
			}
			for k, v := range p.Values {
				if _, ok := in.Values[k]; !ok {
					in.Values[k] = v
				}
			}
			if len(p.Transcript) > 0 {
				in.Transcript = p.Transcript
			}
		}
	}

	for _, ref := range n.out {
		if e, ok := g.objects[ref.ID].(*Edge); ok {
			in.Outgoing = append(in.Outgoing, Route{EdgeID: e.id, Label: e.label})
		}
	}
	return in
}

// edgePayload computes what e carries. Edges leaving groups collect every
// iteration's value of their source.
func (g *Graph) edgePayload(e *Edge) (Payload, bool) {
	if len(e.crossingOut) == 0 {
		return g.outputFor(e.source, e)
	}

	var (
		items []string
		last  Payload
		found bool
	)
	for _, src := range g.lineage(e) {
		p, ok := g.outputFor(src.ID(), e)
		if !ok {
			continue
		}
		items = append(items, p.Text)
		last, found = p, true
	}
	if !found {
		return Payload{}, false
	}
	last.Items = items
	return last, true
}

// outputFor returns what source sends along e. Routes are keyed by the ids
// the source knows, so clones of e fall back to their ancestors' ids.
func (g *Graph) outputFor(source string, e *Edge) (Payload, bool) {
	switch src := g.objects[source].(type) {
	case *Node:
		if src.Status() != StatusComplete {
			return Payload{}, false
		}
		for id := e.id; id != ""; {
			if p, ok := src.outputFor(id); ok {
				return p, true
			}
			anc, ok := g.objects[id]
			if !ok {
				break
			}
			id = anc.base().parent
		}
		return Payload{}, false
	case *Group:
		return Payload{}, src.Status() == StatusComplete
	}
	return Payload{}, false
}

// lineage returns the source of e together with every clone of it made by
// the groups e leaves, ordered by iteration from the outermost group in.
func (g *Graph) lineage(e *Edge) []Object {
	crossed := make(map[string]bool, len(e.crossingOut))
	keys := make([]string, 0, len(e.crossingOut))
	for i := len(e.crossingOut) - 1; i >= 0; i-- {
		origin := g.originOf(e.crossingOut[i])
		crossed[origin] = true
		keys = append(keys, origin)
	}

	var out []Object
	var walk func(id string)
	walk = func(id string) {
		o, ok := g.objects[id]
		if !ok {
			return
		}
		out = append(out, o)
		for _, c := range g.children[id] {
			if crossed[g.originOf(g.objects[c].base().clonedBy)] {
				walk(c)
			}
		}
	}
	walk(e.source)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].base(), out[j].base()
		for _, k := range keys {
			if a.iters[k] != b.iters[k] {
				return a.iters[k] < b.iters[k]
			}
		}
		return false
	})
	return out
}
