package graph

import (
	"errors"
	"fmt"

	dgraph "github.com/dominikbraun/graph"
)

// Assemble derives the structure of a hydrated graph from its layout and
// edges: enclosing groups of every vertex, group members, edge crossing
// sets, reflexive edges and the dependency terms of every object.
//
// An edge that closes a cycle is reflexive when its endpoints share the
// same innermost loop group; any other cycle is a CycleError. Edges are
// classified in insertion order.
func (g *Graph) Assemble() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return ErrAlreadyStarted
	}
	if g.assembled {
		return fmt.Errorf("%w: already assembled", ErrInvalidGraph)
	}

	var (
		groups   []*Group
		vertices []*Vertex
		edges    []*Edge
	)
	byID := make(map[string]*Vertex)
	for _, id := range g.order {
		switch o := g.objects[id].(type) {
		case *Group:
			if o.loop == LoopRepeat && o.maxLoops < 1 {
				return fmt.Errorf("%w: repeat group %s needs at least one loop", ErrInvalidGraph, o.id)
			}
			groups = append(groups, o)
			vertices = append(vertices, &o.Vertex)
			byID[id] = &o.Vertex
		case *Node:
			vertices = append(vertices, &o.Vertex)
			byID[id] = &o.Vertex
		case *Edge:
			edges = append(edges, o)
		}
	}

	for i, a := range groups {
		for _, b := range groups[i+1:] {
			if Overlaps(a.rect, b.rect) || a.rect == b.rect {
				return &OverlapError{A: a.id, B: b.id}
			}
		}
	}

	for _, v := range vertices {
		v.SetGroups(groups)
		v.in, v.out = nil, nil
	}
	groupByID := make(map[string]*Group, len(groups))
	for _, grp := range groups {
		grp.members = nil
		groupByID[grp.id] = grp
	}
	for _, v := range vertices {
		if len(v.groups) > 0 {
			parent := groupByID[v.groups[0]]
			parent.members = append(parent.members, v.id)
		}
	}

	structure, err := g.structure(groups, vertices, groupByID)
	if err != nil {
		return err
	}

	for _, e := range edges {
		src, ok := byID[e.source]
		if !ok {
			return fmt.Errorf("%w: edge %s source %s", ErrUnknownObject, e.id, e.source)
		}
		tgt, ok := byID[e.target]
		if !ok {
			return fmt.Errorf("%w: edge %s target %s", ErrUnknownObject, e.id, e.target)
		}
		if src.InGroup(tgt.id) || tgt.InGroup(src.id) {
			return fmt.Errorf("%w: edge %s connects group and member", ErrInvalidGraph, e.id)
		}

		e.crossingOut = difference(src.groups, tgt.groups)
		e.crossingIn = difference(tgt.groups, src.groups)

		from := exitKey(src, groupByID)
		if n := len(e.crossingOut); n > 0 {
			from = exitKey(&groupByID[e.crossingOut[n-1]].Vertex, groupByID)
		}
		to := enterKey(tgt, groupByID)

		err := dgraph.ErrEdgeCreatesCycle
		if from != to {
			err = structure.AddEdge(from, to)
		}
		switch {
		case err == nil, errors.Is(err, dgraph.ErrEdgeAlreadyExists):
		case errors.Is(err, dgraph.ErrEdgeCreatesCycle):
			loop := innermostLoop(src, groupByID)
			if loop == "" || loop != innermostLoop(tgt, groupByID) {
				return &CycleError{Edge: e.id, Source: e.source, Target: e.target}
			}
			e.reflexive = true
			e.loop = loop
		default:
			return fmt.Errorf("%w: edge %s: %v", ErrInvalidGraph, e.id, err)
		}

		src.out = append(src.out, EdgeRef{ID: e.id, Reflexive: e.reflexive})
		tgt.in = append(tgt.in, EdgeRef{ID: e.id, Reflexive: e.reflexive})
	}

	for _, e := range edges {
		e.deps = nil
		if err := e.AddDependency(Single(e.upstream())); err != nil {
			return err
		}
	}
	for _, v := range vertices {
		if err := g.vertexDependencies(v); err != nil {
			return err
		}
	}

	g.assembled = true
	return nil
}

// structure builds the acyclic dependency skeleton: every group is an
// entry and an exit vertex around its members.
func (g *Graph) structure(groups []*Group, vertices []*Vertex, groupByID map[string]*Group) (dgraph.Graph[string, string], error) {
	s := dgraph.New(dgraph.StringHash, dgraph.Directed(), dgraph.PreventCycles())
	for _, v := range vertices {
		if _, isGroup := groupByID[v.id]; isGroup {
			continue
		}
		if err := s.AddVertex(v.id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
		}
	}
	for _, grp := range groups {
		if err := s.AddVertex(grp.id + entrySuffix); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
		}
		if err := s.AddVertex(grp.id + exitSuffix); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
		}
	}
	for _, grp := range groups {
		if err := s.AddEdge(grp.id+entrySuffix, grp.id+exitSuffix); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
		}
		for _, m := range grp.members {
			mv := vertexOf(g.objects[m])
			if err := s.AddEdge(grp.id+entrySuffix, enterKey(mv, groupByID)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
			}
			if err := s.AddEdge(exitKey(mv, groupByID), grp.id+exitSuffix); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
			}
		}
	}
	return s, nil
}

// vertexDependencies sets the terms of v: entry into its innermost group,
// then one term per non-reflexive incoming edge. Labeled data edges that
// share a label merge into one alternative set.
func (g *Graph) vertexDependencies(v *Vertex) error {
	v.deps = nil
	if len(v.groups) > 0 {
		if err := v.AddDependency(Entry(v.groups[0])); err != nil {
			return err
		}
	}

	byLabel := make(map[string][]string)
	var labels []string
	for _, ref := range v.in {
		if ref.Reflexive {
			continue
		}
		e := g.objects[ref.ID].(*Edge)
		if e.typ == EdgeData && e.label != "" {
			if _, seen := byLabel[e.label]; !seen {
				labels = append(labels, e.label)
			}
			byLabel[e.label] = append(byLabel[e.label], e.id)
			continue
		}
		if err := v.AddDependency(Single(e.id)); err != nil {
			return err
		}
	}
	for _, label := range labels {
		ids := byLabel[label]
		var d Dependency = Single(ids[0])
		if len(ids) > 1 {
			d = AnyOf(ids)
		}
		if err := v.AddDependency(d); err != nil {
			return err
		}
	}
	return nil
}

const (
	entrySuffix = "\x00entry"
	exitSuffix  = "\x00exit"
)

func enterKey(v *Vertex, groups map[string]*Group) string {
	if _, ok := groups[v.id]; ok {
		return v.id + entrySuffix
	}
	return v.id
}

func exitKey(v *Vertex, groups map[string]*Group) string {
	if _, ok := groups[v.id]; ok {
		return v.id + exitSuffix
	}
	return v.id
}

func innermostLoop(v *Vertex, groups map[string]*Group) string {
	for _, id := range v.groups {
		if grp := groups[id]; grp != nil && grp.isLoop() {
			return id
		}
	}
	return ""
}

// difference returns the ids of a that are not in b, keeping a's order.
func difference(a, b []string) []string {
	var out []string
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			out = append(out, x)
		}
	}
	return out
}
