package graph

import "sort"

// EdgeRef points at an incoming or outgoing edge of a vertex.
type EdgeRef struct {
	ID        string
	Reflexive bool
}

// Vertex is the part shared by nodes and groups: geometry, the enclosing
// groups and the edges attached to it.
type Vertex struct {
	Base
	rect   Rect
	in     []EdgeRef
	out    []EdgeRef
	groups []string
}

// Rect returns the vertex's bounding box.
func (v *Vertex) Rect() Rect { return v.rect }

// Incoming returns the edges that end at the vertex.
func (v *Vertex) Incoming() []EdgeRef { return append([]EdgeRef(nil), v.in...) }

// Outgoing returns the edges that start at the vertex.
func (v *Vertex) Outgoing() []EdgeRef { return append([]EdgeRef(nil), v.out...) }

// Groups returns the ids of the enclosing groups, innermost first.
func (v *Vertex) Groups() []string { return append([]string(nil), v.groups...) }

// InGroup reports whether the vertex lies inside the group id.
func (v *Vertex) InGroup(id string) bool {
	for _, g := range v.groups {
		if g == id {
			return true
		}
	}
	return false
}

// SetGroups records every candidate whose rectangle encloses the vertex,
// smallest area first. Candidates of equal area keep their given order.
func (v *Vertex) SetGroups(candidates []*Group) {
	var matches []*Group
	for _, g := range candidates {
		if g.id == v.id {
			continue
		}
		if g.rect.Contains(v.rect) {
			matches = append(matches, g)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].rect.Area() < matches[j].rect.Area()
	})
	v.groups = make([]string, len(matches))
	for i, g := range matches {
		v.groups[i] = g.id
	}
}

func remapRefs(refs []EdgeRef, m map[string]string) []EdgeRef {
	out := make([]EdgeRef, len(refs))
	for i, r := range refs {
		out[i] = EdgeRef{ID: mapID(m, r.ID), Reflexive: r.Reflexive}
	}
	return out
}

func remapIDs(ids []string, m map[string]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = mapID(m, id)
	}
	return out
}

func mapID(m map[string]string, id string) string {
	if v, ok := m[id]; ok {
		return v
	}
	return id
}
