package graph

// expand prepares n iterations of grp. Iteration 0 uses the hydrated
// members; iterations 1..n-1 get clones of the member closure and of every
// edge that ends inside it. Reflexive edges of grp are chained so that
// iteration i feeds iteration i+1. The returned clones are registered and
// listening but not yet activated.
func (g *Graph) expand(grp *Group, n int) []Object {
	var closure []Object
	inside := make(map[string]bool)
	for _, id := range g.order {
		o := g.objects[id]
		if v := vertexOf(o); v != nil && v.InGroup(grp.id) {
			closure = append(closure, o)
			inside[id] = true
		}
	}

	var edges []*Edge
	for _, id := range g.order {
		if e, ok := g.objects[id].(*Edge); ok && inside[e.target] {
			edges = append(edges, e)
		}
	}

	grp.watch = grp.watch[:0]
	for _, o := range closure {
		grp.watch = append(grp.watch, o.ID())
	}

	var created []Object
	for i := 1; i < n; i++ {
		idMap := make(map[string]string, len(closure)+len(edges))
		for _, o := range closure {
			idMap[o.ID()] = cloneID(o.ID(), grp.id, i)
		}
		for _, e := range edges {
			idMap[e.id] = cloneID(e.id, grp.id, i)
		}

		for _, o := range closure {
			c := g.cloneVertex(o, idMap, grp, i)
			g.insert(c)
			created = append(created, c)
			grp.watch = append(grp.watch, c.ID())
		}
		for _, e := range edges {
			c := g.cloneEdge(e, idMap, grp, i)
			g.insert(c)
			created = append(created, c)
		}
	}

	for _, e := range edges {
		if !e.reflexive || e.loop != grp.id {
			continue
		}
		prev := e
		for i := 1; i < n; i++ {
			consumer := vertexOf(g.objects[cloneID(e.target, grp.id, i)])
			prev.carry = append(prev.carry, consumer.id)
			// the id is fresh, so the term cannot collide
			_ = consumer.AddDependency(Single(prev.id))
			consumer.in = append(consumer.in, EdgeRef{ID: prev.id, Reflexive: true})
			prev = g.objects[cloneID(e.id, grp.id, i)].(*Edge)
		}
	}

	for _, c := range created {
		// dependencies of a clone resolve inside the arena by construction
		_ = g.listen(c)
	}
	for _, id := range grp.watch {
		g.objects[id].base().addListener(grp.id)
	}
	grp.iterations = n

	if len(created) > 0 {
		g.log.Debug("Loop expanded", "object_id", grp.id, "iterations", n, "clones", len(created))
	}
	return created
}

func (g *Graph) cloneVertex(o Object, idMap map[string]string, grp *Group, i int) Object {
	switch v := o.(type) {
	case *Node:
		c := NewNode(idMap[v.id], v.text, v.op, v.rect)
		g.copyVertex(&c.Vertex, &v.Vertex, idMap, grp, i)
		return c
	case *Group:
		c := NewGroup(idMap[v.id], v.text, v.loop, v.maxLoops, v.rect)
		g.copyVertex(&c.Vertex, &v.Vertex, idMap, grp, i)
		c.members = remapIDs(v.members, idMap)
		return c
	}
	return nil
}

func (g *Graph) copyVertex(dst, src *Vertex, idMap map[string]string, grp *Group, i int) {
	dst.copyBase(&src.Base, idMap, grp.id, grp.origin, i)
	dst.in = remapRefs(src.in, idMap)
	dst.out = remapRefs(src.out, idMap)
	dst.groups = remapIDs(src.groups, idMap)

	// a value carried in by an enclosing loop reaches every inner iteration
	for _, r := range src.in {
		if _, cloned := idMap[r.ID]; cloned || !r.Reflexive {
			continue
		}
		if e, ok := g.objects[r.ID].(*Edge); ok && e.feeds(src.id) {
			e.carry = append(e.carry, dst.id)
		}
	}
}

func (g *Graph) cloneEdge(e *Edge, idMap map[string]string, grp *Group, i int) *Edge {
	c := NewEdge(idMap[e.id], mapID(idMap, e.source), mapID(idMap, e.target), e.typ, e.label)
	c.copyBase(&e.Base, idMap, grp.id, grp.origin, i)
	c.reflexive = e.reflexive
	c.loop = mapID(idMap, e.loop)
	c.crossingIn = remapIDs(e.crossingIn, idMap)
	c.crossingOut = remapIDs(e.crossingOut, idMap)
	return c
}
