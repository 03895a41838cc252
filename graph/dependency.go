package graph

// Dependency is one term of an object's dependency list.
//
// The variants are Single, AnyOf and Entry. Entry is created by assembly and
// binds a vertex to its innermost enclosing group.
type Dependency interface {
	// IDs returns the referenced object ids in declaration order.
	IDs() []string
	isDependency()
}

// Single requires the referenced object to complete.
type Single string

// AnyOf is an alternative set: exactly one member is expected to complete.
// A second completed member is a ConflictingAlternativesError.
type AnyOf []string

// Entry is satisfied once the referenced group has started executing.
type Entry string

func (s Single) IDs() []string { return []string{string(s)} }
func (a AnyOf) IDs() []string  { return append([]string(nil), a...) }
func (e Entry) IDs() []string  { return []string{string(e)} }

func (Single) isDependency() {}
func (AnyOf) isDependency()  {}
func (Entry) isDependency()  {}

type statusFunc func(id string) Status

func satisfied(d Dependency, st statusFunc) bool {
	switch d := d.(type) {
	case Single:
		return st(string(d)) == StatusComplete
	case AnyOf:
		return countComplete(d, st) == 1
	case Entry:
		s := st(string(d))
		return s == StatusExecuting || s == StatusComplete
	}
	return false
}

func fullyRejected(d Dependency, st statusFunc) bool {
	switch d := d.(type) {
	case Single:
		return st(string(d)) == StatusRejected
	case AnyOf:
		for _, id := range d {
			if st(id) != StatusRejected {
				return false
			}
		}
		return len(d) > 0
	case Entry:
		return st(string(d)) == StatusRejected
	}
	return false
}

func countComplete(ids []string, st statusFunc) int {
	n := 0
	for _, id := range ids {
		if st(id) == StatusComplete {
			n++
		}
	}
	return n
}

// remap rewrites the ids of d; ids missing from m are kept.
func remap(d Dependency, m map[string]string) Dependency {
	switch d := d.(type) {
	case Single:
		return Single(mapID(m, string(d)))
	case AnyOf:
		return AnyOf(remapIDs(d, m))
	case Entry:
		return Entry(mapID(m, string(d)))
	}
	return d
}

func contains(d Dependency, id string) bool {
	for _, x := range d.IDs() {
		if x == id {
			return true
		}
	}
	return false
}
