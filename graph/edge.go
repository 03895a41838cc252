package graph

// EdgeType decides how an edge's payload is folded into its target.
type EdgeType int

const (
	// EdgeData feeds the payload as a positional input and, when labeled,
	// as the named template value.
	EdgeData EdgeType = iota
	// EdgeSystem feeds the payload as a system instruction.
	EdgeSystem
	// EdgeLog appends the source transcript to the target's log.
	EdgeLog
)

func (t EdgeType) String() string {
	switch t {
	case EdgeSystem:
		return "system"
	case EdgeLog:
		return "log"
	default:
		return "data"
	}
}

// Edge connects two vertices and transports a Payload.
type Edge struct {
	Base
	source string
	target string
	label  string
	typ    EdgeType

	reflexive   bool
	loop        string
	crossingIn  []string
	crossingOut []string
	// carry lists the next-iteration vertices a reflexive edge feeds.
	carry []string

	payload Payload
}

// NewEdge creates an edge from source to target.
func NewEdge(id, source, target string, typ EdgeType, label string) *Edge {
	e := &Edge{source: source, target: target, label: label, typ: typ}
	e.init(id, label, KindEdge)
	return e
}

func (e *Edge) Source() string { return e.source }
func (e *Edge) Target() string { return e.target }
func (e *Edge) Label() string  { return e.label }
func (e *Edge) Type() EdgeType { return e.typ }

// Reflexive reports whether the edge runs backwards inside a loop group.
func (e *Edge) Reflexive() bool { return e.reflexive }

// CrossingIn returns the groups the edge enters, innermost first.
func (e *Edge) CrossingIn() []string { return append([]string(nil), e.crossingIn...) }

// CrossingOut returns the groups the edge leaves, innermost first.
func (e *Edge) CrossingOut() []string { return append([]string(nil), e.crossingOut...) }

// Payload returns the value transported by a completed edge. It is safe to
// read once the edge is terminal.
func (e *Edge) Payload() Payload { return e.payload }

// feeds reports whether the payload is delivered to vertex id.
func (e *Edge) feeds(id string) bool {
	if !e.reflexive {
		return e.target == id
	}
	for _, c := range e.carry {
		if c == id {
			return true
		}
	}
	return false
}

// upstream is the object the edge waits for: the outermost group it leaves,
// or its source.
func (e *Edge) upstream() string {
	if n := len(e.crossingOut); n > 0 {
		return e.crossingOut[n-1]
	}
	return e.source
}
