package graph

// LoopKind selects how many times a group runs its members.
type LoopKind int

const (
	// LoopBasic runs the members once.
	LoopBasic LoopKind = iota
	// LoopRepeat runs the members MaxLoops times.
	LoopRepeat
	// LoopForEach runs the members once per item of the collection bound by
	// the data edge targeting the group.
	LoopForEach
)

func (k LoopKind) String() string {
	switch k {
	case LoopRepeat:
		return "repeat"
	case LoopForEach:
		return "foreach"
	default:
		return "basic"
	}
}

// Group is a vertex that encloses other vertices. A started loop whose
// members all reject still completes; the rejection shows on the edges
// leaving it.
type Group struct {
	Vertex
	loop     LoopKind
	maxLoops int
	members  []string

	// run state
	iterations int
	items      []string
	watch      []string
	entered    bool
}

// NewGroup creates a group. maxLoops is only used by LoopRepeat.
func NewGroup(id, label string, loop LoopKind, maxLoops int, rect Rect) *Group {
	g := &Group{loop: loop, maxLoops: maxLoops}
	g.init(id, label, KindGroup)
	g.rect = rect
	return g
}

func (g *Group) Loop() LoopKind { return g.loop }
func (g *Group) MaxLoops() int  { return g.maxLoops }

// Members returns the direct members, i.e. vertices whose innermost group
// is g.
func (g *Group) Members() []string { return append([]string(nil), g.members...) }

// Iterations returns the number of iterations released by the last start.
func (g *Group) Iterations() int { return g.iterations }

// Items returns the ForEach collection bound at start.
func (g *Group) Items() []string { return append([]string(nil), g.items...) }

func (g *Group) isLoop() bool { return g.loop != LoopBasic }

func (g *Group) watches(id string) bool {
	for _, w := range g.watch {
		if w == id {
			return true
		}
	}
	return false
}

func (g *Group) resetRun() {
	g.iterations = 0
	g.items = nil
	g.watch = nil
	g.entered = false
}
