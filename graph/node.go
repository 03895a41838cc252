package graph

import (
	"context"

	"github.com/hupe1980/canvasmesh/core"
)

// Op is the unit of work of a node. The set of operations is closed; see
// ops.go.
type Op interface {
	// Name is the short operation name used in logs and errors.
	Name() string
	run(ctx context.Context, env Env, in Inputs) (Result, error)
}

// Route names an outgoing edge a node may address.
type Route struct {
	EdgeID string
	Label  string
}

// Inputs are the folded payloads of a node's completed incoming edges plus
// the bindings of its enclosing loops.
type Inputs struct {
	NodeID     string
	Text       string
	Values     map[string]string
	Positional []string
	System     []string
	Log        []string
	Transcript core.Transcript
	Outgoing   []Route
}

// Result is the outcome of a unit of work. A nil Routes broadcasts Output on
// every outgoing edge; otherwise only the listed edges carry a value and the
// rest reject.
type Result struct {
	Output Payload
	Routes map[string]Payload
}

// Node is a vertex with a unit of work.
type Node struct {
	Vertex
	op     Op
	output Payload
	routes map[string]Payload
}

// NewNode creates a node running op.
func NewNode(id, text string, op Op, rect Rect) *Node {
	n := &Node{op: op}
	n.init(id, text, KindNode)
	n.rect = rect
	return n
}

// Op returns the node's operation.
func (n *Node) Op() Op { return n.op }

// Output returns the result of a completed node.
func (n *Node) Output() Payload { return n.output }

// outputFor returns what the node sends along edge edgeID.
func (n *Node) outputFor(edgeID string) (Payload, bool) {
	if n.routes == nil {
		return n.output.Clone(), true
	}
	p, ok := n.routes[edgeID]
	return p.Clone(), ok
}
