package canvas

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/canvasmesh/graph"
)

// Hydrate builds and assembles the graph described by doc.
func Hydrate(doc *Document) (*graph.Graph, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	incoming := make(map[string]int, len(doc.Nodes))
	for _, e := range doc.Edges {
		incoming[e.ToNode]++
	}

	g := graph.New()
	for _, n := range doc.Nodes {
		obj, err := hydrateNode(n, incoming[n.ID])
		if err != nil {
			return nil, err
		}
		if err := g.Add(obj); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.Edges {
		typ, label := EdgeKind(e.Label)
		if err := g.Add(graph.NewEdge(e.ID, e.FromNode, e.ToNode, typ, label)); err != nil {
			return nil, err
		}
	}

	if err := g.Assemble(); err != nil {
		return nil, err
	}
	return g, nil
}

func hydrateNode(n Node, incoming int) (graph.Object, error) {
	rect := graph.Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}

	switch n.Type {
	case NodeGroup:
		loop, count, err := GroupKind(n.Label)
		if err != nil {
			return nil, fmt.Errorf("%w: group %s: %v", ErrInvalidDocument, n.ID, err)
		}
		return graph.NewGroup(n.ID, n.Label, loop, count, rect), nil
	case NodeFile:
		if incoming > 0 {
			return graph.NewNode(n.ID, "", graph.OutputOp{Path: n.File}, rect), nil
		}
		return graph.NewNode(n.ID, "", graph.ReferenceOp{Path: n.File}, rect), nil
	case NodeLink:
		return graph.NewNode(n.ID, n.URL, graph.InputOp{}, rect), nil
	default:
		op, text := TextOp(n.Text)
		return graph.NewNode(n.ID, text, op, rect), nil
	}
}

// TextOp decides the unit of work of a text node from the directive on its
// first line and returns the text that remains for it.
func TextOp(text string) (graph.Op, string) {
	first, rest, _ := strings.Cut(text, "\n")
	fields := strings.Fields(first)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return graph.InputOp{}, text
	}

	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(fields[0]) {
	case "/llm":
		return graph.CompletionOp{Model: arg}, rest
	case "/choose":
		return graph.ChooseOp{}, rest
	case "/distribute":
		return graph.DistributeOp{}, rest
	case "/format":
		return graph.FormatOp{}, rest
	case "/output":
		return graph.OutputOp{Path: arg}, rest
	default:
		return graph.InputOp{}, text
	}
}

// GroupKind parses a group label: "repeat N", "foreach" or anything else
// for a plain group.
func GroupKind(label string) (graph.LoopKind, int, error) {
	fields := strings.Fields(strings.ToLower(label))
	if len(fields) == 0 {
		return graph.LoopBasic, 0, nil
	}
	switch fields[0] {
	case "repeat":
		if len(fields) < 2 {
			return 0, 0, errors.New("repeat needs a count")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid repeat count %q", fields[1])
		}
		return graph.LoopRepeat, n, nil
	case "foreach", "for-each":
		return graph.LoopForEach, 0, nil
	default:
		return graph.LoopBasic, 0, nil
	}
}

// EdgeKind maps an edge label to its edge type. Data edges keep the label
// as the name of the value they carry.
func EdgeKind(label string) (graph.EdgeType, string) {
	label = strings.TrimSpace(label)
	switch strings.ToLower(label) {
	case "system":
		return graph.EdgeSystem, ""
	case "log":
		return graph.EdgeLog, ""
	default:
		return graph.EdgeData, label
	}
}
