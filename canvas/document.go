package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// NodeType is the JSON Canvas node type.
type NodeType string

const (
	NodeText  NodeType = "text"
	NodeFile  NodeType = "file"
	NodeLink  NodeType = "link"
	NodeGroup NodeType = "group"
)

// Node is a JSON Canvas node. Only the fields a run needs are decoded.
type Node struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Text   string   `json:"text,omitempty"`
	File   string   `json:"file,omitempty"`
	URL    string   `json:"url,omitempty"`
	Label  string   `json:"label,omitempty"`
	Color  string   `json:"color,omitempty"`
}

// Edge is a JSON Canvas edge.
type Edge struct {
	ID       string `json:"id"`
	FromNode string `json:"fromNode"`
	ToNode   string `json:"toNode"`
	FromSide string `json:"fromSide,omitempty"`
	ToSide   string `json:"toSide,omitempty"`
	Label    string `json:"label,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Document is a decoded canvas.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

var (
	// ErrInvalidDocument wraps every structural fault of a canvas document.
	ErrInvalidDocument = errors.New("canvas: invalid document")
)

// Parse decodes and checks a canvas document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and decodes the canvas at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks ids, node types and edge endpoints.
func (d *Document) Validate() error {
	ids := make(map[string]NodeType, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidDocument)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, n.ID)
		}
		switch n.Type {
		case NodeText, NodeFile, NodeLink, NodeGroup:
		default:
			return fmt.Errorf("%w: node %s has unknown type %q", ErrInvalidDocument, n.ID, n.Type)
		}
		ids[n.ID] = n.Type
	}

	edges := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		if e.ID == "" {
			return fmt.Errorf("%w: edge without id", ErrInvalidDocument)
		}
		if _, dup := ids[e.ID]; dup || edges[e.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, e.ID)
		}
		edges[e.ID] = true
		for _, end := range []string{e.FromNode, e.ToNode} {
			if _, ok := ids[end]; !ok {
				return fmt.Errorf("%w: edge %s references unknown node %q", ErrInvalidDocument, e.ID, end)
			}
		}
	}
	return nil
}
