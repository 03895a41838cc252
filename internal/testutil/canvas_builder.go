package testutil

import (
	"encoding/json"
	"fmt"
)

type canvasNode struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text,omitempty"`
	File   string  `json:"file,omitempty"`
	URL    string  `json:"url,omitempty"`
	Label  string  `json:"label,omitempty"`
}

type canvasEdge struct {
	ID       string `json:"id"`
	FromNode string `json:"fromNode"`
	ToNode   string `json:"toNode"`
	Label    string `json:"label,omitempty"`
}

// CanvasBuilder provides a fluent helper for writing JSON Canvas documents
// in tests.
// Example:
//
//	doc := NewCanvasBuilder().
//	    Text("q", "What is Go?", 0, 0).
//	    Text("a", "/llm", 0, 100).
//	    Edge("q", "a", "").
//	    JSON()
//
// Nodes get a 100x50 box at the given position; edge ids are generated
// as "from->to" unless set with EdgeID.
type CanvasBuilder struct {
	nodes []canvasNode
	edges []canvasEdge
}

// NewCanvasBuilder creates an empty builder.
func NewCanvasBuilder() *CanvasBuilder { return &CanvasBuilder{} }

// Text adds a text node (chainable).
func (b *CanvasBuilder) Text(id, text string, x, y float64) *CanvasBuilder {
	b.nodes = append(b.nodes, canvasNode{ID: id, Type: "text", X: x, Y: y, Width: 100, Height: 50, Text: text})
	return b
}

// File adds a file node pointing at path (chainable).
func (b *CanvasBuilder) File(id, path string, x, y float64) *CanvasBuilder {
	b.nodes = append(b.nodes, canvasNode{ID: id, Type: "file", X: x, Y: y, Width: 100, Height: 50, File: path})
	return b
}

// Link adds a link node (chainable).
func (b *CanvasBuilder) Link(id, url string, x, y float64) *CanvasBuilder {
	b.nodes = append(b.nodes, canvasNode{ID: id, Type: "link", X: x, Y: y, Width: 100, Height: 50, URL: url})
	return b
}

// Group adds a group box (chainable).
func (b *CanvasBuilder) Group(id, label string, x, y, w, h float64) *CanvasBuilder {
	b.nodes = append(b.nodes, canvasNode{ID: id, Type: "group", X: x, Y: y, Width: w, Height: h, Label: label})
	return b
}

// Edge connects two nodes with a generated id (chainable).
func (b *CanvasBuilder) Edge(from, to, label string) *CanvasBuilder {
	return b.EdgeID(fmt.Sprintf("%s->%s", from, to), from, to, label)
}

// EdgeID connects two nodes with an explicit id (chainable).
func (b *CanvasBuilder) EdgeID(id, from, to, label string) *CanvasBuilder {
	b.edges = append(b.edges, canvasEdge{ID: id, FromNode: from, ToNode: to, Label: label})
	return b
}

// JSON renders the document.
func (b *CanvasBuilder) JSON() []byte {
	doc := struct {
		Nodes []canvasNode `json:"nodes"`
		Edges []canvasEdge `json:"edges"`
	}{Nodes: b.nodes, Edges: b.edges}
	if doc.Nodes == nil {
		doc.Nodes = []canvasNode{}
	}
	if doc.Edges == nil {
		doc.Edges = []canvasEdge{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err) // plain structs always marshal
	}
	return data
}
