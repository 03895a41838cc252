// Package graph is the execution kernel for canvas documents.
//
// A Graph owns every object of a canvas (nodes, edges and groups) in an
// id-keyed arena. Objects declare ordered dependency terms on each other:
//
//   - Single(id): the referenced object must complete
//   - AnyOf(ids...): exactly one branch of a choice completes
//
// Execution is event driven. Every status transition notifies the listeners
// of the object synchronously, under one timeline lock per graph, and the
// listeners decide whether to execute, wait, reject or fail. There is no
// central scheduler loop. Rejection is a logical short-circuit that spreads
// to dependents whose every path is foreclosed; Error is an execution fault
// that reaches dependents as an UpstreamError.
//
// Groups are laid out spatially: a vertex belongs to every group whose
// rectangle encloses it. Repeat and ForEach groups clone their member
// subgraph once per additional iteration when they start, and reflexive
// edges (back edges inside a loop) carry each iteration's value into the
// next one.
//
// Usage:
//
//	g := graph.New()
//	_ = g.Add(graph.NewNode("in", "hello", graph.InputOp{}, graph.Rect{}))
//	_ = g.Add(graph.NewNode("llm", "", graph.CompletionOp{}, graph.Rect{Y: 200}))
//	_ = g.Add(graph.NewEdge("e1", "in", "llm", graph.EdgeData, "topic"))
//	if err := g.Assemble(); err != nil { ... }
//	err := g.Start(ctx, env, func(o graph.Outcome) { ... })
package graph
