// Package core provides the foundational types shared by the canvasmesh
// packages:
//
//   - Conversation content (Content, Part, Transcript) exchanged with
//     completion providers and carried along canvas edges
//   - The ContentStore capability used by note reading / writing nodes
//   - ModelLimiter, a per-run cap on completion calls
//   - Identifier helpers
//
// The package keeps execution concerns (the graph kernel, run orchestration)
// out of scope so that providers, stores and the kernel can depend on it
// without cycles.
package core
