// Package canvas turns JSON Canvas 1.0 documents into executable graphs.
//
// Parse decodes a document; Hydrate types every canvas element and
// assembles the result:
//
//   - text nodes whose first line is a directive become the matching node
//     (/llm [model], /choose, /distribute, /format, /output [path]); other
//     text nodes are inputs
//   - file nodes read a note when nothing points at them and write one
//     otherwise
//   - group labels "repeat N" and "foreach" make loops; other groups only
//     scope their members
//   - edges labelled "system" or "log" carry system prompts and
//     transcripts; every other edge carries data under its label
//
// Incoming data edges that share a label form one alternative set, so
// branches of a choose node can merge into a single slot.
package canvas
