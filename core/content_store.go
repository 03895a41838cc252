package core

import "context"

// ContentStore defines the read/write capability for note-like content
// consumed by reference and output nodes. Implementations must be safe for
// concurrent use; paths are store-relative and use forward slashes.
type ContentStore interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
	Append(ctx context.Context, path, content string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Note is a markdown document split into its YAML front matter properties
// and its body.
type Note struct {
	Path       string
	Properties map[string]any
	Body       string
}

// NoteReader is implemented by stores that understand front matter. Reference
// nodes prefer it over Read so that note properties become template values.
type NoteReader interface {
	ReadNote(ctx context.Context, path string) (Note, error)
}
