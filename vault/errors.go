package vault

import "fmt"

var (
	// ErrNotFound is returned when no note exists at the requested path.
	ErrNotFound = fmt.Errorf("note not found")
	// ErrInvalidPath is returned for absolute paths or paths escaping the vault root.
	ErrInvalidPath = fmt.Errorf("invalid note path")
)
