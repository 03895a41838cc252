package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/canvasmesh/core"
)

var (
	_ core.ContentStore = (*FileStore)(nil)
	_ core.NoteReader   = (*FileStore)(nil)
)

// FileStore keeps notes as files below a root directory.
type FileStore struct {
	root string
	mu   sync.Mutex // serializes appends
}

// NewFileStore returns a store rooted at dir. The directory must exist.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault %s: not a directory", dir)
	}
	return &FileStore{root: abs}, nil
}

// Root returns the absolute vault directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) resolve(p string) (string, error) {
	cp, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cp)), nil
}

// Read returns the content of the note file or ErrNotFound.
func (s *FileStore) Read(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadNote returns the note split into front matter and body.
func (s *FileStore) ReadNote(ctx context.Context, p string) (core.Note, error) {
	content, err := s.Read(ctx, p)
	if err != nil {
		return core.Note{}, err
	}
	return ParseNote(p, content)
}

// Write replaces the note file, creating parent directories.
func (s *FileStore) Write(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

// Append adds content to the end of the note file, creating it if needed.
func (s *FileStore) Append(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Exists reports whether the note file exists.
func (s *FileStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
