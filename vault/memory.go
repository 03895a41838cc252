package vault

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/canvasmesh/core"
)

var (
	_ core.ContentStore = (*InMemoryStore)(nil)
	_ core.NoteReader   = (*InMemoryStore)(nil)
)

// InMemoryStore is a trivial in-process ContentStore useful for tests, dry
// runs and examples. Notes live in a map guarded by an RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	notes map[string]string
}

// NewInMemoryStore returns a store seeded with the given notes.
func NewInMemoryStore(seed map[string]string) *InMemoryStore {
	s := &InMemoryStore{notes: make(map[string]string)}
	for p, content := range seed {
		if cp, err := cleanPath(p); err == nil {
			s.notes[cp] = content
		}
	}
	return s
}

// Read returns the full content of the note or ErrNotFound.
func (s *InMemoryStore) Read(_ context.Context, p string) (string, error) {
	cp, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.notes[cp]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

// ReadNote returns the note split into front matter and body.
func (s *InMemoryStore) ReadNote(ctx context.Context, p string) (core.Note, error) {
	content, err := s.Read(ctx, p)
	if err != nil {
		return core.Note{}, err
	}
	return ParseNote(p, content)
}

// Write stores (or overwrites) the note.
func (s *InMemoryStore) Write(_ context.Context, p, content string) error {
	cp, err := cleanPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[cp] = content
	return nil
}

// Append adds content to the end of the note, creating it if needed.
func (s *InMemoryStore) Append(_ context.Context, p, content string) error {
	cp, err := cleanPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[cp] += content
	return nil
}

// Exists reports whether a note is stored at p.
func (s *InMemoryStore) Exists(_ context.Context, p string) (bool, error) {
	cp, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.notes[cp]
	return ok, nil
}

// Paths returns the stored note paths in lexical order.
func (s *InMemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.notes))
	for p := range s.notes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
