package vault

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/canvasmesh/core"
	"gopkg.in/yaml.v3"
)

const frontMatterFence = "---"

// ParseNote splits content into its YAML front matter and body. Content
// without a leading fence is all body.
func ParseNote(p, content string) (core.Note, error) {
	note := core.Note{Path: p, Properties: map[string]any{}, Body: content}

	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontMatterFence+"\n") {
		return note, nil
	}
	rest := normalized[len(frontMatterFence)+1:]

	end := strings.Index(rest, "\n"+frontMatterFence)
	if end < 0 {
		return note, nil
	}
	header := rest[:end]
	body := strings.TrimPrefix(rest[end+len(frontMatterFence)+1:], "\n")

	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &note.Properties); err != nil {
			return core.Note{}, fmt.Errorf("parse front matter of %s: %w", p, err)
		}
	}
	note.Body = body
	return note, nil
}

// FormatNote renders a note with a front matter block when it has
// properties.
func FormatNote(note core.Note) (string, error) {
	if len(note.Properties) == 0 {
		return note.Body, nil
	}
	var buf bytes.Buffer
	buf.WriteString(frontMatterFence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(note.Properties); err != nil {
		return "", fmt.Errorf("encode front matter of %s: %w", note.Path, err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	buf.WriteString(frontMatterFence + "\n")
	buf.WriteString(note.Body)
	return buf.String(), nil
}

// cleanPath normalizes a vault relative path. Notes without an extension
// are markdown files.
func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	p = path.Clean(p)
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if path.Ext(p) == "" {
		p += ".md"
	}
	return p, nil
}
