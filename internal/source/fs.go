package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/alvmarrod/tree-exporter/internal/tree"
)

// FS exports a local directory tree. Container and leaf ids are absolute
// paths; entries are listed in name order.
type FS struct {
	root   string
	filter *Filter
}

// NewFS creates a source rooted at dir
func NewFS(dir string, filter *Filter) (*FS, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	return &FS{root: root, filter: filter}, nil
}

// RootID is the id of the root container
func (s *FS) RootID() string {
	return s.root
}

// Resolve implements tree.Source
func (s *FS) Resolve(ctx context.Context, id string) (*tree.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.contains(id) {
		return nil, &tree.ResolutionError{ID: id, Err: fmt.Errorf("outside of root %s", s.root)}
	}

	entries, err := os.ReadDir(id)
	if err != nil {
		return nil, &tree.ResolutionError{ID: id, Err: err}
	}

	c := &tree.Container{
		ID:   id,
		Name: displayName(id),
		Link: fileURL(id),
	}
	for _, entry := range entries {
		name := entry.Name()
		if s.filter.IsExcluded(name) {
			continue
		}
		path := filepath.Join(id, name)

		if entry.IsDir() {
			c.Subcontainers = append(c.Subcontainers, tree.Ref{ID: path, Name: name})
			continue
		}

		leaf := tree.Leaf{
			ID:       path,
			Name:     name,
			MimeType: mimeOf(name),
			Link:     fileURL(path),
		}
		// Entries removed since ReadDir keep their name only
		if info, err := entry.Info(); err == nil {
			leaf.ModifiedAt = info.ModTime()
			leaf.ModifiedBy = ownerOf(info)
		}
		c.Leaves = append(c.Leaves, leaf)
	}
	return c, nil
}

// Subparts implements tree.Source for xlsx workbooks
func (s *FS) Subparts(ctx context.Context, leaf tree.Leaf) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(leaf.ID)
	if err != nil {
		return nil, &tree.ResolutionError{ID: leaf.ID, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &tree.ResolutionError{ID: leaf.ID, Err: err}
	}
	names, err := SheetNames(f, info.Size())
	if err != nil {
		return nil, &tree.ResolutionError{ID: leaf.ID, Err: err}
	}
	return names, nil
}

func (s *FS) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func displayName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return path
	}
	return name
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
