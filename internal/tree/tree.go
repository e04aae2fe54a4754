// Package tree defines what the exporter needs from a hierarchical source:
// containers that list subcontainers and leaves, and leaves that may hold
// named sub-parts.
package tree

import (
	"context"
	"fmt"
	"time"
)

// Source resolves container ids into their listing.
//
// Listings must be deterministic: a container resolved twice returns the same
// children in the same order. The exporter relies on this to resume a
// partially expanded container from an offset.
type Source interface {
	Resolve(ctx context.Context, id string) (*Container, error)
	Subparts(ctx context.Context, leaf Leaf) ([]string, error)
}

// Ref points at a child container that has not been resolved yet.
type Ref struct {
	ID   string
	Name string
}

// Container is a resolved folder-like node.
type Container struct {
	ID            string
	Name          string
	Link          string
	Subcontainers []Ref
	Leaves        []Leaf
}

// HasSubcontainers reports whether the container lists any child container.
func (c *Container) HasSubcontainers() bool {
	return len(c.Subcontainers) > 0
}

// HasLeaves reports whether the container lists any leaf.
func (c *Container) HasLeaves() bool {
	return len(c.Leaves) > 0
}

// Leaf is a file-like child of a container.
type Leaf struct {
	ID         string
	Name       string
	MimeType   string
	Link       string
	ModifiedAt time.Time
	ModifiedBy string
	// Folder marks listing entries that are containers themselves; they are
	// not exported as leaves.
	Folder bool
}

// ResolutionError reports a node or leaf that could not be read.
type ResolutionError struct {
	ID  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.ID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
