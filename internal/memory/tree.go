package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alvmarrod/tree-exporter/internal/tree"
)

// folder is a container held in memory
type folder struct {
	id       string
	name     string
	children []string // subfolder ids, in listing order
	leaves   []tree.Leaf
}

// Tree is an in-memory tree.Source
type Tree struct {
	folders     map[string]*folder
	subparts    map[string][]string
	failFolders map[string]error
	failLeaves  map[string]error
	resolves    map[string]int
	mu          sync.RWMutex
}

// NewTree creates a tree holding only its root folder
func NewTree(rootID, rootName string) *Tree {
	t := &Tree{
		folders:     make(map[string]*folder),
		subparts:    make(map[string][]string),
		failFolders: make(map[string]error),
		failLeaves:  make(map[string]error),
		resolves:    make(map[string]int),
	}
	t.folders[rootID] = &folder{id: rootID, name: rootName}
	return t
}

// AddFolder creates a folder under parentID
func (t *Tree) AddFolder(parentID, id, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, exists := t.folders[parentID]
	if !exists {
		return fmt.Errorf("parent folder %s not found", parentID)
	}
	if _, exists := t.folders[id]; exists {
		return fmt.Errorf("folder %s already exists", id)
	}

	t.folders[id] = &folder{id: id, name: name}
	parent.children = append(parent.children, id)
	return nil
}

// AddLeaf appends a leaf to the listing of parentID
func (t *Tree) AddLeaf(parentID string, leaf tree.Leaf) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, exists := t.folders[parentID]
	if !exists {
		return fmt.Errorf("parent folder %s not found", parentID)
	}
	parent.leaves = append(parent.leaves, leaf)
	return nil
}

// SetSubparts sets the sub-part names returned for the leaf with id leafID
func (t *Tree) SetSubparts(leafID string, parts ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subparts[leafID] = append([]string(nil), parts...)
}

// FailFolder makes resolving id fail with err
func (t *Tree) FailFolder(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFolders[id] = err
}

// FailSubparts makes enumerating the sub-parts of leafID fail with err
func (t *Tree) FailSubparts(leafID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failLeaves[leafID] = err
}

// Resolves returns how many times id was resolved
func (t *Tree) Resolves(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolves[id]
}

// Resolve implements tree.Source
func (t *Tree) Resolve(_ context.Context, id string) (*tree.Container, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resolves[id]++
	if err, failed := t.failFolders[id]; failed {
		return nil, &tree.ResolutionError{ID: id, Err: err}
	}
	f, exists := t.folders[id]
	if !exists {
		return nil, &tree.ResolutionError{ID: id, Err: fmt.Errorf("folder not found")}
	}

	c := &tree.Container{
		ID:     f.id,
		Name:   f.name,
		Link:   "mem://" + f.id,
		Leaves: append([]tree.Leaf(nil), f.leaves...),
	}
	for _, childID := range f.children {
		c.Subcontainers = append(c.Subcontainers, tree.Ref{ID: childID, Name: t.folders[childID].name})
	}
	return c, nil
}

// Subparts implements tree.Source
func (t *Tree) Subparts(_ context.Context, leaf tree.Leaf) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err, failed := t.failLeaves[leaf.ID]; failed {
		return nil, &tree.ResolutionError{ID: leaf.ID, Err: err}
	}
	return append([]string(nil), t.subparts[leaf.ID]...), nil
}
