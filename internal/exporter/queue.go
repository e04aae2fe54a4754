package exporter

import "github.com/alvmarrod/tree-exporter/internal/storage"

// Deque is the traversal work-list. The front is the next entry to expand.
// It is owned by a single batch and needs no locking.
type Deque struct {
	items []storage.QueueEntry
}

// NewDeque creates a deque holding a copy of entries, front first
func NewDeque(entries []storage.QueueEntry) *Deque {
	items := make([]storage.QueueEntry, len(entries))
	copy(items, entries)
	return &Deque{items: items}
}

// PushFront inserts entries ahead of everything queued, keeping their relative
// order: entries[0] becomes the new front.
func (d *Deque) PushFront(entries ...storage.QueueEntry) {
	if len(entries) == 0 {
		return
	}
	items := make([]storage.QueueEntry, 0, len(entries)+len(d.items))
	items = append(items, entries...)
	d.items = append(items, d.items...)
}

// PushBack appends entries behind everything queued
func (d *Deque) PushBack(entries ...storage.QueueEntry) {
	d.items = append(d.items, entries...)
}

// PopFront removes and returns the front entry
// Returns (entry, true) if successful, (empty, false) if the deque is empty
func (d *Deque) PopFront() (storage.QueueEntry, bool) {
	if len(d.items) == 0 {
		return storage.QueueEntry{}, false
	}
	entry := d.items[0]
	d.items = d.items[1:]
	return entry, true
}

// PopBack removes and returns the back entry
func (d *Deque) PopBack() (storage.QueueEntry, bool) {
	if len(d.items) == 0 {
		return storage.QueueEntry{}, false
	}
	last := len(d.items) - 1
	entry := d.items[last]
	d.items = d.items[:last]
	return entry, true
}

// IsEmpty returns true if the deque has no items
func (d *Deque) IsEmpty() bool {
	return len(d.items) == 0
}

// Size returns the current number of items in the deque
func (d *Deque) Size() int {
	return len(d.items)
}

// Entries returns a snapshot of the queued entries, front first.
// Used for persisting the queue into the checkpoint.
func (d *Deque) Entries() []storage.QueueEntry {
	entries := make([]storage.QueueEntry, len(d.items))
	copy(entries, d.items)
	return entries
}
