package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alvmarrod/tree-exporter/internal/storage"
)

// Tag records one TagRange call
type Tag struct {
	Start    int
	Count    int
	Category storage.Category
}

// Sink is an in-memory report. Rows are keyed by position so rewriting a
// position overwrites it.
type Sink struct {
	mu         sync.Mutex
	header     []string
	rows       map[int]storage.Row
	tags       []Tag
	status     string
	progress   string
	summary    []storage.SummaryLine
	appends    int
	failAppend bool
}

// NewSink creates an empty sink
func NewSink() *Sink {
	return &Sink{rows: make(map[int]storage.Row)}
}

// Reset implements exporter.Sink
func (s *Sink) Reset(_ context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = append([]string(nil), header...)
	s.rows = make(map[int]storage.Row)
	s.tags = nil
	s.status = ""
	s.progress = ""
	s.summary = nil
	return nil
}

// AppendRows implements exporter.Sink
func (s *Sink) AppendRows(_ context.Context, start int, rows []storage.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return fmt.Errorf("append at %d: %w", start, ErrInjected)
	}
	s.appends++
	for i, row := range rows {
		row.Index = start + i
		s.rows[row.Index] = row
	}
	return nil
}

// TagRange implements exporter.Sink
func (s *Sink) TagRange(_ context.Context, start, count int, category storage.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, Tag{Start: start, Count: count, Category: category})
	return nil
}

// SetStatusField implements exporter.Sink
func (s *Sink) SetStatusField(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = value
	return nil
}

// SetProgressField implements exporter.Sink
func (s *Sink) SetProgressField(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = value
	return nil
}

// StatusField implements exporter.Sink
func (s *Sink) StatusField(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

// ReadAll implements exporter.Sink
func (s *Sink) ReadAll(_ context.Context) ([]storage.Row, error) {
	return s.Rows(), nil
}

// WriteSummary implements exporter.Sink
func (s *Sink) WriteSummary(_ context.Context, lines []storage.SummaryLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = append([]storage.SummaryLine(nil), lines...)
	return nil
}

// FailAppend makes AppendRows fail until called again with false
func (s *Sink) FailAppend(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = fail
}

// Rows returns the stored rows ordered by position
func (s *Sink) Rows() []storage.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]storage.Row, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}

// Header returns the header written by Reset
func (s *Sink) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.header...)
}

// Tags returns every TagRange call in order
func (s *Sink) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tag(nil), s.tags...)
}

// Status returns the status field
func (s *Sink) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Progress returns the progress field
func (s *Sink) Progress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Summary returns the last summary written
func (s *Sink) Summary() []storage.SummaryLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.SummaryLine(nil), s.summary...)
}

// Appends returns how many AppendRows calls succeeded
func (s *Sink) Appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}
