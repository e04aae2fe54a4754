package exporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/alvmarrod/tree-exporter/internal/tree"
	"github.com/sirupsen/logrus"
)

const (
	indentUnit      = "│  "
	unknownModifier = "Unknown"
)

// Outcome tells what a batch invocation ended with
type Outcome int

const (
	// OutcomeSkipped means the job was not running and nothing was touched
	OutcomeSkipped Outcome = iota
	// OutcomeRescheduled means work remains and a wake-up is pending
	OutcomeRescheduled
	// OutcomeCompleted means the queue drained and the checkpoint was deleted
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRescheduled:
		return "rescheduled"
	case OutcomeCompleted:
		return "completed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// BatchResult describes one batch invocation
type BatchResult struct {
	Outcome  Outcome
	Rows     int
	Counters storage.Counters
	Progress Progress
}

// Runner executes bounded batches of the traversal. All state lives in the
// job's checkpoint; invocations must not overlap.
type Runner struct {
	job *Job
}

// NewRunner creates a runner for job
func NewRunner(job *Job) *Runner {
	if job.Limits.BatchLimit < 1 {
		job.Limits.BatchLimit = 1
	}
	if job.Limits.ReservedMargin < 0 {
		job.Limits.ReservedMargin = 0
	}
	return &Runner{job: job}
}

// RunBatch loads the checkpoint, expands queued containers until the queue
// drains, the batch cap is reached or the deadline passes, then writes the rows,
// persists the checkpoint and either schedules the next batch or completes
// the export. It is a no-op unless the job status is running.
func (r *Runner) RunBatch(ctx context.Context) (BatchResult, error) {
	job := r.job
	log := job.logger()

	status, err := job.Status(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	if status != storage.StatusRunning {
		log.Debugf("Batch skipped: status is %q", status)
		return BatchResult{Outcome: OutcomeSkipped}, nil
	}

	state, err := job.loadRunningState(ctx)
	if err != nil {
		log.Errorf("Cannot load checkpoint, export must be restarted: %v", err)
		return BatchResult{}, err
	}

	started := job.now()
	b := &batch{
		job:      job,
		queue:    NewDeque(state.Queue),
		nextRow:  state.NextRow,
		deadline: started.Add(job.Limits.Deadline),
	}
	if err := b.run(ctx); err != nil {
		return BatchResult{}, err
	}

	result, err := r.commit(ctx, state, b)
	if err != nil {
		var writeErr *WriteError
		if errors.As(err, &writeErr) {
			r.retryLater(log, err)
		}
		return BatchResult{}, err
	}

	job.Metrics.RecordBatch(job.now().Sub(started), b.counts, b.resolutionFailures, b.subpartFailures, b.queue.Size())
	log.Infof("Batch %s: %d rows (%d folders, %d files, %d tabs), %d queued | %s",
		result.Outcome, result.Rows, b.counts.Containers, b.counts.Leaves, b.counts.SubItems,
		b.queue.Size(), result.Progress)

	return result, nil
}

// commit writes the batch rows and advances the checkpoint. Nothing is
// persisted to the checkpoint unless the sink accepted the rows.
func (r *Runner) commit(ctx context.Context, state *storage.TraversalState, b *batch) (BatchResult, error) {
	job := r.job
	log := job.logger()

	if len(b.rows) > 0 {
		if err := job.Sink.AppendRows(ctx, state.NextRow, b.rows); err != nil {
			return BatchResult{}, &WriteError{Op: "append rows", Err: err}
		}
		for _, run := range categoryRuns(b.rows) {
			if err := job.Sink.TagRange(ctx, run.start, run.count, run.category); err != nil {
				return BatchResult{}, &WriteError{Op: "tag rows", Err: err}
			}
		}
	}

	state.NextRow += len(b.rows)
	state.Counters = state.Counters.Add(b.counts)
	state.Queue = b.queue.Entries()

	progress := computeProgress(state, job.now())
	if err := job.Sink.SetProgressField(ctx, progress.String()); err != nil {
		log.Warnf("Failed to update progress field: %v", err)
	}
	if err := job.Sink.SetStatusField(ctx, statusText(storage.StatusRunning)); err != nil {
		log.Warnf("Failed to update status field: %v", err)
	}

	if err := job.saveCheckpoint(ctx, state); err != nil {
		return BatchResult{}, &WriteError{Op: "persist checkpoint", Err: err}
	}

	result := BatchResult{
		Outcome:  OutcomeRescheduled,
		Rows:     len(b.rows),
		Counters: b.counts,
		Progress: progress,
	}

	if !b.queue.IsEmpty() {
		if err := job.Scheduler.ScheduleAfter(job.Name, job.Limits.RescheduleDelay); err != nil {
			return BatchResult{}, fmt.Errorf("failed to schedule next batch: %w", err)
		}
		job.Metrics.IncrementReschedules()
		return result, nil
	}

	if err := r.complete(ctx); err != nil {
		return BatchResult{}, err
	}
	result.Outcome = OutcomeCompleted
	return result, nil
}

// complete marks the export finished, deletes the checkpoint, drops any
// wake-up still pending for the job and builds the summary report.
func (r *Runner) complete(ctx context.Context) error {
	job := r.job
	log := job.logger()

	if err := job.Sink.SetStatusField(ctx, statusText(storage.StatusCompleted)); err != nil {
		return &WriteError{Op: "mark completed", Err: err}
	}
	if err := job.Store.ClearAll(ctx); err != nil {
		return &WriteError{Op: "delete checkpoint", Err: err}
	}
	log.Info("Export completed, checkpoint deleted")

	if err := job.Scheduler.CancelPending(job.Name); err != nil {
		log.Warnf("Failed to cancel pending wake-up: %v", err)
	}

	if _, err := Summarize(ctx, job); err != nil {
		log.Errorf("Summary failed: %v", err)
	}
	return nil
}

// retryLater keeps the job alive after a failed commit; the next batch starts
// again from the last persisted checkpoint.
func (r *Runner) retryLater(log *logrus.Entry, cause error) {
	job := r.job
	log.Errorf("Batch aborted, checkpoint not advanced: %v", cause)
	if err := job.Scheduler.ScheduleAfter(job.Name, job.Limits.RescheduleDelay); err != nil {
		log.Errorf("Failed to schedule retry: %v", err)
		return
	}
	job.Metrics.IncrementReschedules()
}

// batch is the in-memory work of one invocation
type batch struct {
	job      *Job
	queue    *Deque
	nextRow  int
	deadline time.Time

	rows   []storage.Row
	counts storage.Counters
	popped int

	resolutionFailures int
	subpartFailures    int
}

func (b *batch) expired() bool {
	return !b.job.now().Before(b.deadline)
}

// exhausted gates popping another container. The deadline counts once one
// container has been popped, whether or not it resolved.
func (b *batch) exhausted() bool {
	if len(b.rows) >= b.job.Limits.BatchLimit {
		return true
	}
	return b.popped > 0 && b.expired()
}

// mustYield gates emitting another row. A batch that has emitted nothing
// yet always gets one row so every invocation makes progress.
func (b *batch) mustYield() bool {
	if len(b.rows) >= b.job.Limits.BatchLimit {
		return true
	}
	return len(b.rows) > 0 && b.expired()
}

// hasSubpartHeadroom reports whether sub-parts may be enumerated now
func (b *batch) hasSubpartHeadroom() bool {
	n := len(b.rows)
	return n == 0 || n < b.job.Limits.BatchLimit-b.job.Limits.ReservedMargin
}

func (b *batch) run(ctx context.Context) error {
	for !b.queue.IsEmpty() && !b.exhausted() {
		entry, _ := b.queue.PopFront()
		b.popped++
		if err := b.expand(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// expand emits the container row, pushes its subcontainers to the front of
// the queue and emits its leaves. If the batch fills up part way, the entry
// goes back to the front with its cursor.
func (b *batch) expand(ctx context.Context, entry storage.QueueEntry) error {
	log := b.job.logger()

	c, err := b.job.Source.Resolve(ctx, entry.NodeID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.resolutionFailures++
		log.Warnf("Skipping folder %s: %v", entry.NodeID, err)
		return nil
	}

	if !entry.Expanded {
		b.emit(folderRow(c, entry))
		b.counts.Containers++

		children := make([]storage.QueueEntry, 0, len(c.Subcontainers))
		for _, ref := range c.Subcontainers {
			children = append(children, storage.QueueEntry{
				NodeID:      ref.ID,
				Depth:       entry.Depth + 1,
				ParentLabel: c.Name,
			})
		}
		b.queue.PushFront(children...)
		entry.Expanded = true
	}

	for ; entry.LeafOffset < len(c.Leaves); entry.LeafOffset++ {
		leaf := c.Leaves[entry.LeafOffset]
		if leaf.Folder {
			continue
		}

		fileType := leaf.Classify()
		if !entry.LeafEmitted {
			if b.mustYield() {
				b.queue.PushFront(entry)
				return nil
			}
			b.emit(fileRow(c, entry, leaf, fileType))
			b.counts.Leaves++
			entry.LeafEmitted = true
		}

		if fileType.MultiPart {
			done, err := b.expandSubparts(ctx, &entry, leaf)
			if err != nil {
				return err
			}
			if !done {
				b.queue.PushFront(entry)
				return nil
			}
		}

		entry.LeafEmitted = false
		entry.SubpartOffset = 0
	}

	return nil
}

// expandSubparts emits the sub-part rows of a multi-part leaf starting at the
// entry's sub-part offset. It returns false when the batch must end first.
func (b *batch) expandSubparts(ctx context.Context, entry *storage.QueueEntry, leaf tree.Leaf) (bool, error) {
	if !b.hasSubpartHeadroom() {
		return false, nil
	}

	parts, err := b.job.Source.Subparts(ctx, leaf)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		b.subpartFailures++
		b.job.logger().Warnf("Could not open sheet %s: %v", leaf.Name, err)
		return true, nil
	}

	for ; entry.SubpartOffset < len(parts); entry.SubpartOffset++ {
		if b.mustYield() {
			return false, nil
		}
		b.emit(tabRow(entry, leaf, parts[entry.SubpartOffset]))
		b.counts.SubItems++
	}
	return true, nil
}

func (b *batch) emit(row storage.Row) {
	row.Index = b.nextRow + len(b.rows)
	b.rows = append(b.rows, row)
}

func folderRow(c *tree.Container, entry storage.QueueEntry) storage.Row {
	return storage.Row{
		Category:  storage.CategoryFolder,
		Name:      indent(entry.Depth) + c.Name + presenceLabel(c),
		Link:      c.Link,
		LinkLabel: tree.FolderLinkLabel,
		Parent:    entry.ParentLabel,
		Depth:     entry.Depth,
	}
}

func fileRow(c *tree.Container, entry storage.QueueEntry, leaf tree.Leaf, fileType tree.FileType) storage.Row {
	modifiedBy := leaf.ModifiedBy
	if modifiedBy == "" {
		modifiedBy = unknownModifier
	}
	return storage.Row{
		Category:   storage.CategoryFile,
		Name:       indent(entry.Depth+1) + leaf.Name,
		TypeLabel:  string(fileType.Label),
		ModifiedAt: leaf.ModifiedAt,
		ModifiedBy: modifiedBy,
		Link:       leaf.Link,
		LinkLabel:  fileType.LinkLabel,
		Parent:     c.Name,
		Depth:      entry.Depth + 1,
	}
}

func tabRow(entry *storage.QueueEntry, leaf tree.Leaf, part string) storage.Row {
	return storage.Row{
		Category:  storage.CategoryTab,
		Name:      indent(entry.Depth+2) + part,
		TypeLabel: string(tree.LabelSheetTab),
		Parent:    leaf.Name,
		Depth:     entry.Depth + 2,
	}
}

func indent(depth int) string {
	return strings.Repeat(indentUnit, depth)
}

// presenceLabel summarizes whether a container has children, e.g. " (1+ folder, 1+ file)"
func presenceLabel(c *tree.Container) string {
	var parts []string
	if c.HasSubcontainers() {
		parts = append(parts, "1+ folder")
	}
	if c.HasLeaves() {
		parts = append(parts, "1+ file")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

type categoryRun struct {
	start    int
	count    int
	category storage.Category
}

// categoryRuns groups consecutive rows of the same category
func categoryRuns(rows []storage.Row) []categoryRun {
	var runs []categoryRun
	for _, row := range rows {
		if n := len(runs); n > 0 && runs[n-1].category == row.Category {
			runs[n-1].count++
			continue
		}
		runs = append(runs, categoryRun{start: row.Index, count: 1, category: row.Category})
	}
	return runs
}
