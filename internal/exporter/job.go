package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/metrics"
	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/alvmarrod/tree-exporter/internal/tree"
	"github.com/sirupsen/logrus"
)

// Checkpoint keys. Status is kept apart from the state so it can be read
// without decoding the queue.
const (
	keyState  = "state"
	keyStatus = "status"
)

// ReportHeader is written to the sink when an export starts
var ReportHeader = []string{"Name", "Type", "File Type", "Last Modified", "Modified By", "Link", "Parent Folder"}

// StateStore is the durable key/value store holding the checkpoint of one job
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	ClearAll(ctx context.Context) error
}

// Sink durably stores report rows and the human readable status fields
type Sink interface {
	Reset(ctx context.Context, header []string) error
	AppendRows(ctx context.Context, start int, rows []storage.Row) error
	TagRange(ctx context.Context, start, count int, category storage.Category) error
	SetStatusField(ctx context.Context, value string) error
	SetProgressField(ctx context.Context, value string) error
	StatusField(ctx context.Context) (string, error)
	ReadAll(ctx context.Context) ([]storage.Row, error)
	WriteSummary(ctx context.Context, lines []storage.SummaryLine) error
}

// Scheduler arranges future batch invocations. ScheduleAfter replaces any
// wake-up still pending for the handle, so at most one is outstanding per job.
type Scheduler interface {
	ScheduleAfter(handle string, delay time.Duration) error
	CancelPending(handle string) error
}

// Limits bound a single batch invocation
type Limits struct {
	// BatchLimit caps the rows produced by one batch
	BatchLimit int
	// ReservedMargin is the headroom required before enumerating sub-parts
	ReservedMargin int
	// Deadline is the wall-clock budget of one batch
	Deadline time.Duration
	// RescheduleDelay is the wait before the next batch
	RescheduleDelay time.Duration
}

// DefaultLimits returns the production batch limits
func DefaultLimits() Limits {
	return Limits{
		BatchLimit:      250,
		ReservedMargin:  3,
		Deadline:        15 * time.Minute,
		RescheduleDelay: 5 * time.Second,
	}
}

// Job is the context threaded through every exporter call. It owns the
// collaborators of one export; there is no process-wide state.
type Job struct {
	Name      string
	RootID    string
	Source    tree.Source
	Sink      Sink
	Store     StateStore
	Scheduler Scheduler
	Limits    Limits

	// Optional
	Metrics *metrics.Tracker
	Log     *logrus.Entry
	Now     func() time.Time
}

func (j *Job) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *Job) logger() *logrus.Entry {
	if j.Log != nil {
		return j.Log
	}
	return logrus.WithField("job", j.Name)
}

// Status returns the stored job status, StatusAbsent when none is stored
func (j *Job) Status(ctx context.Context) (storage.JobStatus, error) {
	value, ok, err := j.Store.Get(ctx, keyStatus)
	if err != nil {
		return storage.StatusAbsent, fmt.Errorf("failed to read status: %w", err)
	}
	if !ok {
		return storage.StatusAbsent, nil
	}
	return storage.JobStatus(value), nil
}

func (j *Job) setStatus(ctx context.Context, status storage.JobStatus) error {
	if err := j.Store.Set(ctx, keyStatus, string(status)); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	return nil
}

// Checkpoint returns the stored traversal state, or nil when none exists
func (j *Job) Checkpoint(ctx context.Context) (*storage.TraversalState, error) {
	raw, ok, err := j.Store.Get(ctx, keyState)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var state storage.TraversalState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, &CheckpointCorruptError{Err: err}
	}
	if state.NextRow < storage.FirstDataRow {
		return nil, &CheckpointCorruptError{Err: fmt.Errorf("next row %d before first data row", state.NextRow)}
	}
	return &state, nil
}

func (j *Job) saveCheckpoint(ctx context.Context, state *storage.TraversalState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return j.Store.Set(ctx, keyState, string(encoded))
}

// loadRunningState reads the checkpoint of a running job; a running job
// without one is treated as corrupt.
func (j *Job) loadRunningState(ctx context.Context) (*storage.TraversalState, error) {
	state, err := j.Checkpoint(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, &CheckpointCorruptError{Err: errors.New("status is running but no state is stored")}
	}
	return state, nil
}

// statusText renders a status for the sink's status field
func statusText(status storage.JobStatus) string {
	switch status {
	case storage.StatusRunning:
		return "Status: Running"
	case storage.StatusPaused:
		return "Status: Paused"
	case storage.StatusStopped:
		return "Status: Stopped"
	case storage.StatusCompleted:
		return "Status: Completed"
	default:
		return "Status: Idle"
	}
}
