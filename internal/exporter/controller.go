package exporter

import (
	"context"
	"fmt"

	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/google/uuid"
)

// Controller implements the user commands that start, pause, resume and stop
// an export. Commands for the same job must be issued one at a time.
type Controller struct {
	job    *Job
	runner *Runner
}

// NewController creates a controller driving job through runner
func NewController(job *Job, runner *Runner) *Controller {
	return &Controller{job: job, runner: runner}
}

// Start discards any previous export of the job, initializes the report and
// a fresh checkpoint with the root queued, then runs the first batch at once.
func (c *Controller) Start(ctx context.Context) (BatchResult, error) {
	job := c.job

	if err := job.Store.ClearAll(ctx); err != nil {
		return BatchResult{}, fmt.Errorf("failed to clear previous checkpoint: %w", err)
	}
	if err := job.Sink.Reset(ctx, ReportHeader); err != nil {
		return BatchResult{}, fmt.Errorf("failed to reset report: %w", err)
	}
	if err := job.Sink.SetProgressField(ctx, "Progress: 0%"); err != nil {
		return BatchResult{}, fmt.Errorf("failed to reset progress: %w", err)
	}
	if err := job.Sink.SetStatusField(ctx, statusText(storage.StatusRunning)); err != nil {
		return BatchResult{}, fmt.Errorf("failed to set status field: %w", err)
	}

	state := &storage.TraversalState{
		RunID:     uuid.NewString(),
		Queue:     []storage.QueueEntry{{NodeID: job.RootID}},
		NextRow:   storage.FirstDataRow,
		StartedAt: job.now(),
	}
	if err := job.saveCheckpoint(ctx, state); err != nil {
		return BatchResult{}, fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := job.setStatus(ctx, storage.StatusRunning); err != nil {
		return BatchResult{}, err
	}

	job.Metrics.SetRunID(state.RunID)
	job.logger().Infof("Export %s started at root %s", state.RunID, job.RootID)

	return c.runner.RunBatch(ctx)
}

// Pause flips the status to paused and keeps the checkpoint. A wake-up that
// is already scheduled finds the job paused and does nothing.
func (c *Controller) Pause(ctx context.Context) error {
	job := c.job

	if err := c.requireCheckpoint(ctx); err != nil {
		return err
	}
	if err := job.setStatus(ctx, storage.StatusPaused); err != nil {
		return err
	}
	if err := job.Sink.SetStatusField(ctx, statusText(storage.StatusPaused)); err != nil {
		return fmt.Errorf("failed to set status field: %w", err)
	}

	job.logger().Info("Export paused")
	return nil
}

// Resume continues a paused export and runs one batch at once
func (c *Controller) Resume(ctx context.Context) (BatchResult, error) {
	job := c.job

	if err := c.requireCheckpoint(ctx); err != nil {
		return BatchResult{}, err
	}
	if err := job.setStatus(ctx, storage.StatusRunning); err != nil {
		return BatchResult{}, err
	}
	if err := job.Sink.SetStatusField(ctx, statusText(storage.StatusRunning)); err != nil {
		return BatchResult{}, fmt.Errorf("failed to set status field: %w", err)
	}

	job.logger().Info("Export resumed")
	return c.runner.RunBatch(ctx)
}

// Stop deletes the checkpoint; the export cannot be resumed afterwards
func (c *Controller) Stop(ctx context.Context) error {
	job := c.job

	if err := job.Store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if err := job.Sink.SetStatusField(ctx, statusText(storage.StatusStopped)); err != nil {
		return fmt.Errorf("failed to set status field: %w", err)
	}

	job.logger().Info("Export stopped, checkpoint deleted")
	return nil
}

// Summarize rebuilds the summary report of a completed export
func (c *Controller) Summarize(ctx context.Context) ([]storage.SummaryLine, error) {
	return Summarize(ctx, c.job)
}

// requireCheckpoint checks that a checkpoint exists without decoding it
func (c *Controller) requireCheckpoint(ctx context.Context) error {
	_, ok, err := c.job.Store.Get(ctx, keyState)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if !ok {
		return ErrNoCheckpoint
	}
	return nil
}
