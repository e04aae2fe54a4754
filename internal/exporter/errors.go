package exporter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotCompleted is returned by Summarize before the export has completed.
	ErrNotCompleted = errors.New("export is not completed yet")
	// ErrNoCheckpoint is returned by Resume when there is nothing to resume.
	ErrNoCheckpoint = errors.New("no saved export to resume")
)

// WriteError reports a failed sink write or checkpoint persist. The batch that
// hit it did not advance the checkpoint and may be retried from the same state.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// CheckpointCorruptError reports stored state that cannot be decoded. There is
// no automatic recovery; the export has to be started again.
type CheckpointCorruptError struct {
	Err error
}

func (e *CheckpointCorruptError) Error() string {
	return fmt.Sprintf("checkpoint corrupt: %v", e.Err)
}

func (e *CheckpointCorruptError) Unwrap() error {
	return e.Err
}
