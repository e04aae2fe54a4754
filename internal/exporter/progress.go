package exporter

import (
	"fmt"
	"math"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/storage"
)

// Progress is the throughput estimate reported after every batch
type Progress struct {
	Total      int
	Elapsed    time.Duration
	Throughput float64 // items per second since the export started
	Queued     int
	Remaining  time.Duration
}

// computeProgress estimates the time left as queued containers over the
// observed throughput. A zero throughput counts as one item per second.
func computeProgress(state *storage.TraversalState, now time.Time) Progress {
	total := state.Counters.Total()
	elapsed := now.Sub(state.StartedAt)

	var throughput float64
	if secs := elapsed.Seconds(); secs > 0 {
		throughput = float64(total) / secs
	}
	divisor := throughput
	if divisor == 0 {
		divisor = 1
	}

	remaining := math.Round(float64(len(state.Queue)) / divisor)
	return Progress{
		Total:      total,
		Elapsed:    elapsed,
		Throughput: throughput,
		Queued:     len(state.Queue),
		Remaining:  time.Duration(remaining) * time.Second,
	}
}

func (p Progress) String() string {
	return fmt.Sprintf("Progress: %d items | Est. Time Left: %ds", p.Total, int64(p.Remaining/time.Second))
}
