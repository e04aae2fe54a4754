package storage

import "time"

// FirstDataRow is the sink position of the first exported row; position 1 holds the header
const FirstDataRow = 2

// JobStatus is stored apart from the checkpoint so it can be read without decoding the queue
type JobStatus string

const (
	StatusAbsent    JobStatus = ""
	StatusRunning   JobStatus = "running"
	StatusPaused    JobStatus = "paused"
	StatusStopped   JobStatus = "stopped"
	StatusCompleted JobStatus = "completed"
)

// Category groups report rows for styling and summary
type Category string

const (
	CategoryFolder Category = "Folder"
	CategoryFile   Category = "File"
	CategoryTab    Category = "Tab"
)

// QueueEntry represents a container waiting to be expanded
type QueueEntry struct {
	NodeID      string `json:"id"`
	Depth       int    `json:"depth"`
	ParentLabel string `json:"parent"`

	// Cursor for a container whose expansion was cut short by the batch cap or deadline.
	Expanded      bool `json:"expanded,omitempty"`
	LeafOffset    int  `json:"leaf_offset,omitempty"`
	LeafEmitted   bool `json:"leaf_emitted,omitempty"`
	SubpartOffset int  `json:"subpart_offset,omitempty"`
}

// Counters holds cumulative work done by a job
type Counters struct {
	Containers int `json:"containers"`
	Leaves     int `json:"leaves"`
	SubItems   int `json:"sub_items"`
}

// Total returns the number of rows the counters account for
func (c Counters) Total() int {
	return c.Containers + c.Leaves + c.SubItems
}

// Add returns the element-wise sum of two counter sets
func (c Counters) Add(other Counters) Counters {
	return Counters{
		Containers: c.Containers + other.Containers,
		Leaves:     c.Leaves + other.Leaves,
		SubItems:   c.SubItems + other.SubItems,
	}
}

// TraversalState is the checkpoint persisted between batches
type TraversalState struct {
	RunID     string       `json:"run_id"`
	Queue     []QueueEntry `json:"queue"`
	NextRow   int          `json:"next_row"`
	Counters  Counters     `json:"counters"`
	StartedAt time.Time    `json:"started_at"`
}

// Row is one line of the exported report
type Row struct {
	Index      int
	Category   Category
	Name       string
	TypeLabel  string
	ModifiedAt time.Time
	ModifiedBy string
	Link       string
	LinkLabel  string
	Parent     string
	Depth      int
}

// SummaryLine is one label/count pair of the summary report
type SummaryLine struct {
	Label string
	Count int
}

// Metrics tracks export statistics for export on exit
type Metrics struct {
	RunID              string    `json:"run_id"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Batches            int       `json:"batches"`
	FoldersExported    int       `json:"folders_exported"`
	FilesExported      int       `json:"files_exported"`
	TabsExported       int       `json:"tabs_exported"`
	ResolutionFailures int       `json:"resolution_failures"`
	SubpartFailures    int       `json:"subpart_failures"`
	Reschedules        int       `json:"reschedules"`
	TotalBatchTimeMs   int64     `json:"total_batch_time_ms"`
	AvgBatchTimeMs     int64     `json:"avg_batch_time_ms"`
	TerminationReason  string    `json:"termination_reason"`
}
