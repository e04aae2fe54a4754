package exporter

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/memory"
	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/alvmarrod/tree-exporter/internal/tree"
	"github.com/sirupsen/logrus"
)

// recordingScheduler keeps at most one pending wake-up per handle and counts calls
type recordingScheduler struct {
	mu        sync.Mutex
	pending   map[string]time.Duration
	schedules int
	cancels   int
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{pending: make(map[string]time.Duration)}
}

func (s *recordingScheduler) ScheduleAfter(handle string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules++
	s.pending[handle] = delay
	return nil
}

func (s *recordingScheduler) CancelPending(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	delete(s.pending, handle)
	return nil
}

func (s *recordingScheduler) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedules + s.cancels
}

func (s *recordingScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type fixture struct {
	job        *Job
	store      *memory.Store
	sink       *memory.Sink
	sched      *recordingScheduler
	runner     *Runner
	controller *Controller
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newFixture(src tree.Source, rootID string, batchLimit int) *fixture {
	f := &fixture{
		store: memory.NewStore(),
		sink:  memory.NewSink(),
		sched: newRecordingScheduler(),
	}
	f.job = &Job{
		Name:      "test",
		RootID:    rootID,
		Source:    src,
		Sink:      f.sink,
		Store:     f.store,
		Scheduler: f.sched,
		Limits: Limits{
			BatchLimit:      batchLimit,
			ReservedMargin:  3,
			Deadline:        time.Hour,
			RescheduleDelay: time.Millisecond,
		},
		Log: quietLogger(),
	}
	f.runner = NewRunner(f.job)
	f.controller = NewController(f.job, f.runner)
	return f
}

// runAll starts the export and runs batches until it completes
func (f *fixture) runAll(ctx context.Context) ([]BatchResult, error) {
	result, err := f.controller.Start(ctx)
	if err != nil {
		return nil, err
	}
	results := []BatchResult{result}
	for i := 0; result.Outcome == OutcomeRescheduled && i < 10000; i++ {
		if result, err = f.runner.RunBatch(ctx); err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func rowNames(rows []storage.Row) []string {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names
}

func sheetLeaf(id, name string) tree.Leaf {
	return tree.Leaf{ID: id, Name: name, MimeType: tree.MimeExcelX, Link: "mem://" + id}
}

func textLeaf(id, name string) tree.Leaf {
	return tree.Leaf{ID: id, Name: name, MimeType: tree.MimeText, Link: "mem://" + id, ModifiedBy: "ana"}
}

// sampleTree builds a tree with nesting, multi-part leaves and a folder entry
// listed among the leaves.
//
//	root
//	  notes.txt
//	  budget.xlsx [Q1 Q2 Q3 Q4]
//	  docs/
//	    spec.pdf
//	    deep/
//	      a.txt
//	      plan.xlsx [One Two]
//	    empty/
//	  media/
//	    b.txt
func sampleTree() *memory.Tree {
	t := memory.NewTree("root", "Root")
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(t.AddLeaf("root", textLeaf("notes", "notes.txt")))
	must(t.AddLeaf("root", sheetLeaf("budget", "budget.xlsx")))
	t.SetSubparts("budget", "Q1", "Q2", "Q3", "Q4")
	must(t.AddFolder("root", "docs", "docs"))
	must(t.AddFolder("root", "media", "media"))
	must(t.AddLeaf("docs", tree.Leaf{ID: "spec", Name: "spec.pdf", MimeType: tree.MimePDF}))
	must(t.AddLeaf("docs", tree.Leaf{ID: "shortcut", Name: "linked", MimeType: tree.MimeFolder, Folder: true}))
	must(t.AddFolder("docs", "deep", "deep"))
	must(t.AddFolder("docs", "empty", "empty"))
	must(t.AddLeaf("deep", textLeaf("a", "a.txt")))
	must(t.AddLeaf("deep", sheetLeaf("plan", "plan.xlsx")))
	t.SetSubparts("plan", "One", "Two")
	must(t.AddLeaf("media", textLeaf("b", "b.txt")))
	return t
}

// endlessSource resolves every id into a container holding one subcontainer
// and a few leaves, so the traversal never runs out of work
type endlessSource struct{}

func (endlessSource) Resolve(_ context.Context, id string) (*tree.Container, error) {
	c := &tree.Container{ID: id, Name: id, Subcontainers: []tree.Ref{{ID: id + "/n", Name: "n"}}}
	for i := 0; i < 4; i++ {
		c.Leaves = append(c.Leaves, tree.Leaf{ID: id + "/f", Name: "f.txt", MimeType: tree.MimeText})
	}
	return c, nil
}

func (endlessSource) Subparts(context.Context, tree.Leaf) ([]string, error) {
	return nil, nil
}

// stepClock advances by step every time it is read
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// slowSource advances clock by cost on every Resolve of the wrapped source
type slowSource struct {
	tree.Source
	clock *stepClock
	cost  time.Duration
}

func (s slowSource) Resolve(ctx context.Context, id string) (*tree.Container, error) {
	s.clock.advance(s.cost)
	return s.Source.Resolve(ctx, id)
}
