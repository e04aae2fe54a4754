package exporter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSchedulerStopped is returned when scheduling on a stopped scheduler
var ErrSchedulerStopped = errors.New("scheduler stopped")

// TimerScheduler is an in-process Scheduler. Wake-ups are delivered on a
// channel instead of calling back, so a single consumer runs batches one at
// a time. Scheduling a handle replaces its pending wake-up.
type TimerScheduler struct {
	mu         sync.Mutex
	timers     map[string]*time.Timer
	generation map[string]uint64
	queued     map[string]int
	wakeups    chan string
	done       chan struct{}
	stopOnce   sync.Once
}

// NewTimerScheduler creates a scheduler with no pending wake-ups
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers:     make(map[string]*time.Timer),
		generation: make(map[string]uint64),
		queued:     make(map[string]int),
		wakeups:    make(chan string, 16),
		done:       make(chan struct{}),
	}
}

// ScheduleAfter arranges one wake-up for handle after delay, cancelling any
// wake-up still pending for it
func (s *TimerScheduler) ScheduleAfter(handle string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return ErrSchedulerStopped
	default:
	}

	s.cancelLocked(handle)
	gen := s.generation[handle]
	s.timers[handle] = time.AfterFunc(delay, func() { s.fire(handle, gen) })
	return nil
}

// CancelPending drops the pending wake-up of handle, if any
func (s *TimerScheduler) CancelPending(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(handle)
	return nil
}

// Pending reports whether a wake-up for handle is scheduled or delivered but
// not yet consumed
func (s *TimerScheduler) Pending(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, scheduled := s.timers[handle]
	return scheduled || s.queued[handle] > 0
}

// Wakeups delivers the handle of every wake-up that fired
func (s *TimerScheduler) Wakeups() <-chan string {
	return s.wakeups
}

// Ack marks a received wake-up as consumed
func (s *TimerScheduler) Ack(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queued[handle] > 0 {
		s.queued[handle]--
	}
}

// Stop cancels every pending wake-up; later ScheduleAfter calls fail
func (s *TimerScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for handle := range s.timers {
			s.cancelLocked(handle)
		}
		close(s.done)
	})
}

func (s *TimerScheduler) cancelLocked(handle string) {
	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
	// A timer that already fired but has not taken the lock sees a newer
	// generation and drops itself.
	s.generation[handle]++
}

func (s *TimerScheduler) fire(handle string, gen uint64) {
	s.mu.Lock()
	if s.generation[handle] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, handle)
	s.queued[handle]++
	s.mu.Unlock()

	select {
	case s.wakeups <- handle:
	case <-s.done:
	}
}

// Drive runs one batch per wake-up of the runner's job until no wake-up is
// pending or ctx is done. Write failures are retried through the wake-up the
// runner schedules; a corrupt checkpoint ends the loop.
func (r *Runner) Drive(ctx context.Context, sched *TimerScheduler) error {
	handle := r.job.Name
	log := r.job.logger()

	for sched.Pending(handle) {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case woke := <-sched.Wakeups():
			sched.Ack(woke)
			if woke != handle {
				continue
			}
			if _, err := r.RunBatch(ctx); err != nil {
				var corrupt *CheckpointCorruptError
				if errors.As(err, &corrupt) || errors.Is(err, context.Canceled) {
					return err
				}
				log.Errorf("Batch failed: %v", err)
			}
		}
	}
	return nil
}
