package bench

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the benchmark run lifecycle state.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NOT_STARTED"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Run is one benchmark run, owned by the caller that created it. The
// Runner is the only mutator while the run is RUNNING.
type Run struct {
	ID     string
	Config Config

	mu        sync.Mutex
	status    Status
	rec       *Recorder
	startedAt time.Time
	elapsed   time.Duration
}

// NewRun builds a run in NOT_STARTED from a validated config.
func NewRun(cfg Config) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Run{
		ID:     uuid.NewString(),
		Config: cfg,
		rec:    NewRecorder(),
	}, nil
}

func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Recorder exposes the run's sample store.
func (r *Run) Recorder() *Recorder { return r.rec }

// StartedAt is zero until the run begins.
func (r *Run) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// Elapsed is the total wall-clock span of the run, fixed once the run
// reaches a terminal state.
func (r *Run) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRunning {
		return time.Since(r.startedAt)
	}
	return r.elapsed
}

// begin transitions NOT_STARTED -> RUNNING.
func (r *Run) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusNotStarted {
		return fmt.Errorf("cannot start run in state %s", r.status)
	}
	r.status = StatusRunning
	r.startedAt = time.Now()
	return nil
}

// finish transitions RUNNING -> terminal.
func (r *Run) finish(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return
	}
	r.status = st
	r.elapsed = time.Since(r.startedAt)
}

// Clear resets a terminal run back to NOT_STARTED with an empty sample
// set. Clearing a run that has not finished is an error.
func (r *Run) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.terminal() {
		return fmt.Errorf("cannot clear run in state %s", r.status)
	}
	r.status = StatusNotStarted
	r.startedAt = time.Time{}
	r.elapsed = 0
	r.rec.Reset()
	return nil
}
