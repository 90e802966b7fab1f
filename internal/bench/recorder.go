package bench

import (
	"sync"
	"sync/atomic"
	"time"

	"apibench/internal/stats"
)

// Snapshot is the cheap live view pushed to progress displays while a
// run is in flight.
type Snapshot struct {
	Requests  uint64
	Successes uint64
	Failures  uint64
	Bytes     uint64

	P50Ms float64
	P95Ms float64
	P99Ms float64
	MaxMs float64
}

// Recorder retains the complete ordered sample list per group. Appends
// are mutex-guarded so any number of workers can write concurrently;
// a run is finite, so nothing is ever evicted.
type Recorder struct {
	mu     sync.Mutex
	groups map[stats.GroupKey]*groupSamples
	order  []stats.GroupKey

	requests  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
	bytes     atomic.Uint64

	live *stats.SafeHistogram
}

type groupSamples struct {
	results  []stats.Result
	duration time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{
		groups: make(map[stats.GroupKey]*groupSamples),
		live:   stats.NewSafeHistogram(),
	}
}

// Append records one result into its group.
func (rec *Recorder) Append(res stats.Result) {
	rec.requests.Add(1)
	if res.Success {
		rec.successes.Add(1)
		rec.bytes.Add(uint64(res.PayloadBytes))
	} else {
		rec.failures.Add(1)
	}
	rec.live.Record(time.Duration(res.ResponseMs * float64(time.Millisecond)))

	key := res.Key()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	g, ok := rec.groups[key]
	if !ok {
		g = &groupSamples{}
		rec.groups[key] = g
		rec.order = append(rec.order, key)
	}
	g.results = append(g.results, res)
}

// SetGroupDuration fixes the wall-clock span of a group's dispatch
// phase, the denominator for its throughput and transfer rate.
func (rec *Recorder) SetGroupDuration(key stats.GroupKey, d time.Duration) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	g, ok := rec.groups[key]
	if !ok {
		g = &groupSamples{}
		rec.groups[key] = g
		rec.order = append(rec.order, key)
	}
	g.duration = d
}

// Groups returns group keys in first-append order.
func (rec *Recorder) Groups() []stats.GroupKey {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]stats.GroupKey, len(rec.order))
	copy(out, rec.order)
	return out
}

// Results returns a copy of one group's sample list in arrival order.
func (rec *Recorder) Results(key stats.GroupKey) []stats.Result {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	g, ok := rec.groups[key]
	if !ok {
		return nil
	}
	out := make([]stats.Result, len(g.results))
	copy(out, g.results)
	return out
}

// Len reports the total number of recorded results.
func (rec *Recorder) Len() int {
	return int(rec.requests.Load())
}

// Aggregate computes summary statistics for one group on demand.
func (rec *Recorder) Aggregate(key stats.GroupKey) stats.Aggregate {
	rec.mu.Lock()
	var (
		res []stats.Result
		dur time.Duration
	)
	if g, ok := rec.groups[key]; ok {
		res = make([]stats.Result, len(g.results))
		copy(res, g.results)
		dur = g.duration
	}
	rec.mu.Unlock()
	return stats.Compute(key, res, dur)
}

// Aggregates computes statistics for every group in first-append order.
func (rec *Recorder) Aggregates() []stats.Aggregate {
	keys := rec.Groups()
	out := make([]stats.Aggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, rec.Aggregate(k))
	}
	return out
}

// Snapshot returns the live counters and histogram percentiles.
func (rec *Recorder) Snapshot() Snapshot {
	return Snapshot{
		Requests:  rec.requests.Load(),
		Successes: rec.successes.Load(),
		Failures:  rec.failures.Load(),
		Bytes:     rec.bytes.Load(),
		P50Ms:     rec.live.QuantileMs(50),
		P95Ms:     rec.live.QuantileMs(95),
		P99Ms:     rec.live.QuantileMs(99),
		MaxMs:     rec.live.MaxMs(),
	}
}

// Reset discards all samples and counters.
func (rec *Recorder) Reset() {
	rec.mu.Lock()
	rec.groups = make(map[stats.GroupKey]*groupSamples)
	rec.order = nil
	rec.mu.Unlock()

	rec.requests.Store(0)
	rec.successes.Store(0)
	rec.failures.Store(0)
	rec.bytes.Store(0)
	rec.live.Reset()
}
