package bench

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"apibench/internal/adapter"
	"apibench/internal/stats"
)

// Runner dispatches a run's iterations against the registered adapters.
// Each (protocol, operation) group runs as its own phase so the group's
// wall-clock duration, and therefore its throughput, is well defined.
type Runner struct {
	reg *adapter.Registry
	log *slog.Logger
}

func NewRunner(reg *adapter.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{reg: reg, log: logger}
}

// Execute drives the run to a terminal state. Cancelling ctx stops new
// dispatch; in-flight calls finish and the run ends CANCELLED with
// whatever was collected. The returned error is non-nil only when the
// run itself fails to start or aborts (FAILED), never for per-call
// failures.
func (rn *Runner) Execute(ctx context.Context, run *Run) error {
	if err := run.begin(); err != nil {
		return err
	}

	ids := userIDs(run.Config)

	for _, protocol := range run.Config.Protocols {
		ad, err := rn.reg.Lookup(protocol)
		if err != nil {
			run.finish(StatusFailed)
			return err
		}
		for _, op := range run.Config.Operations {
			if ctx.Err() != nil {
				run.finish(StatusCancelled)
				return nil
			}
			rn.dispatchGroup(ctx, run, ad, op, ids)
		}
	}

	if ctx.Err() != nil {
		run.finish(StatusCancelled)
		return nil
	}
	run.finish(StatusCompleted)
	return nil
}

// userIDs pre-generates one target ID per iteration so every group hits
// the same ID sequence.
func userIDs(cfg Config) []int64 {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ids := make([]int64, cfg.Iterations)
	span := cfg.IDMax - cfg.IDMin + 1
	for i := range ids {
		ids[i] = cfg.IDMin + rng.Int63n(span)
	}
	return ids
}

func (rn *Runner) dispatchGroup(ctx context.Context, run *Run, ad adapter.Adapter, op string, ids []int64) {
	key := stats.GroupKey{Protocol: ad.Protocol(), Operation: op}
	cfg := run.Config
	rec := run.Recorder()

	rn.log.Debug("dispatching group",
		"protocol", key.Protocol, "operation", op,
		"iterations", cfg.Iterations, "sequential", cfg.Sequential, "workers", cfg.Workers)

	start := time.Now()
	if cfg.Sequential {
		for i := 0; i < cfg.Iterations; i++ {
			if ctx.Err() != nil {
				break
			}
			rec.Append(rn.call(ad, op, params(ids, i), cfg.Timeout))
			rn.logProgress(key, i+1, cfg.Iterations)
		}
	} else {
		rn.dispatchParallel(ctx, run, ad, op, ids)
	}
	rec.SetGroupDuration(key, time.Since(start))
}

// dispatchParallel drains a shared task queue with a fixed pool of
// workers. Every submitted task produces exactly one result; arrival
// order is completion order.
func (rn *Runner) dispatchParallel(ctx context.Context, run *Run, ad adapter.Adapter, op string, ids []int64) {
	cfg := run.Config
	rec := run.Recorder()
	key := stats.GroupKey{Protocol: ad.Protocol(), Operation: op}

	tasks := make(chan int)
	go func() {
		defer close(tasks)
		for i := 0; i < cfg.Iterations; i++ {
			select {
			case tasks <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var done atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				rec.Append(rn.call(ad, op, params(ids, i), cfg.Timeout))
				rn.logProgress(key, int(done.Add(1)), cfg.Iterations)
			}
		}()
	}
	wg.Wait()
}

// call wraps one adapter invocation with the monotonic timer. The timer
// spans exactly the adapter call; its duration is recorded whether the
// call succeeded or not. The per-call context is detached from the
// run's cancel context on purpose: cancellation must not abort calls
// already in flight.
func (rn *Runner) call(ad adapter.Adapter, op string, p adapter.Params, timeout time.Duration) stats.Result {
	callCtx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := ad.Execute(callCtx, op, p)
	elapsed := time.Since(started)

	res := stats.Result{
		Protocol:   ad.Protocol(),
		Operation:  op,
		ResponseMs: float64(elapsed) / float64(time.Millisecond),
		Timestamp:  started,
	}
	if err != nil {
		var oe *adapter.OperationError
		if errors.As(err, &oe) {
			res.ErrorKind = string(oe.Kind)
			res.ErrorMessage = oe.Message
		} else {
			res.ErrorKind = string(adapter.KindUnknown)
			res.ErrorMessage = err.Error()
		}
		return res
	}
	res.Success = true
	res.PayloadBytes = ad.PayloadSize(resp)
	return res
}

// params builds the default arguments for iteration i.
func params(ids []int64, i int) adapter.Params {
	return adapter.Params{
		UserID:    ids[i],
		Page:      0,
		Size:      10,
		Query:     "user",
		Limit:     10,
		BulkCount: 5,
	}
}

func (rn *Runner) logProgress(key stats.GroupKey, done, total int) {
	if done%100 == 0 || done == total {
		rn.log.Debug("progress", "group", key.String(), "done", done, "total", total)
	}
}
