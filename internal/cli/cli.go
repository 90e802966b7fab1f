// Package cli runs the harness headless: pre-flight checks, progress
// output on stderr, report on stdout, session archive.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"apibench/internal/adapter"
	"apibench/internal/bench"
	"apibench/internal/compare"
	"apibench/internal/report"
	"apibench/internal/stats"
	"apibench/internal/storage"
)

// Exit codes: per-call failures never make the process fail; only bad
// configuration or unreachable targets do.
const (
	ExitOK           = 0
	ExitConfigError  = 1
	ExitConnectivity = 2
)

const preflightTimeout = 5 * time.Second

// Options is the flag surface, pre-parsed by the command layer.
type Options struct {
	Requests    int
	UserIDRange string
	Output      string
	Protocols   []string
	Operations  []string
	Concurrency int
	Sequential  bool
	TimeoutSec  int
	Seed        int64
	Verbose     bool

	RESTURL    string
	GRPCURL    string
	GraphQLURL string
}

// protocolLabels maps flag spellings to group labels.
var protocolLabels = map[string]string{
	"rest":    "REST",
	"grpc":    "gRPC",
	"graphql": "GraphQL",
}

// Run executes one benchmark end to end and returns the process exit
// code.
func Run(opts Options) int {
	setupLogging(opts.Verbose)

	format, err := report.ParseFormat(opts.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	cfg, reg, targets, err := buildRun(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	defer reg.Close()

	run, err := bench.NewRun(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	if err := preflight(reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Please ensure all targets are running before starting the test.")
		return ExitConnectivity
	}

	store, serr := storage.NewSessionStore("")
	if serr != nil {
		slog.Warn("session store unavailable, continuing without archive", "err", serr)
	} else {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := bench.NewRunner(reg, slog.Default())

	progressDone := make(chan struct{})
	go showProgress(ctx, run, len(cfg.Protocols)*len(cfg.Operations)*cfg.Iterations, progressDone)

	if err := runner.Execute(ctx, run); err != nil {
		close(progressDone)
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		return ExitConnectivity
	}
	close(progressDone)
	fmt.Fprintln(os.Stderr)

	rep := buildReport(run, opts, targets)
	if err := report.Render(os.Stdout, format, rep); err != nil {
		fmt.Fprintf(os.Stderr, "Error: render report: %v\n", err)
		return ExitConfigError
	}

	if store != nil {
		rec := storage.RunRecord{ID: run.ID, Timestamp: time.Now(), Report: rep}
		if err := store.Save(rec); err != nil {
			slog.Warn("archive run", "err", err)
		} else {
			slog.Debug("run archived", "id", run.ID, "session", store.Path())
		}
	}
	return ExitOK
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildRun translates flags into a validated config plus the adapter
// registry and the target map for the report header.
func buildRun(opts Options) (bench.Config, *adapter.Registry, map[string]string, error) {
	idMin, idMax, err := bench.ParseIDRange(opts.UserIDRange)
	if err != nil {
		return bench.Config{}, nil, nil, err
	}

	timeout := time.Duration(opts.TimeoutSec) * time.Second
	reg := adapter.NewRegistry()
	targets := make(map[string]string)
	var labels []string

	for _, p := range opts.Protocols {
		label, ok := protocolLabels[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			reg.Close()
			return bench.Config{}, nil, nil, fmt.Errorf("unknown protocol %q (want rest, grpc or graphql)", p)
		}
		switch label {
		case "REST":
			reg.Register(adapter.NewRESTAdapter(opts.RESTURL, timeout))
			targets[label] = opts.RESTURL
		case "GraphQL":
			reg.Register(adapter.NewGraphQLAdapter(opts.GraphQLURL, timeout))
			targets[label] = opts.GraphQLURL
		case "gRPC":
			ga, gerr := adapter.NewGRPCAdapter(opts.GRPCURL, timeout)
			if gerr != nil {
				reg.Close()
				return bench.Config{}, nil, nil, gerr
			}
			reg.Register(ga)
			targets[label] = opts.GRPCURL
		}
		labels = append(labels, label)
	}

	cfg := bench.Config{
		Protocols:  labels,
		Operations: opts.Operations,
		Iterations: opts.Requests,
		Sequential: opts.Sequential,
		Workers:    opts.Concurrency,
		Timeout:    timeout,
		IDMin:      idMin,
		IDMax:      idMax,
		Seed:       opts.Seed,
	}
	if err := cfg.Validate(); err != nil {
		reg.Close()
		return bench.Config{}, nil, nil, err
	}
	return cfg, reg, targets, nil
}

// preflight probes every adapter concurrently; one unreachable target
// fails the whole run before anything is dispatched.
func preflight(reg *adapter.Registry) error {
	g, ctx := errgroup.WithContext(context.Background())
	for _, ad := range reg.All() {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, preflightTimeout)
			defer cancel()
			slog.Debug("preflight", "protocol", ad.Protocol())
			if err := ad.Check(cctx); err != nil {
				return &bench.ConnectivityError{Protocol: ad.Protocol(), Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func showProgress(ctx context.Context, run *bench.Run, total int, done <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := run.Recorder().Snapshot()
			pct := float64(snap.Requests) / float64(total)
			fmt.Fprintf(os.Stderr, "\r%s %3.0f%% | %d/%d | OK: %d | Err: %d | p95: %.1fms",
				progressBar(pct, 20), pct*100,
				snap.Requests, total,
				snap.Successes, snap.Failures,
				snap.P95Ms,
			)
		}
	}
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// buildReport aggregates every group and compares per operation across
// protocols, protocols in config order.
func buildReport(run *bench.Run, opts Options, targets map[string]string) *report.Report {
	rec := run.Recorder()
	cfg := run.Config

	groups := make([]stats.Aggregate, 0, len(cfg.Protocols)*len(cfg.Operations))
	byOp := make(map[string][]stats.Aggregate)
	for _, op := range cfg.Operations {
		for _, proto := range cfg.Protocols {
			agg := rec.Aggregate(stats.GroupKey{Protocol: proto, Operation: op})
			groups = append(groups, agg)
			byOp[op] = append(byOp[op], agg)
		}
	}

	var comparisons []*compare.Comparison
	if len(cfg.Protocols) >= 2 {
		for _, op := range cfg.Operations {
			if cmp, err := compare.Compare(byOp[op]); err == nil {
				comparisons = append(comparisons, cmp)
			}
		}
	}

	return &report.Report{
		Meta: report.Meta{
			RunID:       run.ID,
			Timestamp:   time.Now(),
			Requests:    cfg.Iterations,
			UserIDRange: opts.UserIDRange,
			Workers:     cfg.Workers,
			Sequential:  cfg.Sequential,
			Targets:     targets,
			Status:      run.Status().String(),
		},
		Groups:      groups,
		Comparisons: comparisons,
	}
}
