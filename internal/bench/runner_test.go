package bench

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apibench/internal/adapter"
	"apibench/internal/stats"
)

func testConfig(protocol string, iterations int) Config {
	return Config{
		Protocols:  []string{protocol},
		Operations: []string{adapter.OpGetUser},
		Iterations: iterations,
		Workers:    10,
		IDMin:      1,
		IDMax:      100,
		Seed:       42,
	}
}

func newTestRunner(t *testing.T, ads ...adapter.Adapter) *Runner {
	t.Helper()
	reg := adapter.NewRegistry()
	for _, ad := range ads {
		reg.Register(ad)
	}
	return NewRunner(reg, nil)
}

func TestRunner_AllSucceed(t *testing.T) {
	// 10 iterations against a 5ms/100-byte mock: everything succeeds,
	// avg latency is at least the mock latency, payload is exact.
	mock := adapter.NewMockAdapter("Mock", 5*time.Millisecond, 100)
	rn := newTestRunner(t, mock)

	run, err := NewRun(testConfig("Mock", 10))
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))

	assert.Equal(t, StatusCompleted, run.Status())

	agg := run.Recorder().Aggregate(stats.GroupKey{Protocol: "Mock", Operation: adapter.OpGetUser})
	assert.Equal(t, 10, agg.Count)
	assert.Equal(t, 10, agg.Successes)
	assert.InDelta(t, 100.0, agg.SuccessRate, 1e-9)
	assert.Equal(t, 100.0, agg.AvgPayloadBytes)
	assert.GreaterOrEqual(t, agg.AvgResponseMs, 5.0)
	assert.Less(t, agg.AvgResponseMs, 100.0)
	assert.LessOrEqual(t, agg.MinResponseMs, agg.AvgResponseMs)
	assert.LessOrEqual(t, agg.AvgResponseMs, agg.MaxResponseMs)
}

func TestRunner_PartialFailures(t *testing.T) {
	// Calls 3 and 7 fail with Transport; the run still completes and
	// the failures are isolated to their results.
	mock := adapter.NewMockAdapter("Mock", 0, 100).
		FailOn(3, adapter.KindTransport).
		FailOn(7, adapter.KindTransport)
	rn := newTestRunner(t, mock)

	cfg := testConfig("Mock", 10)
	cfg.Sequential = true
	run, err := NewRun(cfg)
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))

	assert.Equal(t, StatusCompleted, run.Status())

	agg := run.Recorder().Aggregate(stats.GroupKey{Protocol: "Mock", Operation: adapter.OpGetUser})
	assert.Equal(t, 10, agg.Count)
	assert.Equal(t, 8, agg.Successes)
	assert.Equal(t, 2, agg.Failures)
	assert.InDelta(t, 80.0, agg.SuccessRate, 1e-9)
	assert.Equal(t, map[string]int{"Transport": 2}, agg.Errors)
}

func TestRunner_ConcurrencyCorrectness(t *testing.T) {
	// N tasks through pools of different widths: exactly N results,
	// no duplicates, no losses, at every worker count.
	const n = 1000
	for _, workers := range []int{1, 10, 100} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			mock := adapter.NewMockAdapter("Mock", 5*time.Millisecond, 10)
			rn := newTestRunner(t, mock)

			cfg := testConfig("Mock", n)
			cfg.Workers = workers
			run, err := NewRun(cfg)
			require.NoError(t, err)
			require.NoError(t, rn.Execute(context.Background(), run))

			require.Equal(t, StatusCompleted, run.Status())
			assert.Equal(t, int64(n), mock.Calls())

			results := run.Recorder().Results(stats.GroupKey{Protocol: "Mock", Operation: adapter.OpGetUser})
			assert.Len(t, results, n)
		})
	}
}

// orderedAdapter tags each response payload with its call number so
// tests can observe result ordering.
type orderedAdapter struct {
	adapter.MockAdapter
	seq atomic.Int64
}

func (o *orderedAdapter) Protocol() string { return "Ordered" }

func (o *orderedAdapter) Execute(ctx context.Context, operation string, p adapter.Params) (*adapter.Response, error) {
	n := int(o.seq.Add(1))
	body := make([]byte, n)
	return &adapter.Response{Body: body, Size: n}, nil
}

func (o *orderedAdapter) PayloadSize(resp *adapter.Response) int { return resp.Size }

func TestRunner_SequentialPreservesRequestOrder(t *testing.T) {
	ad := &orderedAdapter{}
	rn := newTestRunner(t, ad)

	cfg := testConfig("Ordered", 50)
	cfg.Sequential = true
	run, err := NewRun(cfg)
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))

	results := run.Recorder().Results(stats.GroupKey{Protocol: "Ordered", Operation: adapter.OpGetUser})
	require.Len(t, results, 50)
	for i, res := range results {
		assert.Equal(t, i+1, res.PayloadBytes, "result %d out of order", i)
	}
}

func TestRunner_Cancellation(t *testing.T) {
	mock := adapter.NewMockAdapter("Mock", 20*time.Millisecond, 10)
	rn := newTestRunner(t, mock)

	cfg := testConfig("Mock", 500)
	cfg.Workers = 4
	run, err := NewRun(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, rn.Execute(ctx, run))

	assert.Equal(t, StatusCancelled, run.Status())
	collected := run.Recorder().Len()
	assert.Greater(t, collected, 0, "in-flight calls must finish and be recorded")
	assert.Less(t, collected, 500, "no new dispatch after cancellation")
}

func TestRunner_PerCallTimeout(t *testing.T) {
	mock := adapter.NewMockAdapter("Mock", 100*time.Millisecond, 10)
	rn := newTestRunner(t, mock)

	cfg := testConfig("Mock", 5)
	cfg.Sequential = true
	cfg.Timeout = 10 * time.Millisecond
	run, err := NewRun(cfg)
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))

	assert.Equal(t, StatusCompleted, run.Status())

	agg := run.Recorder().Aggregate(stats.GroupKey{Protocol: "Mock", Operation: adapter.OpGetUser})
	assert.Equal(t, 5, agg.Count)
	assert.Equal(t, 5, agg.Failures)
	assert.Equal(t, map[string]int{"Timeout": 5}, agg.Errors)
}

func TestRunner_UnknownProtocolFails(t *testing.T) {
	rn := newTestRunner(t) // empty registry

	run, err := NewRun(testConfig("Nope", 5))
	require.NoError(t, err)

	err = rn.Execute(context.Background(), run)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, run.Status())
}

func TestRunner_SharedIDSequenceAcrossGroups(t *testing.T) {
	// With a pinned seed, both protocols must receive the same ID for
	// the same iteration index.
	var idsA, idsB []int64
	rn := newTestRunner(t,
		&captureAdapter{name: "A", ids: &idsA},
		&captureAdapter{name: "B", ids: &idsB},
	)

	cfg := Config{
		Protocols:  []string{"A", "B"},
		Operations: []string{adapter.OpGetUser},
		Iterations: 20,
		Sequential: true,
		IDMin:      1,
		IDMax:      1000,
		Seed:       7,
	}
	run, err := NewRun(cfg)
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))

	require.Len(t, idsA, 20)
	assert.Equal(t, idsA, idsB)
}

type captureAdapter struct {
	name string
	ids  *[]int64
}

func (c *captureAdapter) Protocol() string { return c.name }

func (c *captureAdapter) Execute(ctx context.Context, operation string, p adapter.Params) (*adapter.Response, error) {
	*c.ids = append(*c.ids, p.UserID)
	return &adapter.Response{Body: []byte("ok"), Size: 2}, nil
}

func (c *captureAdapter) PayloadSize(resp *adapter.Response) int { return resp.Size }
func (c *captureAdapter) Check(ctx context.Context) error        { return nil }
func (c *captureAdapter) Close() error                           { return nil }
