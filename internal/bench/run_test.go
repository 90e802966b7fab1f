package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apibench/internal/adapter"
)

func TestRun_Lifecycle(t *testing.T) {
	mock := adapter.NewMockAdapter("Mock", 0, 10)
	rn := newTestRunner(t, mock)

	run, err := NewRun(testConfig("Mock", 3))
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, run.Status())
	assert.NotEmpty(t, run.ID)

	require.NoError(t, rn.Execute(context.Background(), run))
	assert.Equal(t, StatusCompleted, run.Status())
	assert.Greater(t, run.Elapsed(), time.Duration(0))
	assert.Equal(t, 3, run.Recorder().Len())
}

func TestRun_CannotRestartTerminal(t *testing.T) {
	mock := adapter.NewMockAdapter("Mock", 0, 10)
	rn := newTestRunner(t, mock)

	run, err := NewRun(testConfig("Mock", 2))
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))
	require.Equal(t, StatusCompleted, run.Status())

	err = rn.Execute(context.Background(), run)
	assert.Error(t, err, "a terminal run must not re-enter RUNNING")
}

func TestRun_ClearResetsTerminalRun(t *testing.T) {
	mock := adapter.NewMockAdapter("Mock", 0, 10)
	rn := newTestRunner(t, mock)

	run, err := NewRun(testConfig("Mock", 4))
	require.NoError(t, err)
	require.NoError(t, rn.Execute(context.Background(), run))

	require.NoError(t, run.Clear())
	assert.Equal(t, StatusNotStarted, run.Status())
	assert.Equal(t, 0, run.Recorder().Len())
	assert.Empty(t, run.Recorder().Groups())

	// A cleared run can be executed again.
	require.NoError(t, rn.Execute(context.Background(), run))
	assert.Equal(t, StatusCompleted, run.Status())
	assert.Equal(t, 4, run.Recorder().Len())
}

func TestRun_ClearBeforeFinishFails(t *testing.T) {
	run, err := NewRun(testConfig("Mock", 2))
	require.NoError(t, err)

	assert.Error(t, run.Clear(), "clear is only valid from a terminal state")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "NOT_STARTED", StatusNotStarted.String())
	assert.Equal(t, "RUNNING", StatusRunning.String())
	assert.Equal(t, "COMPLETED", StatusCompleted.String())
	assert.Equal(t, "CANCELLED", StatusCancelled.String())
	assert.Equal(t, "FAILED", StatusFailed.String())
}
