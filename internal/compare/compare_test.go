package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apibench/internal/stats"
)

func agg(protocol, operation string, avgMs float64) stats.Aggregate {
	return stats.Aggregate{
		Protocol:          protocol,
		Operation:         operation,
		Count:             10,
		Successes:         10,
		SuccessRate:       100,
		AvgResponseMs:     avgMs,
		MedianResponseMs:  avgMs,
		P95ResponseMs:     avgMs,
		P99ResponseMs:     avgMs,
		AvgPayloadBytes:   100,
		ThroughputRPS:     50,
		NetworkEfficiency: 100 / avgMs,
	}
}

func findRow(t *testing.T, cmp *Comparison, metric string) Row {
	t.Helper()
	for _, row := range cmp.Rows {
		if row.Metric == metric {
			return row
		}
	}
	t.Fatalf("metric %s not in comparison", metric)
	return Row{}
}

func TestCompare_BaselineDiff(t *testing.T) {
	// A at 10ms as baseline vs B at 15ms: diff +50%, A wins latency.
	a := agg("A", "getUser", 10)
	b := agg("B", "getUser", 15)

	cmp, err := Compare([]stats.Aggregate{a, b})
	require.NoError(t, err)

	assert.Equal(t, "A", cmp.Baseline)
	assert.Equal(t, []string{"A", "B"}, cmp.Groups)

	row := findRow(t, cmp, "avg_response_time")
	assert.Equal(t, "A", row.Winner)
	require.Len(t, row.Values, 2)
	assert.Equal(t, 0.0, row.Values[0].DiffPct)
	assert.InDelta(t, 50.0, row.Values[1].DiffPct, 1e-9)
}

func TestCompare_HigherIsBetterMetrics(t *testing.T) {
	a := agg("A", "getUser", 10)
	b := agg("B", "getUser", 10)
	a.ThroughputRPS = 40
	b.ThroughputRPS = 80
	a.SuccessRate = 90
	b.SuccessRate = 95

	cmp, err := Compare([]stats.Aggregate{a, b})
	require.NoError(t, err)

	assert.Equal(t, "B", findRow(t, cmp, "throughput").Winner)
	assert.Equal(t, "B", findRow(t, cmp, "success_rate").Winner)

	tp := findRow(t, cmp, "throughput")
	assert.InDelta(t, 100.0, tp.Values[1].DiffPct, 1e-9)
}

func TestCompare_TieGoesToBaseline(t *testing.T) {
	a := agg("A", "getUser", 10)
	b := agg("B", "getUser", 10)

	cmp, err := Compare([]stats.Aggregate{a, b})
	require.NoError(t, err)

	for _, row := range cmp.Rows {
		assert.Equal(t, "A", row.Winner, "metric %s", row.Metric)
	}
}

func TestCompare_ThreeGroups(t *testing.T) {
	a := agg("REST", "getUser", 12)
	b := agg("gRPC", "getUser", 6)
	c := agg("GraphQL", "getUser", 18)

	cmp, err := Compare([]stats.Aggregate{a, b, c})
	require.NoError(t, err)

	row := findRow(t, cmp, "avg_response_time")
	assert.Equal(t, "gRPC", row.Winner)
	assert.InDelta(t, -50.0, row.Values[1].DiffPct, 1e-9)
	assert.InDelta(t, 50.0, row.Values[2].DiffPct, 1e-9)
}

func TestCompare_AbsentValuesSkipped(t *testing.T) {
	a := agg("A", "getUser", 10)
	b := agg("B", "getUser", 10)
	b.AvgResponseMs = math.NaN()
	b.MedianResponseMs = math.NaN()

	cmp, err := Compare([]stats.Aggregate{a, b})
	require.NoError(t, err)

	row := findRow(t, cmp, "avg_response_time")
	assert.Equal(t, "A", row.Winner, "group without samples cannot win")
	assert.True(t, math.IsNaN(row.Values[1].DiffPct))
}

func TestCompare_Errors(t *testing.T) {
	a := agg("A", "getUser", 10)

	_, err := Compare([]stats.Aggregate{a})
	assert.Error(t, err)

	b := agg("B", "listUsers", 10)
	_, err = Compare([]stats.Aggregate{a, b})
	assert.Error(t, err)
}
