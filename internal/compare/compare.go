// Package compare derives relative differences and per-metric winners
// from the aggregate statistics of groups sharing one operation. It is
// purely functional: nothing here mutates its inputs.
package compare

import (
	"encoding/json"
	"fmt"
	"math"

	"apibench/internal/stats"
)

// Metric is one compared dimension. Lower says whether a smaller value
// wins (latency-type metrics) or a larger one does (throughput-type).
type Metric struct {
	Name  string
	Unit  string
	Lower bool
	value func(stats.Aggregate) float64
}

// Metrics is the fixed comparison table, in report order.
var Metrics = []Metric{
	{"avg_response_time", "ms", true, func(a stats.Aggregate) float64 { return a.AvgResponseMs }},
	{"median_response_time", "ms", true, func(a stats.Aggregate) float64 { return a.MedianResponseMs }},
	{"p95_response_time", "ms", true, func(a stats.Aggregate) float64 { return a.P95ResponseMs }},
	{"p99_response_time", "ms", true, func(a stats.Aggregate) float64 { return a.P99ResponseMs }},
	{"avg_payload_size", "bytes", true, func(a stats.Aggregate) float64 { return a.AvgPayloadBytes }},
	{"success_rate", "%", false, func(a stats.Aggregate) float64 { return a.SuccessRate }},
	{"throughput", "req/s", false, func(a stats.Aggregate) float64 { return a.ThroughputRPS }},
	{"network_efficiency", "bytes/ms", false, func(a stats.Aggregate) float64 { return a.NetworkEfficiency }},
}

// Value is one group's reading for one metric. DiffPct is relative to
// the baseline group: (value - baseline) / baseline * 100. The baseline
// group's own DiffPct is 0; it is NaN when the baseline is 0 or either
// side is absent.
type Value struct {
	Group   string
	Value   float64
	DiffPct float64
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Group   string   `json:"group"`
		Value   *float64 `json:"value"`
		DiffPct *float64 `json:"diff_pct"`
	}{v.Group, nullable(v.Value), nullable(v.DiffPct)})
}

// Row is the comparison of one metric across all groups.
type Row struct {
	Metric string  `json:"metric"`
	Unit   string  `json:"unit"`
	Values []Value `json:"values"`
	Winner string  `json:"winner"`
}

// Comparison is the full table for one operation.
type Comparison struct {
	Operation string   `json:"operation"`
	Baseline  string   `json:"baseline"`
	Groups    []string `json:"groups"`
	Rows      []Row    `json:"rows"`
}

// Compare builds the table for two or more groups sharing an operation.
// The first group is the baseline. A tie on a metric goes to the
// earliest group in input order, so the baseline wins exact ties.
func Compare(aggs []stats.Aggregate) (*Comparison, error) {
	if len(aggs) < 2 {
		return nil, fmt.Errorf("comparison needs at least 2 groups, got %d", len(aggs))
	}
	op := aggs[0].Operation
	for _, a := range aggs[1:] {
		if a.Operation != op {
			return nil, fmt.Errorf("cannot compare operations %q and %q", op, a.Operation)
		}
	}

	cmp := &Comparison{
		Operation: op,
		Baseline:  aggs[0].Protocol,
	}
	for _, a := range aggs {
		cmp.Groups = append(cmp.Groups, a.Protocol)
	}

	for _, m := range Metrics {
		base := m.value(aggs[0])
		row := Row{Metric: m.Name, Unit: m.Unit}

		winner := ""
		best := math.NaN()
		for i, a := range aggs {
			v := m.value(a)
			val := Value{Group: a.Protocol, Value: v}
			if i == 0 {
				if !math.IsNaN(v) {
					val.DiffPct = 0
				} else {
					val.DiffPct = math.NaN()
				}
			} else {
				val.DiffPct = diffPct(base, v)
			}
			row.Values = append(row.Values, val)

			if math.IsNaN(v) {
				continue
			}
			if winner == "" || better(m.Lower, v, best) {
				winner = a.Protocol
				best = v
			}
		}
		row.Winner = winner
		cmp.Rows = append(cmp.Rows, row)
	}
	return cmp, nil
}

func diffPct(base, other float64) float64 {
	if math.IsNaN(base) || math.IsNaN(other) || base == 0 {
		return math.NaN()
	}
	return (other - base) / base * 100
}

// better reports whether v strictly beats best; equal values do not, so
// the earlier group keeps the win.
func better(lower bool, v, best float64) bool {
	if lower {
		return v < best
	}
	return v > best
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
