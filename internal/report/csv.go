package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// groupHeader is the fixed field order for group records.
var groupHeader = []string{
	"protocol", "operation",
	"total_requests", "successful_requests", "failed_requests", "success_rate",
	"avg_response_time", "min_response_time", "max_response_time",
	"median_response_time", "p95_response_time", "p99_response_time",
	"stddev_response_time",
	"avg_payload_size", "total_bytes_transferred",
	"throughput", "data_transfer_rate", "network_efficiency",
	"total_duration", "errors",
}

// comparisonHeader is the fixed field order for comparison records.
var comparisonHeader = []string{
	"operation", "metric", "unit", "baseline", "baseline_value",
	"group", "value", "winner", "diff_pct",
}

func renderCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(groupHeader); err != nil {
		return err
	}
	for _, g := range rep.Groups {
		errJSON, _ := json.Marshal(g.Errors)
		rec := []string{
			g.Protocol, g.Operation,
			strconv.Itoa(g.Count), strconv.Itoa(g.Successes), strconv.Itoa(g.Failures),
			f2(g.SuccessRate),
			f2(g.AvgResponseMs), f2(g.MinResponseMs), f2(g.MaxResponseMs),
			f2(g.MedianResponseMs), f2(g.P95ResponseMs), f2(g.P99ResponseMs),
			f2(g.StddevResponseMs),
			f2(g.AvgPayloadBytes), strconv.FormatInt(g.TotalBytes, 10),
			f2(g.ThroughputRPS), f2(g.TransferRateBps), f2(g.NetworkEfficiency),
			f2(g.DurationSec), string(errJSON),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	if len(rep.Comparisons) > 0 {
		if err := cw.Write(comparisonHeader); err != nil {
			return err
		}
		for _, cmp := range rep.Comparisons {
			for _, row := range cmp.Rows {
				baseline := row.Values[0]
				for _, v := range row.Values[1:] {
					rec := []string{
						cmp.Operation, row.Metric, row.Unit,
						baseline.Group, f2(baseline.Value),
						v.Group, f2(v.Value),
						row.Winner, f2(v.DiffPct),
					}
					if err := cw.Write(rec); err != nil {
						return err
					}
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// f2 formats a float with 2 decimals; NaN renders empty, the CSV idea
// of "absent".
func f2(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.2f", v)
}
