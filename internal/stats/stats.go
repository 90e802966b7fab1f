package stats

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// GroupKey identifies one aggregation bucket.
type GroupKey struct {
	Protocol  string `json:"protocol"`
	Operation string `json:"operation"`
}

func (k GroupKey) String() string {
	return k.Protocol + "/" + k.Operation
}

// Result is the outcome of one timed call. Immutable once created.
type Result struct {
	Protocol     string    `json:"protocol"`
	Operation    string    `json:"operation"`
	ResponseMs   float64   `json:"response_time"`
	PayloadBytes int       `json:"payload_size"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Key returns the result's group key.
func (r Result) Key() GroupKey {
	return GroupKey{Protocol: r.Protocol, Operation: r.Operation}
}

// Aggregate is the derived summary for one group. Latency and payload
// statistics cover successful calls only; counters cover everything.
// Fields holding NaN mean "no successful samples".
type Aggregate struct {
	Protocol  string `json:"protocol"`
	Operation string `json:"operation"`

	Count       int     `json:"total_requests"`
	Successes   int     `json:"successful_requests"`
	Failures    int     `json:"failed_requests"`
	SuccessRate float64 `json:"success_rate"`

	AvgResponseMs    float64 `json:"avg_response_time"`
	MinResponseMs    float64 `json:"min_response_time"`
	MaxResponseMs    float64 `json:"max_response_time"`
	MedianResponseMs float64 `json:"median_response_time"`
	P95ResponseMs    float64 `json:"p95_response_time"`
	P99ResponseMs    float64 `json:"p99_response_time"`
	StddevResponseMs float64 `json:"stddev_response_time"`

	AvgPayloadBytes float64 `json:"avg_payload_size"`
	TotalBytes      int64   `json:"total_bytes_transferred"`

	ThroughputRPS     float64 `json:"throughput"`
	TransferRateBps   float64 `json:"data_transfer_rate"`
	NetworkEfficiency float64 `json:"network_efficiency"`

	DurationSec float64 `json:"total_duration"`

	Errors map[string]int `json:"errors"`
}

// Percentile returns the nearest-rank percentile of a sorted sample
// list: index = ceil(p/100 x n) - 1, clamped to [0, n-1]. NaN for an
// empty list.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// Compute derives an Aggregate from the raw samples of one group. It is
// pure and idempotent: calling it twice over the same samples yields an
// identical value. duration is the wall-clock span of the group's
// dispatch phase and feeds throughput and transfer rate.
func Compute(key GroupKey, results []Result, duration time.Duration) Aggregate {
	agg := Aggregate{
		Protocol:  key.Protocol,
		Operation: key.Operation,
		Errors:    map[string]int{},

		AvgResponseMs:     math.NaN(),
		MinResponseMs:     math.NaN(),
		MaxResponseMs:     math.NaN(),
		MedianResponseMs:  math.NaN(),
		P95ResponseMs:     math.NaN(),
		P99ResponseMs:     math.NaN(),
		StddevResponseMs:  math.NaN(),
		AvgPayloadBytes:   math.NaN(),
		NetworkEfficiency: math.NaN(),
		DurationSec:       duration.Seconds(),
	}

	var times []float64
	for _, r := range results {
		agg.Count++
		if r.Success {
			agg.Successes++
			times = append(times, r.ResponseMs)
			agg.TotalBytes += int64(r.PayloadBytes)
		} else {
			agg.Failures++
			kind := r.ErrorKind
			if kind == "" {
				kind = "Unknown"
			}
			agg.Errors[kind]++
		}
	}

	if agg.Count > 0 {
		agg.SuccessRate = float64(agg.Successes) / float64(agg.Count) * 100
	}
	if agg.Successes == 0 {
		return agg
	}

	sorted := make([]float64, len(times))
	copy(sorted, times)
	sort.Float64s(sorted)

	agg.MinResponseMs = sorted[0]
	agg.MaxResponseMs = sorted[len(sorted)-1]
	agg.AvgResponseMs = mean(times)
	agg.MedianResponseMs = Percentile(sorted, 50)
	agg.P95ResponseMs = Percentile(sorted, 95)
	agg.P99ResponseMs = Percentile(sorted, 99)
	agg.StddevResponseMs = sampleStddev(times, agg.AvgResponseMs)

	agg.AvgPayloadBytes = float64(agg.TotalBytes) / float64(agg.Successes)
	if duration > 0 {
		agg.ThroughputRPS = float64(agg.Successes) / duration.Seconds()
		agg.TransferRateBps = float64(agg.TotalBytes) / duration.Seconds()
	}
	if agg.AvgResponseMs > 0 {
		agg.NetworkEfficiency = agg.AvgPayloadBytes / agg.AvgResponseMs
	}
	return agg
}

func mean(series []float64) float64 {
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// sampleStddev is the n-1 standard deviation; 0 for fewer than 2
// samples.
func sampleStddev(series []float64, mean float64) float64 {
	if len(series) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)-1))
}

// MarshalJSON renders NaN latency fields as null, since a group with no
// successful samples must still export cleanly.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	type alias struct {
		Protocol  string `json:"protocol"`
		Operation string `json:"operation"`

		Count       int     `json:"total_requests"`
		Successes   int     `json:"successful_requests"`
		Failures    int     `json:"failed_requests"`
		SuccessRate float64 `json:"success_rate"`

		AvgResponseMs    *float64 `json:"avg_response_time"`
		MinResponseMs    *float64 `json:"min_response_time"`
		MaxResponseMs    *float64 `json:"max_response_time"`
		MedianResponseMs *float64 `json:"median_response_time"`
		P95ResponseMs    *float64 `json:"p95_response_time"`
		P99ResponseMs    *float64 `json:"p99_response_time"`
		StddevResponseMs *float64 `json:"stddev_response_time"`

		AvgPayloadBytes *float64 `json:"avg_payload_size"`
		TotalBytes      int64    `json:"total_bytes_transferred"`

		ThroughputRPS     float64  `json:"throughput"`
		TransferRateBps   float64  `json:"data_transfer_rate"`
		NetworkEfficiency *float64 `json:"network_efficiency"`

		DurationSec float64 `json:"total_duration"`

		Errors map[string]int `json:"errors"`
	}

	out := alias{
		Protocol:          a.Protocol,
		Operation:         a.Operation,
		Count:             a.Count,
		Successes:         a.Successes,
		Failures:          a.Failures,
		SuccessRate:       a.SuccessRate,
		AvgResponseMs:     nullable(a.AvgResponseMs),
		MinResponseMs:     nullable(a.MinResponseMs),
		MaxResponseMs:     nullable(a.MaxResponseMs),
		MedianResponseMs:  nullable(a.MedianResponseMs),
		P95ResponseMs:     nullable(a.P95ResponseMs),
		P99ResponseMs:     nullable(a.P99ResponseMs),
		StddevResponseMs:  nullable(a.StddevResponseMs),
		AvgPayloadBytes:   nullable(a.AvgPayloadBytes),
		TotalBytes:        a.TotalBytes,
		ThroughputRPS:     a.ThroughputRPS,
		TransferRateBps:   a.TransferRateBps,
		NetworkEfficiency: nullable(a.NetworkEfficiency),
		DurationSec:       a.DurationSec,
		Errors:            a.Errors,
	}
	return json.Marshal(out)
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
