// Package report renders aggregate statistics and comparisons. It is a
// formatting boundary only: no computation happens here.
package report

import (
	"fmt"
	"io"
	"time"

	"apibench/internal/compare"
	"apibench/internal/stats"
)

// Format selects the output rendering.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
)

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatConsole, FormatJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want console, json or csv)", s)
	}
}

// Meta echoes the run configuration into the report header.
type Meta struct {
	RunID       string            `json:"run_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Requests    int               `json:"requests_per_group"`
	UserIDRange string            `json:"user_id_range"`
	Workers     int               `json:"workers"`
	Sequential  bool              `json:"sequential"`
	Targets     map[string]string `json:"targets"`
	Status      string            `json:"status"`
}

// Report is everything one run produces, ready to render.
type Report struct {
	Meta        Meta                  `json:"test_metadata"`
	Groups      []stats.Aggregate     `json:"groups"`
	Comparisons []*compare.Comparison `json:"comparison"`
}

// Render writes the report in the chosen format.
func Render(w io.Writer, f Format, rep *Report) error {
	switch f {
	case FormatJSON:
		return renderJSON(w, rep)
	case FormatCSV:
		return renderCSV(w, rep)
	default:
		return renderConsole(w, rep)
	}
}
