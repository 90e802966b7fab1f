package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console palette, static rendering.
var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorGood    = lipgloss.Color("#04B575")
	colorBad     = lipgloss.Color("#FF5F87")
	colorSubtle  = lipgloss.Color("#767676")

	styleTitle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleValue  = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	styleError  = lipgloss.NewStyle().Foreground(colorBad)
	styleSubtle = lipgloss.NewStyle().Foreground(colorSubtle)
)

const rule = "================================================================================"

func renderConsole(w io.Writer, rep *Report) error {
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString(styleTitle.Render("API BENCHMARK RESULTS") + "\n")
	b.WriteString(rule + "\n")
	b.WriteString("Test Configuration:\n")
	fmt.Fprintf(&b, "  - Run ID:              %s\n", rep.Meta.RunID)
	fmt.Fprintf(&b, "  - Requests per Group:  %d\n", rep.Meta.Requests)
	fmt.Fprintf(&b, "  - User ID Range:       %s\n", rep.Meta.UserIDRange)
	if rep.Meta.Sequential {
		b.WriteString("  - Mode:                sequential\n")
	} else {
		fmt.Fprintf(&b, "  - Mode:                parallel (%d workers)\n", rep.Meta.Workers)
	}
	targets := make([]string, 0, len(rep.Meta.Targets))
	for proto := range rep.Meta.Targets {
		targets = append(targets, proto)
	}
	sort.Strings(targets)
	for _, proto := range targets {
		fmt.Fprintf(&b, "  - %-8s target:     %s\n", proto, rep.Meta.Targets[proto])
	}
	fmt.Fprintf(&b, "  - Status:              %s\n", rep.Meta.Status)
	fmt.Fprintf(&b, "  - Test Time:           %s\n", rep.Meta.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("\n")

	for _, g := range rep.Groups {
		b.WriteString(rule + "\n")
		b.WriteString(styleTitle.Render(fmt.Sprintf("%s / %s", g.Protocol, g.Operation)) + "\n")
		b.WriteString(rule + "\n")
		fmt.Fprintf(&b, "Success Rate:         %s (%d/%d requests)\n",
			styleValue.Render(fmt.Sprintf("%.1f%%", g.SuccessRate)), g.Successes, g.Count)
		fmt.Fprintf(&b, "Average Response:     %s ms\n", ms(g.AvgResponseMs))
		fmt.Fprintf(&b, "Median Response:      %s ms\n", ms(g.MedianResponseMs))
		fmt.Fprintf(&b, "P95 Response:         %s ms\n", ms(g.P95ResponseMs))
		fmt.Fprintf(&b, "P99 Response:         %s ms\n", ms(g.P99ResponseMs))
		fmt.Fprintf(&b, "Min Response:         %s ms\n", ms(g.MinResponseMs))
		fmt.Fprintf(&b, "Max Response:         %s ms\n", ms(g.MaxResponseMs))
		fmt.Fprintf(&b, "Std Deviation:        %s ms\n", ms(g.StddevResponseMs))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Avg Payload Size:     %s bytes\n", num(g.AvgPayloadBytes, 0))
		fmt.Fprintf(&b, "Total Transferred:    %d bytes\n", g.TotalBytes)
		fmt.Fprintf(&b, "Throughput:           %.1f req/s\n", g.ThroughputRPS)
		fmt.Fprintf(&b, "Transfer Rate:        %.1f KB/s\n", g.TransferRateBps/1024)
		fmt.Fprintf(&b, "Network Efficiency:   %s bytes/ms\n", num(g.NetworkEfficiency, 2))

		if len(g.Errors) > 0 {
			b.WriteString("\n")
			fmt.Fprintf(&b, "Failed Requests:      %d\n", g.Failures)
			b.WriteString("Errors:\n")
			kinds := make([]string, 0, len(g.Errors))
			for k := range g.Errors {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				b.WriteString(styleError.Render(fmt.Sprintf("  - %s: %d", k, g.Errors[k])) + "\n")
			}
		}
		b.WriteString("\n")
	}

	for _, cmp := range rep.Comparisons {
		b.WriteString(rule + "\n")
		b.WriteString(styleTitle.Render("COMPARISON: "+cmp.Operation) + "\n")
		b.WriteString(rule + "\n")
		fmt.Fprintf(&b, "Baseline: %s\n", cmp.Baseline)

		fmt.Fprintf(&b, "%-22s", "Metric")
		for _, g := range cmp.Groups {
			fmt.Fprintf(&b, " %-14s", g)
		}
		fmt.Fprintf(&b, " %-10s %s\n", "Winner", "Diff vs Baseline")
		b.WriteString(styleSubtle.Render(strings.Repeat("-", 80)) + "\n")

		for _, row := range cmp.Rows {
			fmt.Fprintf(&b, "%-22s", row.Metric+" ("+row.Unit+")")
			for _, v := range row.Values {
				fmt.Fprintf(&b, " %-14s", num(v.Value, 2))
			}
			diffs := make([]string, 0, len(row.Values)-1)
			for _, v := range row.Values[1:] {
				diffs = append(diffs, fmt.Sprintf("%s: %s%%", v.Group, signed(v.DiffPct)))
			}
			fmt.Fprintf(&b, " %-10s %s\n", styleValue.Render(row.Winner), strings.Join(diffs, ", "))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func ms(v float64) string {
	return num(v, 2)
}

func num(v float64, prec int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func signed(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%+.1f", v)
}
