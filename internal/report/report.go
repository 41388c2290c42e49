package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/proxy-bench/internal/stats"
)

var json = jsoniter.ConfigFastest

// Options controls rendering. Expected and Wall are optional run facts shown
// in verbose text output and included in JSON when set.
type Options struct {
	Format   string // "text" (default) or "json"
	Verbose  bool
	Expected int64
	Wall     time.Duration
}

// Render writes the report to w.
func Render(w io.Writer, r stats.Report, opts Options) error {
	if opts.Format == "json" {
		return renderJSON(w, r, opts)
	}
	return renderText(w, r, opts)
}

func renderText(w io.Writer, r stats.Report, opts Options) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	header := "Outcome\tCount\tTotal\tMax\tAverage\tMin"
	if opts.Verbose {
		header += "\tp50\tp90\tp99"
	}
	fmt.Fprintln(tw, header)

	for _, key := range r.PerKey.Keys() {
		s := r.PerKey[key]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s", key, s.Count,
			fmtDuration(s.Total), fmtDuration(s.Max), fmtDuration(s.Average()), fmtDuration(s.Min))
		if opts.Verbose {
			fmt.Fprintf(tw, "\t%s\t%s\t%s",
				fmtDuration(s.Percentile(50)), fmtDuration(s.Percentile(90)), fmtDuration(s.Percentile(99)))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	b.WriteString(strings.Repeat("=", 60) + "\n")
	if opts.Verbose {
		if opts.Expected > 0 {
			fmt.Fprintf(&b, "Expected quantity: %d\n", opts.Expected)
		}
		fmt.Fprintf(&b, "Real quantity:     %d\n", r.TotalCount)
		if opts.Wall > 0 {
			fmt.Fprintf(&b, "Wall time:         %s\n", fmtDuration(opts.Wall))
			fmt.Fprintf(&b, "Requests/second:   %.2f\n", float64(r.TotalCount)/opts.Wall.Seconds())
		}
	}
	fmt.Fprintf(&b, "Total time:   %s\n", fmtDuration(r.TotalTime))
	fmt.Fprintf(&b, "Total count:  %d\n", r.TotalCount)
	fmt.Fprintf(&b, "Average time: %s\n", fmtDuration(r.Average()))

	_, err := io.WriteString(w, b.String())
	return err
}

func fmtDuration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

type jsonOutcome struct {
	Key       string  `json:"key"`
	Count     int64   `json:"count"`
	TotalMs   float64 `json:"total_ms"`
	MaxMs     float64 `json:"max_ms"`
	AverageMs float64 `json:"average_ms"`
	MinMs     float64 `json:"min_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P90Ms     float64 `json:"p90_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

type jsonReport struct {
	Outcomes          []jsonOutcome `json:"outcomes"`
	TotalTimeMs       float64       `json:"total_time_ms"`
	TotalCount        int64         `json:"total_count"`
	AverageMs         float64       `json:"average_ms"`
	Expected          int64         `json:"expected,omitempty"`
	WallTimeMs        float64       `json:"wall_time_ms,omitempty"`
	RequestsPerSecond float64       `json:"requests_per_second,omitempty"`
}

func renderJSON(w io.Writer, r stats.Report, opts Options) error {
	out := jsonReport{
		Outcomes:    make([]jsonOutcome, 0, len(r.PerKey)),
		TotalTimeMs: millis(r.TotalTime),
		TotalCount:  r.TotalCount,
		AverageMs:   millis(r.Average()),
		Expected:    opts.Expected,
	}
	if opts.Wall > 0 {
		out.WallTimeMs = millis(opts.Wall)
		out.RequestsPerSecond = float64(r.TotalCount) / opts.Wall.Seconds()
	}

	for _, key := range r.PerKey.Keys() {
		s := r.PerKey[key]
		out.Outcomes = append(out.Outcomes, jsonOutcome{
			Key:       key,
			Count:     s.Count,
			TotalMs:   millis(s.Total),
			MaxMs:     millis(s.Max),
			AverageMs: millis(s.Average()),
			MinMs:     millis(s.Min),
			P50Ms:     millis(s.Percentile(50)),
			P90Ms:     millis(s.Percentile(90)),
			P99Ms:     millis(s.Percentile(99)),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	_, err = w.Write(data)
	return err
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
