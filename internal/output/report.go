// Package output renders run reports and live progress for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/torosent/wsbench/internal/metrics"
	"github.com/torosent/wsbench/internal/threshold"
)

// ThresholdSummary is the machine-readable form of threshold results.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

// ThresholdResultJSON is one evaluated threshold.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// document is what the JSON and YAML encoders write.
type document struct {
	metrics.Report `yaml:",inline"`
	Thresholds     *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report metrics.Report) {
	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Ok:                %d\n", report.Ok)
	fmt.Fprintf(w, "Err:               %d\n", report.Err)
	fmt.Fprintf(w, "Total:             %d\n", report.Total)
	fmt.Fprintf(w, "Elapsed time:      %.2f s\n", report.ElapsedSeconds)
	fmt.Fprintf(w, "Connections:       %d\n", report.Connections)
	if report.FailedConnections > 0 {
		fmt.Fprintf(w, "Failed to connect: %d of %d\n", report.FailedConnections, report.Connections)
	}
	fmt.Fprintf(w, "Msg len:           %s\n", humanize.Bytes(uint64(report.PayloadBytes)))
	fmt.Fprintf(w, "Requests/sec:      %.2f rps\n", report.RequestsPerSec)
	fmt.Fprintf(w, "Throughput:        %.2f Mbit/sec\n", report.ThroughputMbps)

	if report.Latency.Count > 0 {
		fmt.Fprintln(w, "\nSend latency:")
		fmt.Fprintf(w, "  Min:             %s\n", report.Latency.Min)
		fmt.Fprintf(w, "  Max:             %s\n", report.Latency.Max)
		fmt.Fprintf(w, "  Mean:            %s\n", report.Latency.Mean)
		fmt.Fprintf(w, "  P50:             %s\n", report.Latency.P50)
		fmt.Fprintf(w, "  P90:             %s\n", report.Latency.P90)
		fmt.Fprintf(w, "  P99:             %s\n", report.Latency.P99)
	}

	if report.FramesReceived > 0 {
		fmt.Fprintln(w, "\nResponses:")
		fmt.Fprintf(w, "  Received:        %d\n", report.FramesReceived)
		fmt.Fprintf(w, "  Sampled:         %d\n", report.FramesSampled)
	}

	if len(report.ConnectErrors) > 0 {
		fmt.Fprintln(w, "\nConnection Errors:")
		writeErrorCounts(w, report.ConnectErrors)
	}
	if len(report.Errors) > 0 {
		fmt.Fprintln(w, "\nSend Errors:")
		writeErrorCounts(w, report.Errors)
	}
}

// PrintThresholds prints one line per threshold and a pass/fail tally.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	passed := 0
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "  %d of %d passed\n", passed, len(results))
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report metrics.Report, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(report, results))
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report metrics.Report, results []threshold.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(report, results)); err != nil {
		return err
	}
	return enc.Close()
}

func newDocument(report metrics.Report, results []threshold.Result) document {
	doc := document{Report: report}
	if len(results) == 0 {
		return doc
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	doc.Thresholds = summary
	return doc
}

func writeErrorCounts(w io.Writer, rows []metrics.ErrorCount) {
	for _, row := range rows {
		fmt.Fprintf(w, "  %6d  %s\n", row.Count, row.Message)
	}
}
