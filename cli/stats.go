package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"go.viam.com/facebox/pipeline"
)

func statsTable(stats pipeline.Stats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Counter", "Value"})
	t.AppendRows([]table.Row{
		{"frames received", stats.FramesReceived},
		{"frames displayed", stats.FramesDisplayed},
		{"conversion failures", stats.ConversionFailures},
		{"display drops", stats.DisplayDrops},
		{"detections submitted", stats.DetectionsSubmitted},
		{"detections skipped", stats.DetectionsSkipped},
		{"detections failed", stats.DetectionsFailed},
		{"results applied", stats.ResultsApplied},
		{"results discarded", stats.ResultsDiscarded},
		{"detection latency p50", stats.DetectionLatencyP50},
		{"detection latency p95", stats.DetectionLatencyP95},
	})
	return t.Render()
}
