package pipeline

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/atomic"
)

const latencyWindow = 256

// Stats are the pipeline's running counters.
type Stats struct {
	FramesReceived      uint64
	FramesDisplayed     uint64
	ConversionFailures  uint64
	DisplayDrops        uint64
	DetectionsSubmitted uint64
	DetectionsSkipped   uint64
	DetectionsFailed    uint64
	ResultsApplied      uint64
	ResultsDiscarded    uint64
	// Detection latencies over the most recent detections.
	DetectionLatencyP50 time.Duration
	DetectionLatencyP95 time.Duration
}

type counters struct {
	framesReceived      atomic.Uint64
	framesDisplayed     atomic.Uint64
	conversionFailures  atomic.Uint64
	displayDrops        atomic.Uint64
	detectionsSubmitted atomic.Uint64
	detectionsSkipped   atomic.Uint64
	detectionsFailed    atomic.Uint64
	resultsApplied      atomic.Uint64
	resultsDiscarded    atomic.Uint64

	mu        sync.Mutex
	latencies []float64
	next      int
}

func (c *counters) recordLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := float64(d) / float64(time.Millisecond)
	if len(c.latencies) < latencyWindow {
		c.latencies = append(c.latencies, ms)
		return
	}
	c.latencies[c.next] = ms
	c.next = (c.next + 1) % latencyWindow
}

func (c *counters) percentile(p float64) time.Duration {
	c.mu.Lock()
	data := append(stats.Float64Data(nil), c.latencies...)
	c.mu.Unlock()
	if len(data) == 0 {
		return 0
	}
	v, err := stats.Percentile(data, p)
	if err != nil {
		return 0
	}
	return time.Duration(v * float64(time.Millisecond))
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesReceived:      c.framesReceived.Load(),
		FramesDisplayed:     c.framesDisplayed.Load(),
		ConversionFailures:  c.conversionFailures.Load(),
		DisplayDrops:        c.displayDrops.Load(),
		DetectionsSubmitted: c.detectionsSubmitted.Load(),
		DetectionsSkipped:   c.detectionsSkipped.Load(),
		DetectionsFailed:    c.detectionsFailed.Load(),
		ResultsApplied:      c.resultsApplied.Load(),
		ResultsDiscarded:    c.resultsDiscarded.Load(),
		DetectionLatencyP50: c.percentile(50),
		DetectionLatencyP95: c.percentile(95),
	}
}
