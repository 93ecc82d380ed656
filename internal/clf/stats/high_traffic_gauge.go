package stats

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/marregui/logpulse/internal/clf"
	"github.com/marregui/logpulse/internal/logpulse"
)

// DefaultTrafficGaugePeriodSecs matches the Java source's default.
const DefaultTrafficGaugePeriodSecs = 120

// DefaultTrafficGaugeThresholdRPS matches the Java source's default.
const DefaultTrafficGaugeThresholdRPS = 10.0

// HighTrafficGauge reports when the average requests-per-second over a
// period crosses above a threshold, and again when it falls back below
// it. It implements logpulse.PeriodicSchedule[clf.Entry].
//
// The edge-triggered reporting granularity is per-second, not per-event:
// Execute buckets its events into one-second groups (by truncating each
// timestamp to the second) and recomputes the running average each time a
// new bucket starts, exactly mirroring the Java source's HighTrafficGauge.
type HighTrafficGauge struct {
	mu sync.Mutex

	out        io.Writer
	periodSecs int
	threshold  float64

	thresholdCrossed  bool
	lastSeenTimestamp int64
}

// NewHighTrafficGauge constructs a HighTrafficGauge. A nil out disables
// reporting.
func NewHighTrafficGauge(out io.Writer, periodSecs int, thresholdRPS float64) *HighTrafficGauge {
	if periodSecs <= 0 {
		periodSecs = DefaultTrafficGaugePeriodSecs
	}
	if thresholdRPS <= 0 {
		thresholdRPS = DefaultTrafficGaugeThresholdRPS
	}
	return &HighTrafficGauge{out: out, periodSecs: periodSecs, threshold: thresholdRPS}
}

func (h *HighTrafficGauge) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("High Traffic Gauge (%.2f req. per sec.)", h.threshold)
}

func (h *HighTrafficGauge) PeriodSecs() int { return h.periodSecs }

func (h *HighTrafficGauge) LastSeenUTCTimestamp() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeenTimestamp
}

// SetThreshold updates the requests-per-second average threshold.
func (h *HighTrafficGauge) SetThreshold(thresholdRPS float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threshold = thresholdRPS
}

// Threshold returns the current requests-per-second average threshold.
func (h *HighTrafficGauge) Threshold() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.threshold
}

// Execute buckets events into one-second groups and emits a report each
// time the running average crosses the threshold in either direction. The
// reported timestamp is the offending event's own timestamp, not the
// bucket boundary, matching the Java source exactly.
func (h *HighTrafficGauge) Execute(periodStart, periodEnd int64, events []clf.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSeenTimestamp = periodEnd
	if len(events) == 0 {
		return
	}

	threshold := h.threshold
	nextSecBoundary := logpulse.TruncateToSecond(events[0].UTCTimestamp()) + 1000
	grpIdx := 0
	hitsPerSec := 0
	sumHits := 0

	for _, event := range events {
		ts := logpulse.TruncateToSecond(event.UTCTimestamp())
		if ts >= nextSecBoundary {
			sumHits += hitsPerSec
			avgReqPerSec := float64(sumHits) / float64(grpIdx+1)

			if avgReqPerSec > threshold && !h.thresholdCrossed {
				h.thresholdCrossed = true
				offendingIdx := sumHits - hitsPerSec + int(math.Floor(threshold))
				offendingTs := events[offendingIdx].UTCTimestamp()
				h.report("High Traffic", offendingIdx, avgReqPerSec, offendingTs)
			}
			if avgReqPerSec < threshold && h.thresholdCrossed {
				h.thresholdCrossed = false
				offendingTs := events[sumHits].UTCTimestamp()
				h.report("Traffic is back to normal", sumHits, avgReqPerSec, offendingTs)
			}

			grpIdx++
			hitsPerSec = 0
			nextSecBoundary = ts + 1000
		}
		hitsPerSec++
	}
}

func (h *HighTrafficGauge) report(message string, hits int, avg float64, ts int64) {
	if h.out == nil {
		return
	}
	fmt.Fprintf(h.out, "%s: %s - hits = {%d}, avg: %.2f, triggered: {%s}\n",
		fmt.Sprintf("High Traffic Gauge (%.2f req. per sec.)", h.threshold),
		message, hits, avg, logpulse.FormatForDisplay(ts))
}

var _ logpulse.PeriodicSchedule[clf.Entry] = (*HighTrafficGauge)(nil)
