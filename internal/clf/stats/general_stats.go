// Package stats provides two reference PeriodicSchedule implementations
// over clf.Entry: GeneralStats, a rolling traffic summary, and
// HighTrafficGauge, an edge-triggered rate alert. Both are grounded on the
// Java source's clf/stats package.
package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/marregui/logpulse/internal/clf"
	"github.com/marregui/logpulse/internal/logpulse"
)

// DefaultGeneralStatsPeriodSecs matches the Java source's default.
const DefaultGeneralStatsPeriodSecs = 10

// StatusCategory buckets an HTTP status code into its leading digit class.
type StatusCategory string

const (
	StatusInformational StatusCategory = "1xx"
	StatusSuccess        StatusCategory = "2xx"
	StatusRedirection    StatusCategory = "3xx"
	StatusClientError    StatusCategory = "4xx"
	StatusServerError    StatusCategory = "5xx"
	StatusUnknown        StatusCategory = "unknown"
)

// categoryOf classifies an HTTP status code, mirroring
// GeneralStats.StatusCategory.valueOf.
func categoryOf(status int) StatusCategory {
	switch {
	case status >= 100 && status < 200:
		return StatusInformational
	case status >= 200 && status < 300:
		return StatusSuccess
	case status >= 300 && status < 400:
		return StatusRedirection
	case status >= 400 && status < 500:
		return StatusClientError
	case status >= 500 && status < 600:
		return StatusServerError
	default:
		return StatusUnknown
	}
}

// GeneralStats accumulates per-period traffic counters: hits by section,
// HTTP method, HTTP version and status category, plus in/out byte totals.
// It implements logpulse.PeriodicSchedule[clf.Entry].
type GeneralStats struct {
	mu sync.Mutex

	periodSecs int
	out        io.Writer

	startTs, endTs int64
	logsCount      int64
	inBytes        int64
	outBytes       int64

	perSection        map[string]int64
	perMethod         map[clf.HTTPMethod]int64
	perVersion        map[string]int64
	perStatusCategory map[StatusCategory]int64
}

// NewGeneralStats constructs a GeneralStats that writes a rendered
// snapshot to out after every Execute call. A nil out disables rendering
// (the schedule still accumulates and exposes its counters).
func NewGeneralStats(periodSecs int, out io.Writer) *GeneralStats {
	if periodSecs <= 0 {
		periodSecs = DefaultGeneralStatsPeriodSecs
	}
	return &GeneralStats{periodSecs: periodSecs, out: out}
}

func (g *GeneralStats) Name() string   { return "General HTTP Traffic Statistics" }
func (g *GeneralStats) PeriodSecs() int { return g.periodSecs }

func (g *GeneralStats) LastSeenUTCTimestamp() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.endTs
}

// Execute resets the rolling counters, aggregates events, and — if a
// writer was provided — renders a snapshot.
func (g *GeneralStats) Execute(periodStart, periodEnd int64, events []clf.Entry) {
	g.mu.Lock()
	g.reset()
	if len(events) == 0 {
		g.startTs = periodStart
		g.endTs = periodEnd
	}
	for _, e := range events {
		if g.startTs == 0 {
			g.startTs = e.Timestamp
		}
		if g.endTs == 0 {
			g.endTs = periodEnd
		}
		if section := e.Section(); section != "" {
			g.perSection[section]++
		}
		g.perVersion[e.Version]++
		g.perStatusCategory[categoryOf(e.Status)]++
		g.perMethod[e.Method]++
		switch e.Method {
		case clf.MethodGET, clf.MethodHEAD, clf.MethodOPTIONS, clf.MethodDELETE:
			g.outBytes += e.Bytes
		case clf.MethodPUT, clf.MethodPOST, clf.MethodPATCH:
			g.inBytes += e.Bytes
		}
		g.logsCount++
	}
	snapshot := g.renderLocked()
	g.mu.Unlock()

	if g.out != nil {
		fmt.Fprint(g.out, snapshot)
	}
}

func (g *GeneralStats) reset() {
	g.inBytes, g.outBytes, g.logsCount = 0, 0, 0
	g.startTs, g.endTs = 0, 0
	g.perSection = make(map[string]int64)
	g.perMethod = make(map[clf.HTTPMethod]int64)
	g.perVersion = make(map[string]int64)
	g.perStatusCategory = make(map[StatusCategory]int64)
}

// StartTs returns the UTC timestamp of the period's first observed event,
// or the period_start handed to Execute when no events arrived.
func (g *GeneralStats) StartTs() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startTs
}

// LogsCount returns the number of events aggregated in the current period.
func (g *GeneralStats) LogsCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logsCount
}

// InBytes returns bytes attributed to PUT/POST/PATCH requests this period.
func (g *GeneralStats) InBytes() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inBytes
}

// OutBytes returns bytes attributed to GET/HEAD/OPTIONS/DELETE requests
// this period.
func (g *GeneralStats) OutBytes() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outBytes
}

func (g *GeneralStats) renderLocked() string {
	var sb strings.Builder
	header := g.Name()
	fmt.Fprintln(&sb, header)
	fmt.Fprintln(&sb, strings.Repeat("=", len(header)))
	fmt.Fprintf(&sb, "Period: %d seconds\n", g.periodSecs)
	fmt.Fprintf(&sb, "From: %s\n", logpulse.FormatForDisplay(g.startTs))
	fmt.Fprintf(&sb, "To: %s\n", logpulse.FormatForDisplay(g.endTs))
	fmt.Fprintf(&sb, "Count: %d\n", g.logsCount)
	fmt.Fprintf(&sb, "Logs per second: %.2f\n", float64(g.logsCount)/float64(g.periodSecs))

	appendCounts(&sb, "Count per section:", toAnyCounts(g.perSection))
	appendCounts(&sb, "Count per method:", toAnyMethodCounts(g.perMethod))
	appendCounts(&sb, "Count per version:", toAnyCounts(g.perVersion))
	appendCounts(&sb, "Count per status category:", toAnyStatusCounts(g.perStatusCategory))

	in, out := g.inBytes, g.outBytes
	fmt.Fprintf(&sb, "Total received (POST, PUT, PATCH): %s (%s/s)\n",
		humanize.Bytes(uint64(in)), humanize.Bytes(uint64(float64(in)/float64(g.periodSecs))))
	fmt.Fprintf(&sb, "Total sent (GET, HEAD, OPTIONS, DELETE): %s (%s/s)\n",
		humanize.Bytes(uint64(out)), humanize.Bytes(uint64(float64(out)/float64(g.periodSecs))))
	fmt.Fprintf(&sb, "Total IO: %s\n", humanize.Bytes(uint64(in+out)))
	return sb.String()
}

type labelCount struct {
	label string
	count int64
}

func toAnyCounts(m map[string]int64) []labelCount {
	out := make([]labelCount, 0, len(m))
	for k, v := range m {
		out = append(out, labelCount{k, v})
	}
	return out
}

func toAnyMethodCounts(m map[clf.HTTPMethod]int64) []labelCount {
	out := make([]labelCount, 0, len(m))
	for k, v := range m {
		out = append(out, labelCount{string(k), v})
	}
	return out
}

func toAnyStatusCounts(m map[StatusCategory]int64) []labelCount {
	out := make([]labelCount, 0, len(m))
	for k, v := range m {
		out = append(out, labelCount{string(k), v})
	}
	return out
}

// appendCounts writes title followed by entries sorted descending by
// count (ties broken by label), matching the Java view's
// valueSortedRepresentation. A title whose entries are empty is omitted.
func appendCounts(sb *strings.Builder, title string, entries []labelCount) {
	if len(entries) == 0 {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].label < entries[j].label
	})
	fmt.Fprintln(sb, title)
	for _, e := range entries {
		fmt.Fprintf(sb, "  %s: %d\n", e.label, e.count)
	}
}

var _ logpulse.PeriodicSchedule[clf.Entry] = (*GeneralStats)(nil)
