package stats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marregui/logpulse/internal/clf"
)

func entry(method clf.HTTPMethod, resource string, status int, bytesOut int64, ts int64) clf.Entry {
	return clf.Entry{
		Host: "127.0.0.1", Method: method, Resource: resource, Version: "1.1",
		Status: status, Bytes: bytesOut, Timestamp: ts,
	}
}

func TestGeneralStatsAggregatesPerSectionMethodVersionStatus(t *testing.T) {
	events := []clf.Entry{
		entry(clf.MethodGET, "/api/user", 200, 100, 1000),
		entry(clf.MethodGET, "/api/order", 200, 200, 1500),
		entry(clf.MethodPOST, "/api/user", 201, 50, 2000),
		entry(clf.MethodPOST, "/pages/create", 503, 10, 2500),
	}

	var out bytes.Buffer
	g := NewGeneralStats(10, &out)
	g.Execute(1000, 2999, events)

	assert.Equal(t, int64(4), g.LogsCount())
	assert.Equal(t, int64(1000), g.StartTs())
	assert.Equal(t, int64(60), g.InBytes())
	assert.Equal(t, int64(300), g.OutBytes())

	rendered := out.String()
	assert.Contains(t, rendered, "Count: 4")
	assert.Contains(t, rendered, "/api: 3")
	assert.Contains(t, rendered, "GET: 2")
	assert.Contains(t, rendered, "POST: 2")
	assert.Contains(t, rendered, "2xx: 3")
	assert.Contains(t, rendered, "5xx: 1")
}

func TestGeneralStatsEmptyPeriodFallsBackToPeriodBounds(t *testing.T) {
	var out bytes.Buffer
	g := NewGeneralStats(10, &out)
	g.Execute(5000, 6000, nil)

	assert.Equal(t, int64(0), g.LogsCount())
	assert.Equal(t, int64(5000), g.StartTs())
	assert.Contains(t, out.String(), "Count: 0")
}

func TestGeneralStatsResetsBetweenExecuteCalls(t *testing.T) {
	var out bytes.Buffer
	g := NewGeneralStats(10, &out)

	g.Execute(0, 999, []clf.Entry{entry(clf.MethodGET, "/a/b", 200, 5, 0)})
	require.Equal(t, int64(1), g.LogsCount())

	g.Execute(1000, 1999, nil)
	assert.Equal(t, int64(0), g.LogsCount())
	assert.Equal(t, int64(0), g.InBytes())
	assert.Equal(t, int64(0), g.OutBytes())
}

func TestGeneralStatsNilWriterSkipsRenderingButStillAggregates(t *testing.T) {
	g := NewGeneralStats(10, nil)
	g.Execute(0, 999, []clf.Entry{entry(clf.MethodPUT, "/a/b", 200, 42, 0)})

	assert.Equal(t, int64(1), g.LogsCount())
	assert.Equal(t, int64(42), g.InBytes())
}

func TestGeneralStatsDefaultPeriodAppliedForNonPositiveInput(t *testing.T) {
	g := NewGeneralStats(0, nil)
	assert.Equal(t, DefaultGeneralStatsPeriodSecs, g.PeriodSecs())
}

func TestGeneralStatsUnsectionedResourceExcludedFromSectionCounts(t *testing.T) {
	var out bytes.Buffer
	g := NewGeneralStats(10, &out)
	g.Execute(0, 999, []clf.Entry{entry(clf.MethodGET, "/health", 200, 1, 0)})

	assert.NotContains(t, out.String(), "Count per section:")
}

func TestGeneralStatsLastSeenUTCTimestampTracksPeriodEnd(t *testing.T) {
	g := NewGeneralStats(10, nil)
	g.Execute(0, 999, []clf.Entry{entry(clf.MethodGET, "/a/b", 200, 1, 0)})
	assert.Equal(t, int64(999), g.LastSeenUTCTimestamp())
}
