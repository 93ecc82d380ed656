package logpulse

import (
	"strconv"
	"time"
)

// NoValue marks the absence of a timestamp in the cache (the Java source's
// ReadoutCache.NO_VALUE).
const NoValue int64 = -1

// TruncateToSecond drops the sub-second precision of a UTC Epoch millis
// timestamp, the granularity the cache's slide operations reason about.
func TruncateToSecond(ts int64) int64 {
	return (ts / 1000) * 1000
}

// DateTimeLayout is the canonical numeric-month rendering of a timestamp,
// matching the Java source's DATETIME_OUT formatter.
const DateTimeLayout = "02/01/2006:15:04:05 -0700"

// FormatForDisplay renders a UTC Epoch millis timestamp as
// "{DateTimeLayout} ({epoch millis})", e.g. "09/05/2018:16:00:39 +0000 (1525881639000)".
func FormatForDisplay(ts int64) string {
	if ts == NoValue {
		return "none"
	}
	t := time.UnixMilli(ts).UTC()
	return t.Format(DateTimeLayout) + " (" + strconv.FormatInt(ts, 10) + ")"
}
