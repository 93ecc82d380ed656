package logpulse

import (
	"sort"
	"sync"
)

// Cache holds a list of entries ordered ascending by UTC timestamp,
// allowing interval fetch and front eviction. It is the Go equivalent of
// the Java source's ReadoutCache<T>.
//
// AddAll sorts the incoming batch and merges it against the existing
// entries with a stable merge, rather than appending and trusting batch
// order across calls. This is a deliberate deviation from the Java source
// (see DESIGN.md): a raw append only preserves I-1 under the assumption
// that batches never interleave in time, which a file-rotation race can
// violate.
type Cache[T Timestamped] struct {
	mu      sync.RWMutex
	entries []T
	startTs int64
}

// NewCache constructs an empty Cache.
func NewCache[T Timestamped]() *Cache[T] {
	return &Cache[T]{startTs: NoValue}
}

// FirstTimestamp returns the smallest timestamp present, or NoValue.
func (c *Cache[T]) FirstTimestamp() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startTs
}

// FirstTimestampSince returns the smallest timestamp strictly after the
// second containing lastTimestamp, or NoValue if none exists.
func (c *Cache[T]) FirstTimestampSince(lastTimestamp int64) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return NoValue
	}
	idx := slideForward(c.entries, findNearest(c.entries, lastTimestamp)) + 1
	if idx >= len(c.entries) {
		return NoValue
	}
	return c.entries[idx].UTCTimestamp()
}

// Size returns the number of entries currently held.
func (c *Cache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[T]) IsEmpty() bool {
	return c.Size() == 0
}

// AddAll merges batch into the cache, sorted ascending by timestamp,
// ties broken by original (insertion) order. No-op for an empty batch.
func (c *Cache[T]) AddAll(batch []T) {
	if len(batch) == 0 {
		return
	}
	sorted := make([]T, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UTCTimestamp() < sorted[j].UTCTimestamp()
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = mergeStable(c.entries, sorted)
	if c.startTs == NoValue || sorted[0].UTCTimestamp() < c.startTs {
		c.startTs = c.entries[0].UTCTimestamp()
	}
}

// mergeStable merges two already ascending-sorted slices, preferring
// elements of a over b on ties so prior insertion order is preserved.
func mergeStable[T Timestamped](a, b []T) []T {
	if len(a) == 0 {
		return b
	}
	merged := make([]T, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].UTCTimestamp() <= b[j].UTCTimestamp() {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}

// Fetch returns a copy of every entry with timestamp in [startTs, endTs],
// both ends inclusive, preserving order. Empty when the cache is empty.
func (c *Cache[T]) Fetch(startTs, endTs int64) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return nil
	}
	startIdx := slideBack(c.entries, findNearest(c.entries, startTs))
	endIdx := slideForward(c.entries, findNearest(c.entries, endTs))
	if startIdx > endIdx {
		return nil
	}
	out := make([]T, endIdx-startIdx+1)
	copy(out, c.entries[startIdx:endIdx+1])
	return out
}

// FullEvict empties the cache.
func (c *Cache[T]) FullEvict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.startTs = NoValue
}

// Evict drops the first n entries. n >= Size behaves as FullEvict.
func (c *Cache[T]) Evict(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return
	}
	if n >= len(c.entries) {
		c.entries = nil
		c.startTs = NoValue
		return
	}
	c.entries = c.entries[n:]
	c.startTs = c.entries[0].UTCTimestamp()
}

// findNearest performs a binary partition search, returning the index of
// timestamp when present, otherwise the index nearest to it (ties broken
// to the lower index).
func findNearest[T Timestamped](entries []T, timestamp int64) int {
	low, high := 0, len(entries)-1
	if timestamp < entries[low].UTCTimestamp() {
		return low
	}
	if timestamp > entries[high].UTCTimestamp() {
		return high
	}
	for low <= high {
		mid := (low + high) >> 1
		ts := entries[mid].UTCTimestamp()
		switch {
		case timestamp < ts:
			high = mid - 1
		case timestamp > ts:
			low = mid + 1
		default:
			return mid
		}
	}
	if abs64(timestamp-entries[low].UTCTimestamp()) >= abs64(timestamp-entries[high].UTCTimestamp()) {
		return high
	}
	return low
}

// slideBack walks entries backwards from idx while the second-truncated
// timestamp matches that at idx, returning the first index of that second.
func slideBack[T Timestamped](entries []T, idx int) int {
	ts := TruncateToSecond(entries[idx].UTCTimestamp())
	i := idx
	for i >= 0 && TruncateToSecond(entries[i].UTCTimestamp()) == ts {
		i--
	}
	return i + 1
}

// slideForward walks entries forwards from idx while the second-truncated
// timestamp matches that at idx, returning the last index of that second.
func slideForward[T Timestamped](entries []T, idx int) int {
	ts := TruncateToSecond(entries[idx].UTCTimestamp())
	i := idx
	for i < len(entries) && TruncateToSecond(entries[i].UTCTimestamp()) == ts {
		i++
	}
	return i - 1
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
