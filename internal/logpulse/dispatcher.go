package logpulse

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// noEvictTick is the sentinel lastEvictTick value meaning "no eviction has
// ever happened", chosen so that noEvictTick+1 never equals a real tick
// (ticks start at 1).
const noEvictTick int64 = -2

// dispatchQueueCapacity bounds how many pending schedule-execution tasks
// the serial worker will buffer before Dispatch starts blocking on submit.
// A full queue means the dispatch worker has fallen far behind, which
// should be visible as backpressure rather than unbounded growth.
const dispatchQueueCapacity = 64

// Dispatcher fires registered PeriodicSchedules against a Cache on a tick
// cadence, running their Execute callbacks serially on a single worker so
// schedules always observe strictly ascending-period ordering within a
// tick. It is the Go equivalent of the Java source's SchedulesProcessor.
type Dispatcher[T Timestamped] struct {
	cache  *Cache[T]
	logger *slog.Logger

	mu        sync.Mutex
	schedules []PeriodicSchedule[T]

	lastEvictTick int64

	taskCh chan func()
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDispatcher constructs a Dispatcher over cache and starts its serial
// worker goroutine. logger may be nil, in which case slog.Default() is
// used.
func NewDispatcher[T Timestamped](cache *Cache[T], logger *slog.Logger) *Dispatcher[T] {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher[T]{
		cache:         cache,
		logger:        logger,
		lastEvictTick: noEvictTick,
		taskCh:        make(chan func(), dispatchQueueCapacity),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher[T]) run() {
	defer close(d.doneCh)
	for {
		select {
		case task, ok := <-d.taskCh:
			if !ok {
				return
			}
			d.runTask(task)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher[T]) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("schedule execution panicked", slog.Any("panic", r))
		}
	}()
	task()
}

// Stop signals the serial worker to exit and waits up to timeout for it to
// drain its current task. Returns true if the worker stopped within
// timeout.
func (d *Dispatcher[T]) Stop(timeout time.Duration) bool {
	close(d.stopCh)
	select {
	case <-d.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Register validates schedule and adds it to the dispatcher's registry,
// sorted by ascending PeriodSecs(). Ties keep registration order, which is
// how the dispatcher settles on a single "longest" schedule when more than
// one shares the maximum period.
func (d *Dispatcher[T]) Register(schedule PeriodicSchedule[T]) error {
	if schedule.PeriodSecs() <= 0 {
		return fmt.Errorf("logpulse: schedule %q has non-positive period_secs %d", schedule.Name(), schedule.PeriodSecs())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schedules = append(d.schedules, schedule)
	sort.SliceStable(d.schedules, func(i, j int) bool {
		return d.schedules[i].PeriodSecs() < d.schedules[j].PeriodSecs()
	})
	return nil
}

// ScheduleOfLongestPeriod returns the schedule with the greatest
// PeriodSecs() among those registered, or nil if none are registered.
// Among ties, the most recently registered one wins, matching Register's
// stable-sort tie-break.
func (d *Dispatcher[T]) ScheduleOfLongestPeriod() PeriodicSchedule[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.schedules) == 0 {
		return nil
	}
	return d.schedules[len(d.schedules)-1]
}

// ReadyCount reports how many registered schedules are ready to fire at
// tick, i.e. have tick % PeriodSecs() == 0.
func (d *Dispatcher[T]) ReadyCount(tick int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.schedules {
		if IsInSchedule(tick, s.PeriodSecs()) {
			n++
		}
	}
	return n
}

// Dispatch runs exactly once per tick. It computes the set of ready
// schedules, derives each one's [period_start, period_end] window from the
// cache, submits its Execute call to the serial worker, and — for the
// longest schedule, when this tick also divides evenly into its period and
// the cache is non-empty — queues a trailing cache eviction sized to what
// that schedule observed. Dispatch does not wait for the worker to run the
// tasks; it only enqueues, and blocks only while the queue already holds
// dispatchQueueCapacity pending tasks.
func (d *Dispatcher[T]) Dispatch(tick int64) {
	d.mu.Lock()
	schedules := make([]PeriodicSchedule[T], len(d.schedules))
	copy(schedules, d.schedules)
	d.mu.Unlock()

	var ready []PeriodicSchedule[T]
	for _, s := range schedules {
		if IsInSchedule(tick, s.PeriodSecs()) {
			ready = append(ready, s)
		}
	}
	if len(ready) == 0 {
		return
	}

	longest := schedules[len(schedules)-1]

	canEvictNow := !d.cache.IsEmpty() && IsInSchedule(tick, longest.PeriodSecs())
	if canEvictNow {
		d.lastEvictTick = tick
	}

	for _, s := range ready {
		periodStart := d.computePeriodStart(s, longest, tick)

		var periodEnd int64 = NoValue
		var events []T
		if periodStart != NoValue {
			periodEnd = periodStart + int64(s.PeriodSecs()-1)*1000
			events = d.cache.Fetch(periodStart, periodEnd)
		}

		execStart, execEnd := periodStart, periodEnd
		if execStart == NoValue {
			now := time.Now().UnixMilli()
			execStart, execEnd = now, now
		}

		name := s.Name()
		evictOnSuccess := s == longest && canEvictNow
		evictCount := len(events)

		d.taskCh <- func() {
			d.execute(name, s, execStart, execEnd, events)
			if evictOnSuccess {
				d.cache.Evict(evictCount)
			}
		}
	}
}

func (d *Dispatcher[T]) computePeriodStart(s, longest PeriodicSchedule[T], tick int64) int64 {
	if s == longest || s.LastSeenUTCTimestamp() == 0 || (d.lastEvictTick != noEvictTick && tick == d.lastEvictTick+1) {
		return d.cache.FirstTimestamp()
	}
	return d.cache.FirstTimestampSince(s.LastSeenUTCTimestamp())
}

func (d *Dispatcher[T]) execute(name string, s PeriodicSchedule[T], periodStart, periodEnd int64, events []T) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("schedule execute failed", slog.String("schedule", name), slog.Any("panic", r))
		}
	}()
	s.Execute(periodStart, periodEnd, events)
}
