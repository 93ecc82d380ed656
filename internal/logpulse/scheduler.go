package logpulse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

type schedulerState int32

const (
	stateNew schedulerState = iota
	stateRunning
	stateStopped
)

const (
	tickTargetMillis      = 999
	initialTickAdjustment = 10
	shutdownJoinTimeout   = 200 * time.Millisecond
)

// Options configures a Scheduler's start-up behaviour.
type Options struct {
	// ReadFromStart, when true, has the tailer consume the file's existing
	// contents on start instead of the default tail-mode behaviour of
	// skipping straight to the current end of file.
	ReadFromStart bool
}

// Scheduler composes a Tailer, a Cache and a Dispatcher into the soft
// real-time tick loop described by the Java source's Scheduler, running a
// file-system watch on the tailed file's parent directory and driving
// ingestion and dispatch on their own serial workers. It is safe for
// concurrent use by multiple goroutines for IsRunning/JoinTasks/Stop.
type Scheduler[T Timestamped] struct {
	tailer     *Tailer[T]
	cache      *Cache[T]
	dispatcher *Dispatcher[T]
	opts       Options
	logger     *slog.Logger
	instanceID uuid.UUID

	state         atomic.Int32
	dataAvailable atomic.Bool
	tick          int64
	adjustment    int64

	watcher *fsnotify.Watcher

	ingestCh          chan func()
	ingestStopCh      chan struct{}
	ingestDoneCh      chan struct{}
	runningTasksCount atomic.Int32

	tickLoopDoneCh chan struct{}
	tickLoopStopCh chan struct{}

	mu sync.Mutex // guards Start/Stop transitions
}

// NewScheduler constructs a Scheduler over tailer, cache and dispatcher.
// logger may be nil, in which case slog.Default() is used.
func NewScheduler[T Timestamped](tailer *Tailer[T], cache *Cache[T], dispatcher *Dispatcher[T], opts Options, logger *slog.Logger) *Scheduler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler[T]{
		tailer:     tailer,
		cache:      cache,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		adjustment: initialTickAdjustment,
	}
}

// Register forwards to the underlying Dispatcher's Register.
func (s *Scheduler[T]) Register(schedule PeriodicSchedule[T]) error {
	return s.dispatcher.Register(schedule)
}

// IsRunning reports whether the scheduler is currently in the running
// state.
func (s *Scheduler[T]) IsRunning() bool {
	return schedulerState(s.state.Load()) == stateRunning
}

// Start transitions the scheduler from new to running: it verifies the
// watched file's parent directory is accessible, registers a file-system
// watch on it, positions the tailer per Options.ReadFromStart, and spawns
// the ingestion and tick-loop workers.
func (s *Scheduler[T]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch schedulerState(s.state.Load()) {
	case stateRunning:
		return errors.New("logpulse: already running")
	case stateStopped:
		return errors.New("logpulse: already stopped")
	}

	parentDir := s.tailer.ParentDir()
	if !directoryAccessible(parentDir) {
		return fmt.Errorf("logpulse: cannot access parent directory %s", parentDir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("logpulse: could not start file watch: %w", err)
	}
	if err := watcher.Add(parentDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("logpulse: could not watch %s: %w", parentDir, err)
	}
	s.watcher = watcher

	if s.opts.ReadFromStart {
		s.tailer.MoveToStart()
	} else {
		s.tailer.MoveToEnd()
	}

	s.instanceID = uuid.New()
	s.tick = 1
	s.adjustment = initialTickAdjustment
	s.dataAvailable.Store(false)

	s.ingestCh = make(chan func(), dispatchQueueCapacity)
	s.ingestStopCh = make(chan struct{})
	s.ingestDoneCh = make(chan struct{})
	go s.runIngestionWorker()

	s.tickLoopStopCh = make(chan struct{})
	s.tickLoopDoneCh = make(chan struct{})
	go s.runTickLoop()

	s.state.Store(int32(stateRunning))
	s.logger.Info("scheduler started",
		slog.String("instance_id", s.instanceID.String()),
		slog.String("file", s.tailer.Path()))
	return nil
}

// Stop transitions the scheduler from running to stopped, cancelling the
// file-system watch, signalling the tick loop to exit, and bounding the
// wait for the ingestion and dispatch workers to drain.
func (s *Scheduler[T]) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Scheduler[T]) stopLocked() error {
	if schedulerState(s.state.Load()) != stateRunning {
		return errors.New("logpulse: not running")
	}
	s.logger.Info("scheduler stopping", slog.String("instance_id", s.instanceID.String()))

	s.state.Store(int32(stateStopped))
	close(s.tickLoopStopCh)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}

	select {
	case <-s.tickLoopDoneCh:
	case <-time.After(shutdownJoinTimeout):
	}

	close(s.ingestStopCh)
	select {
	case <-s.ingestDoneCh:
	case <-time.After(shutdownJoinTimeout):
	}

	s.dispatcher.Stop(shutdownJoinTimeout)
	s.logger.Info("scheduler stopped", slog.String("instance_id", s.instanceID.String()))
	return nil
}

// stopFromWithinLoop is called by the tick loop itself (parent directory
// loss, watch service closed) where stopLocked's own teardown of the tick
// loop would deadlock waiting on its own goroutine.
func (s *Scheduler[T]) stopFromWithinLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schedulerState(s.state.Load()) != stateRunning {
		return
	}
	s.state.Store(int32(stateStopped))
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	close(s.ingestStopCh)
	select {
	case <-s.ingestDoneCh:
	case <-time.After(shutdownJoinTimeout):
	}
	s.dispatcher.Stop(shutdownJoinTimeout)
	s.logger.Info("scheduler stopped", slog.String("instance_id", s.instanceID.String()))
}

// JoinTasks waits up to timeout for in-flight ingestion tasks to drain.
// Returns true if either the scheduler is still running when the wait
// ends (whether by tasks draining or by timing out) and false if it is no
// longer running at all. timeout <= 0 means no deadline: the wait polls
// every 100ms until the tasks drain or the scheduler stops running.
func (s *Scheduler[T]) JoinTasks(timeout time.Duration) bool {
	var deadline time.Time
	var delta time.Duration
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		delta = timeout / 4
	} else {
		deadline = time.Now().Add(365 * 24 * time.Hour)
		delta = 100 * time.Millisecond
	}
	for s.IsRunning() && s.runningTasksCount.Load() > 0 {
		if time.Now().After(deadline) {
			return true
		}
		time.Sleep(delta)
	}
	return s.IsRunning()
}

func (s *Scheduler[T]) runIngestionWorker() {
	defer close(s.ingestDoneCh)
	for {
		select {
		case task, ok := <-s.ingestCh:
			if !ok {
				return
			}
			s.runningTasksCount.Add(1)
			s.runIngestTask(task)
			s.runningTasksCount.Add(-1)
		case <-s.ingestStopCh:
			return
		}
	}
}

func (s *Scheduler[T]) runIngestTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingestion task panicked", slog.Any("panic", r))
		}
	}()
	task()
}

func (s *Scheduler[T]) submitIngest(task func()) {
	select {
	case s.ingestCh <- task:
	case <-s.ingestStopCh:
	}
}

func (s *Scheduler[T]) runTickLoop() {
	defer close(s.tickLoopDoneCh)
	for {
		select {
		case <-s.tickLoopStopCh:
			return
		default:
		}

		t0 := time.Now()
		timeout := time.Duration(tickTargetMillis+1-s.adjustment) * time.Millisecond
		if timeout < 0 {
			timeout = 0
		}

		watcherClosed := s.pollWatch(timeout)
		if watcherClosed {
			s.logger.Error("watch service closed unexpectedly")
			go s.stopFromWithinLoop()
			return
		}

		elapsed := time.Since(t0).Milliseconds()
		if elapsed < 1000 {
			sleepFor := time.Duration(999-elapsed) * time.Millisecond
			if sleepFor > 0 {
				select {
				case <-time.After(sleepFor):
				case <-s.tickLoopStopCh:
					return
				}
			}
			s.adjustment -= 2
			if s.adjustment < 0 {
				s.adjustment = 0
			}
		} else if elapsed > 1000 {
			s.adjustment += elapsed - 1000
		}

		if s.dataAvailable.Load() {
			s.dispatcher.Dispatch(s.tick)
			s.tick++
		}

		if !directoryAccessible(s.tailer.ParentDir()) {
			s.logger.Info("parent directory is not accessible, stopping")
			go s.stopFromWithinLoop()
			return
		}
	}
}

// pollWatch blocks for up to timeout waiting for a file-system event
// matching the watched file, handling it inline or via the ingestion
// worker per event kind. Returns true if the watch's event channel was
// closed, signalling the caller to treat the watch service as dead.
func (s *Scheduler[T]) pollWatch(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return true
			}
			if !s.tailer.FileMatches(event.Name) {
				continue
			}
			s.handleWatchEvent(event)
			return false

		case werr, ok := <-s.watcher.Errors:
			if !ok {
				return true
			}
			s.logger.Warn("watch error", slog.Any("error", werr))
			return false

		case <-timer.C:
			return false

		case <-s.tickLoopStopCh:
			return false
		}
	}
}

func (s *Scheduler[T]) handleWatchEvent(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		s.submitIngest(func() {
			s.cache.FullEvict()
			s.tailer.MoveToStart()
			events, parseErrs, err := s.tailer.FetchAvailableLines()
			if err != nil {
				s.logger.Warn("readout failed after create", slog.Any("error", err))
				return
			}
			s.logParseErrors(parseErrs)
			s.cache.AddAll(events)
			if !s.cache.IsEmpty() {
				s.dataAvailable.Store(true)
			}
		})

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		s.cache.FullEvict()
		s.tailer.MoveToStart()
		s.dataAvailable.Store(false)

	case event.Op&fsnotify.Write != 0:
		s.submitIngest(func() {
			events, parseErrs, err := s.tailer.FetchAvailableLines()
			if err != nil {
				s.logger.Warn("readout failed", slog.Any("error", err))
				return
			}
			s.logParseErrors(parseErrs)
			s.cache.AddAll(events)
			if !s.cache.IsEmpty() {
				s.dataAvailable.CompareAndSwap(false, true)
			}
		})

	default:
		s.logger.Debug("ignoring unrecognised watch event", slog.String("op", event.Op.String()))
	}
}

// logParseErrors warns on every malformed line a readout skipped, including
// its byte offset and raw text, so a bad line is never dropped silently.
func (s *Scheduler[T]) logParseErrors(parseErrs []*ParseError) {
	for _, pe := range parseErrs {
		s.logger.Warn("skipping malformed line",
			slog.Int64("offset", pe.Offset),
			slog.String("line", pe.Line),
			slog.Any("error", pe.Err))
	}
}

// directoryAccessible reports whether path exists, is a directory, and is
// both readable and executable (able to list its entries) — the Go
// equivalent of the Java source's exists/isDirectory/isReadable/isExecutable
// check on the watched file's parent folder.
func directoryAccessible(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	return true
}
