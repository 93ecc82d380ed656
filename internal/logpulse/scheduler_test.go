package logpulse

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler[testEvent], string) {
	t.Helper()
	base := t.TempDir()
	watchedDir := filepath.Join(base, "watched")
	require.NoError(t, os.Mkdir(watchedDir, 0o755))
	path := filepath.Join(watchedDir, "events.log")
	writeFile(t, path, "")

	tailer := NewTailer[testEvent](path, parseTestLine)
	cache := NewCache[testEvent]()
	dispatcher := NewDispatcher[testEvent](cache, nil)
	sched := NewScheduler[testEvent](tailer, cache, dispatcher, Options{}, nil)
	return sched, path
}

func TestSchedulerStateMachineTransitions(t *testing.T) {
	sched, _ := newTestScheduler(t)

	require.False(t, sched.IsRunning())
	err := sched.Stop()
	require.Error(t, err, "stop from new must fail")

	require.NoError(t, sched.Start())
	require.True(t, sched.IsRunning())

	err = sched.Start()
	require.Error(t, err, "start from running must fail")

	require.NoError(t, sched.Stop())
	require.False(t, sched.IsRunning())

	err = sched.Stop()
	require.Error(t, err, "stop from stopped must fail")

	err = sched.Start()
	require.Error(t, err, "restart from stopped must fail")
}

func TestSchedulerStartFailsWhenParentDirMissing(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "does-not-exist", "events.log")

	tailer := NewTailer[testEvent](missing, parseTestLine)
	cache := NewCache[testEvent]()
	dispatcher := NewDispatcher[testEvent](cache, nil)
	sched := NewScheduler[testEvent](tailer, cache, dispatcher, Options{}, nil)

	err := sched.Start()
	require.Error(t, err)
	require.False(t, sched.IsRunning())
}

// Scenario 5: deleting the parent directory while the scheduler is running
// must be observed within ~2s, after which is_running() is false and
// join_tasks(0) is false.
func TestSchedulerStopsOnParentDirectoryLoss(t *testing.T) {
	sched, path := newTestScheduler(t)
	require.NoError(t, sched.Start())
	defer func() {
		if sched.IsRunning() {
			_ = sched.Stop()
		}
	}()

	require.NoError(t, os.RemoveAll(filepath.Dir(path)))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sched.IsRunning() {
		time.Sleep(20 * time.Millisecond)
	}

	require.False(t, sched.IsRunning(), "scheduler must stop itself within 2s of parent directory loss")
	require.False(t, sched.JoinTasks(0))
}

func TestSchedulerJoinTasksFalseBeforeStart(t *testing.T) {
	sched, _ := newTestScheduler(t)
	require.False(t, sched.JoinTasks(0))
}

// Tail mode with an empty file that exists before start: lines appended
// after start are observed via the watch and reach a registered schedule.
func TestSchedulerTailModeObservesAppendsAfterStart(t *testing.T) {
	sched, path := newTestScheduler(t)
	counter := newRecordingSchedule("every-second", 1)
	require.NoError(t, sched.Register(counter))
	require.NoError(t, sched.Start())
	defer sched.Stop()

	appendFile(t, path, "1000|a\n2000|b\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && counter.totalEvents() == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	require.Greater(t, counter.totalEvents(), 0, "expected the registered schedule to observe appended events")
}
