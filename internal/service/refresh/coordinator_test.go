package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-tracker/internal/domain/tracking"
)

var errFetchFailed = errors.New("test fetch error")

// fakeSource is a controllable Source implementation for tests.
type fakeSource struct {
	// mu protects the fields below.
	mu sync.Mutex
	// err is returned from Fetch when set.
	err error
	// snapshots is returned from Fetch on success.
	snapshots []tracking.PersonSnapshot
	// calls counts Fetch invocations.
	calls int
	// inFlight and maxInFlight track concurrent Fetch calls to prove at
	// most one loop instance is ever active.
	inFlight    int
	maxInFlight int
}

// Fetch returns the configured result and records call concurrency.
func (f *fakeSource) Fetch(context.Context) ([]tracking.PersonSnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++

	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}

	err := f.err
	snapshots := f.snapshots
	f.mu.Unlock()

	// Give overlapping loop instances a chance to collide.
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	return snapshots, err
}

// callCount returns the number of Fetch invocations so far.
func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// setError swaps the error returned by subsequent Fetch calls.
func (f *fakeSource) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.err = err
}

// fakeSink records every snapshot list it receives.
type fakeSink struct {
	// mu protects evaluations.
	mu sync.Mutex
	// evaluations counts Evaluate invocations.
	evaluations int
}

// Evaluate records one delivery.
func (f *fakeSink) Evaluate(context.Context, []tracking.PersonSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.evaluations++
}

// newTestCoordinator builds a coordinator with millisecond cadence for tests.
func newTestCoordinator(source *fakeSource, sink *fakeSink) *Coordinator {
	return NewCoordinator(source, sink,
		WithInterval(2*time.Millisecond),
		WithMaxConsecutiveErrors(3),
	)
}

// TestCoordinator_RunsOnlyWithWatchers asserts the loop runs iff the net
// watcher count is positive.
func TestCoordinator_RunsOnlyWithWatchers(t *testing.T) {
	t.Parallel()

	source := new(fakeSource)
	sink := new(fakeSink)
	c := newTestCoordinator(source, sink)

	require.False(t, c.IsRunning())

	c.StartWatching(context.Background())
	c.StartWatching(context.Background())
	require.True(t, c.IsRunning())
	require.Equal(t, 2, c.Status().Watchers)

	require.Eventually(t, func() bool {
		return source.callCount() > 0
	}, time.Second, time.Millisecond)

	// One of two watchers leaving keeps the loop alive.
	c.StopWatching()
	require.True(t, c.IsRunning())

	// The last watcher leaving stops it.
	c.StopWatching()
	require.False(t, c.IsRunning())

	// Let an in-flight fetch drain, then verify no further iterations run.
	time.Sleep(5 * time.Millisecond)

	calls := source.callCount()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, calls, source.callCount())

	// Extra StopWatching calls never drive the count negative.
	c.StopWatching()
	require.Equal(t, 0, c.Status().Watchers)
}

// TestCoordinator_SuspendResume verifies suspend pauses without touching the
// watcher count and resume yields exactly one loop instance.
func TestCoordinator_SuspendResume(t *testing.T) {
	t.Parallel()

	source := new(fakeSource)
	sink := new(fakeSink)
	c := newTestCoordinator(source, sink)

	c.StartWatching(context.Background())
	require.True(t, c.IsRunning())

	c.SuspendForBackground()
	require.False(t, c.IsRunning())
	require.Equal(t, 1, c.Status().Watchers)

	// Cancellation is cooperative; let the in-flight fetch complete before
	// resuming so instance overlap would be a real defect.
	time.Sleep(5 * time.Millisecond)

	// Resuming does not require re-registration.
	c.ResumeForForeground(context.Background())
	require.True(t, c.IsRunning())

	// A redundant resume must not spawn a second instance.
	c.ResumeForForeground(context.Background())

	require.Eventually(t, func() bool {
		return source.callCount() >= 3
	}, time.Second, time.Millisecond)

	source.mu.Lock()
	maxInFlight := source.maxInFlight
	source.mu.Unlock()
	require.LessOrEqual(t, maxInFlight, 1)

	c.StopWatching()
}

// TestCoordinator_CircuitBreaker verifies the loop halts after the failure
// limit, stays halted, and resumes only via RestartIfNeeded.
func TestCoordinator_CircuitBreaker(t *testing.T) {
	t.Parallel()

	source := &fakeSource{err: errFetchFailed}
	sink := new(fakeSink)
	c := newTestCoordinator(source, sink)

	c.StartWatching(context.Background())

	require.Eventually(t, func() bool {
		return c.Status().Stopped
	}, time.Second, time.Millisecond)

	status := c.Status()
	require.False(t, status.IsRunning)
	require.False(t, status.LastFetchSucceeded)
	require.Equal(t, StoppedMessage, status.StoppedMessage)
	require.Equal(t, 3, source.callCount())

	// No further automatic iterations.
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 3, source.callCount())

	// Manual restart with a healthy source resumes polling and clears the flag.
	source.setError(nil)
	c.RestartIfNeeded(context.Background())

	require.Eventually(t, func() bool {
		s := c.Status()
		return s.IsRunning && s.LastFetchSucceeded && !s.Stopped
	}, time.Second, time.Millisecond)

	c.StopWatching()
}

// TestCoordinator_SuccessFeedsSink verifies successful fetches reach the sink.
func TestCoordinator_SuccessFeedsSink(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		snapshots: []tracking.PersonSnapshot{{ID: "alex", Name: "Alex"}},
	}
	sink := new(fakeSink)
	c := newTestCoordinator(source, sink)

	c.StartWatching(context.Background())

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()

		return sink.evaluations >= 2
	}, time.Second, time.Millisecond)

	c.StopWatching()
}

// TestCoordinator_StatusCallbacks verifies observers receive state-change
// notifications without holding coordinator locks.
func TestCoordinator_StatusCallbacks(t *testing.T) {
	t.Parallel()

	source := new(fakeSource)
	sink := new(fakeSink)
	c := newTestCoordinator(source, sink)

	var (
		mu       sync.Mutex
		statuses []Status
	)

	c.OnStatusChange(func(s Status) {
		mu.Lock()
		defer mu.Unlock()

		statuses = append(statuses, s)
	})

	c.StartWatching(context.Background())
	c.StopWatching()

	mu.Lock()
	defer mu.Unlock()

	// Listener invocation order across goroutines is not guaranteed, so
	// assert on the set of observed transitions instead.
	require.NotEmpty(t, statuses)

	var sawRunning, sawStopped bool

	for _, s := range statuses {
		if s.IsRunning && s.Watchers == 1 {
			sawRunning = true
		}

		if !s.IsRunning && s.Watchers == 0 {
			sawStopped = true
		}
	}

	require.True(t, sawRunning)
	require.True(t, sawStopped)
}
