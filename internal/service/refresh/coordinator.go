package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/domain/tracking"
	"github.com/oshokin/safety-tracker/internal/logger"
)

// Source yields the current snapshot list of tracked people.
// Implementations are external collaborators (telemetry backends).
type Source interface {
	Fetch(ctx context.Context) ([]tracking.PersonSnapshot, error)
}

// Sink consumes the snapshot list produced by a successful fetch.
type Sink interface {
	Evaluate(ctx context.Context, snapshots []tracking.PersonSnapshot)
}

// Status is the externally observable state of the coordinator.
type Status struct {
	// IsRunning reports whether a poll loop instance is active.
	IsRunning bool
	// LastFetchSucceeded reports the outcome of the most recent fetch.
	LastFetchSucceeded bool
	// Stopped reports that the circuit breaker has halted the loop.
	Stopped bool
	// StoppedMessage is the user-facing explanation when Stopped is set.
	StoppedMessage string
	// Watchers is the current number of registered observers.
	Watchers int
}

// StoppedMessage is surfaced to the user when the circuit breaker opens.
const StoppedMessage = "Live updates stopped after repeated errors. Refresh manually to try again."

// Coordinator runs at most one polling loop on behalf of all registered
// watchers. All state is guarded by mu; the loop goroutine mutates state
// only through generation-checked helpers, so a superseded loop instance
// can no longer touch coordinator state.
type Coordinator struct {
	// source supplies person snapshots.
	source Source
	// sink receives snapshots from each successful fetch.
	sink Sink

	// interval is the sleep between poll iterations.
	interval time.Duration
	// maxErrors is how many consecutive fetch failures open the circuit breaker.
	maxErrors int

	// mu protects every field below.
	mu sync.Mutex
	// watchers is the number of registered observers.
	watchers int
	// suspended pauses the loop without touching the watcher count.
	suspended bool
	// running reports whether a loop instance is active.
	running bool
	// generation identifies the current loop instance; stale instances
	// observe a mismatch and exit without mutating state.
	generation uint64
	// cancel stops the current loop instance.
	cancel context.CancelFunc
	// consecutiveErrors counts fetch failures since the last success.
	consecutiveErrors int
	// lastFetchOK is the outcome of the most recent fetch.
	lastFetchOK bool
	// stopped is the sticky circuit-breaker flag; only RestartIfNeeded clears it.
	stopped bool
	// stoppedMessage explains the halt to the user.
	stoppedMessage string
	// listeners receive a Status snapshot after every observable change.
	listeners []func(Status)
}

// Option configures coordinator behaviour.
type Option func(*Coordinator)

// WithInterval overrides the sleep between poll iterations.
func WithInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithMaxConsecutiveErrors overrides the circuit-breaker limit.
func WithMaxConsecutiveErrors(limit int) Option {
	return func(c *Coordinator) {
		if limit > 0 {
			c.maxErrors = limit
		}
	}
}

// NewCoordinator creates a coordinator polling the provided source and
// feeding the provided sink.
func NewCoordinator(source Source, sink Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		sink:      sink,
		interval:  config.DefaultRefreshInterval,
		maxErrors: config.DefaultMaxConsecutiveErrors,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OnStatusChange registers a callback invoked with a Status snapshot after
// every observable state change. Callbacks run outside the coordinator lock.
func (c *Coordinator) OnStatusChange(fn func(Status)) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, fn)
}

// StartWatching registers one observer. The 0→1 transition starts the poll
// loop unless the coordinator is suspended or the circuit breaker is open.
func (c *Coordinator) StartWatching(ctx context.Context) {
	c.mu.Lock()

	c.watchers++
	if c.watchers == 1 && !c.suspended && !c.stopped {
		c.startLoopLocked(ctx)
	}

	logger.DebugKV(ctx, "Watcher registered", "watchers", c.watchers)

	c.notifyAndUnlock()
}

// StopWatching deregisters one observer. The 1→0 transition stops the loop.
func (c *Coordinator) StopWatching() {
	c.mu.Lock()

	if c.watchers > 0 {
		c.watchers--
	}

	if c.watchers == 0 {
		c.stopLoopLocked()
	}

	c.notifyAndUnlock()
}

// SuspendForBackground pauses the loop without touching the watcher count,
// for app lifecycle transitions where observers stay registered.
func (c *Coordinator) SuspendForBackground() {
	c.mu.Lock()

	c.suspended = true
	c.stopLoopLocked()

	c.notifyAndUnlock()
}

// ResumeForForeground resumes the loop if observers are still registered.
// Returning to foreground may not re-trigger observer registration, so this
// never requires a matching StartWatching call.
func (c *Coordinator) ResumeForForeground(ctx context.Context) {
	c.mu.Lock()

	c.suspended = false
	if c.watchers > 0 && !c.stopped && !c.running {
		c.startLoopLocked(ctx)
	}

	c.notifyAndUnlock()
}

// RestartIfNeeded clears the sticky circuit-breaker flag and restarts the
// loop if observers are registered. It is the only way the loop resumes
// after sustained failure.
func (c *Coordinator) RestartIfNeeded(ctx context.Context) {
	c.mu.Lock()

	if !c.stopped {
		c.mu.Unlock()
		return
	}

	c.stopped = false
	c.stoppedMessage = ""
	c.consecutiveErrors = 0

	if c.watchers > 0 && !c.suspended {
		c.startLoopLocked(ctx)
	}

	logger.Info(ctx, "Refresh loop restarted after manual request")

	c.notifyAndUnlock()
}

// Status returns a snapshot of the coordinator's observable state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.statusLocked()
}

// IsRunning reports whether a poll loop instance is active.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// startLoopLocked starts a fresh loop instance, cancelling any previous one.
// Callers must hold mu.
func (c *Coordinator) startLoopLocked(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}

	c.generation++
	gen := c.generation

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	go c.loop(loopCtx, gen)
}

// stopLoopLocked cancels the current loop instance. Callers must hold mu.
func (c *Coordinator) stopLoopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	// Invalidate the instance so its exit path cannot overwrite state.
	c.generation++
	c.running = false
}

// loop is one poll loop instance. Each iteration fetches, applies the result,
// then sleeps; cancellation is observed after the in-flight fetch and at the
// sleep boundary, bounding shutdown latency to one interval.
func (c *Coordinator) loop(ctx context.Context, gen uint64) {
	for {
		snapshots, err := c.source.Fetch(ctx)

		// An in-flight fetch is allowed to complete; honor cancellation here.
		if ctx.Err() != nil {
			c.finishLoop(gen)
			return
		}

		if err != nil {
			logger.WarnKV(ctx, "Telemetry fetch failed", "error", err)

			if halted := c.recordFailure(ctx, gen); halted {
				return
			}
		} else {
			if stale := c.recordSuccess(gen); stale {
				return
			}

			c.sink.Evaluate(ctx, snapshots)
		}

		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.finishLoop(gen)

			return
		case <-timer.C:
		}
	}
}

// recordFailure counts a fetch failure and opens the circuit breaker when
// the limit is reached. It returns true when the calling loop must exit.
func (c *Coordinator) recordFailure(ctx context.Context, gen uint64) bool {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		return true
	}

	c.consecutiveErrors++
	c.lastFetchOK = false

	if c.consecutiveErrors < c.maxErrors {
		c.notifyAndUnlock()
		return false
	}

	// Circuit opens: sticky until RestartIfNeeded.
	c.stopped = true
	c.stoppedMessage = StoppedMessage
	c.running = false

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.generation++

	logger.ErrorKV(ctx, "Refresh loop halted after consecutive failures",
		"consecutive_errors", c.consecutiveErrors)

	c.notifyAndUnlock()

	return true
}

// recordSuccess resets the failure counter and clears the sticky stopped
// flag. It returns true when the calling loop instance is stale.
func (c *Coordinator) recordSuccess(gen uint64) bool {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		return true
	}

	c.consecutiveErrors = 0
	c.lastFetchOK = true
	c.stopped = false
	c.stoppedMessage = ""

	c.notifyAndUnlock()

	return false
}

// finishLoop marks the loop instance stopped if it is still the current one.
func (c *Coordinator) finishLoop(gen uint64) {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	c.running = false

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.notifyAndUnlock()
}

// statusLocked builds a Status snapshot. Callers must hold mu.
func (c *Coordinator) statusLocked() Status {
	return Status{
		IsRunning:          c.running,
		LastFetchSucceeded: c.lastFetchOK,
		Stopped:            c.stopped,
		StoppedMessage:     c.stoppedMessage,
		Watchers:           c.watchers,
	}
}

// notifyAndUnlock snapshots listeners and status, releases mu, and invokes
// the callbacks. Listeners must never be called under the lock.
func (c *Coordinator) notifyAndUnlock() {
	status := c.statusLocked()
	listeners := make([]func(Status), len(c.listeners))
	copy(listeners, c.listeners)

	c.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}
