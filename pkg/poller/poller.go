// Package poller drives an asynchronous backend job to a terminal outcome by
// repeatedly fetching its status on a fixed interval.
//
// A Task fetches strictly sequentially: the next attempt is never issued while
// a fetch is outstanding. Each fetched status goes to OnProgress first and is
// then classified; exactly one of OnSuccess or OnError fires per task, unless
// the task is cancelled first, in which case neither does. Any number of tasks
// run independently, each on its own goroutine with no shared state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/formu/pkg/logger"
)

var (
	defaultInterval    = 3 * time.Second
	defaultMaxAttempts = 60
)

// FetchFunc fetches the current status of a job.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config describes one polling task.
type Config[T any] struct {
	// TaskID is the backend job identifier, used for logging and errors.
	TaskID string

	// Fetch retrieves the job status. Required.
	Fetch FetchFunc[T]

	// Classifier decides success and failure. Required.
	Classifier Classifier[T]

	// Interval between attempts (defaults to 3s).
	Interval time.Duration

	// MaxAttempts is the fetch budget before timing out (defaults to 60).
	MaxAttempts int

	// OnProgress receives every successfully fetched status, including the
	// terminal one.
	OnProgress func(status T)

	// OnSuccess fires once with the status classified as success.
	OnSuccess func(status T)

	// OnError fires once with a *Error for transport errors, backend
	// failures, and timeouts.
	OnError func(err error)

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// State is the lifecycle position of a Task.
type State int32

const (
	StatePolling State = iota
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Task is a running poll.
type Task[T any] struct {
	config   Config[T]
	state    atomic.Int32

	// cbMu is held across each state check and the callback it admits.
	// Cancel takes it unless a callback is already running.
	cbMu       sync.Mutex
	inCallback atomic.Bool

	attempts atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *slog.Logger
}

// Start validates c and begins polling in the background. Cancelling ctx
// cancels the task.
func Start[T any](ctx context.Context, c Config[T]) (*Task[T], error) {
	if c.Fetch == nil {
		return nil, errors.New("poller: Fetch is required")
	}
	if c.Classifier == nil {
		return nil, errors.New("poller: Classifier is required")
	}
	if c.Interval < 0 || c.MaxAttempts < 0 {
		return nil, fmt.Errorf("poller: invalid interval %s or max attempts %d", c.Interval, c.MaxAttempts)
	}

	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		config: c,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: c.Logger.With("task_id", c.TaskID),
	}

	t.logger.Debug("polling started",
		"interval", c.Interval,
		"max_attempts", c.MaxAttempts,
	)

	go t.run(ctx)

	return t, nil
}

// Cancel stops the task. No callback starts after Cancel returns; the result
// of a fetch already in flight is discarded. Cancel is idempotent and may be
// called from inside the task's own callbacks.
func (t *Task[T]) Cancel() {
	locked := !t.inCallback.Load()
	if locked {
		t.cbMu.Lock()
	}
	cancelled := t.transition(StateCancelled)
	if locked {
		t.cbMu.Unlock()
	}

	if cancelled {
		t.logger.Debug("polling cancelled", "attempts", t.Attempts())
	}
	t.cancel()
}

// Done is closed once the task has stopped and its final callback returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task stops and returns its final state.
func (t *Task[T]) Wait() State {
	<-t.done
	return t.State()
}

// State returns the current lifecycle state.
func (t *Task[T]) State() State {
	return State(t.state.Load())
}

// Attempts returns the number of fetches issued so far.
func (t *Task[T]) Attempts() int {
	return int(t.attempts.Load())
}

// TaskID returns the polled job identifier.
func (t *Task[T]) TaskID() string {
	return t.config.TaskID
}

// transition moves the task out of StatePolling. Only the first transition
// wins, which is what makes every terminal callback fire at most once.
func (t *Task[T]) transition(to State) bool {
	return t.state.CompareAndSwap(int32(StatePolling), int32(to))
}

func (t *Task[T]) polling() bool {
	return t.State() == StatePolling
}

// progress hands status to OnProgress unless the task has left StatePolling.
func (t *Task[T]) progress(status T) bool {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()

	if !t.polling() {
		return false
	}
	if t.config.OnProgress != nil {
		t.callback(func() { t.config.OnProgress(status) })
	}
	return true
}

// finish moves the task to the terminal state to and runs fn if that
// transition won.
func (t *Task[T]) finish(to State, fn func()) bool {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()

	if !t.transition(to) {
		return false
	}
	t.callback(fn)
	return true
}

// callback runs fn with inCallback set. Callers hold cbMu.
func (t *Task[T]) callback(fn func()) {
	t.inCallback.Store(true)
	defer t.inCallback.Store(false)

	fn()
}

// run is the polling loop.
func (t *Task[T]) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.transition(StateCancelled)
			return
		case <-ticker.C:
		}

		if !t.attempt(ctx) {
			return
		}
	}
}

// attempt performs one fetch and reports whether polling should continue.
func (t *Task[T]) attempt(ctx context.Context) bool {
	attempt := int(t.attempts.Add(1))
	status, err := t.config.Fetch(ctx)

	if !t.polling() {
		// Cancelled while the fetch was in flight.
		return false
	}

	if err != nil {
		t.logger.Warn("status fetch failed", "attempt", attempt, "error", err)
		t.fail(StateFailed, &Error{Kind: KindTransport, TaskID: t.config.TaskID, Attempts: attempt, Err: err})
		return false
	}

	if !t.progress(status) {
		return false
	}

	classifier := t.config.Classifier
	switch {
	case classifier.IsSuccess(status):
		t.finish(StateSucceeded, func() {
			t.logger.Debug("task succeeded", "attempts", attempt)
			if t.config.OnSuccess != nil {
				t.config.OnSuccess(status)
			}
		})
		return false

	case classifier.IsFailure(status):
		t.fail(StateFailed, &Error{
			Kind:     KindFailed,
			TaskID:   t.config.TaskID,
			Attempts: attempt,
			Detail:   classifier.Reason(status),
		})
		return false

	case attempt >= t.config.MaxAttempts:
		t.fail(StateTimedOut, &Error{Kind: KindTimeout, TaskID: t.config.TaskID, Attempts: attempt})
		return false
	}

	return true
}

func (t *Task[T]) fail(to State, perr *Error) {
	t.finish(to, func() {
		t.logger.Debug("task ended with error", "state", to, "kind", perr.Kind, "attempts", perr.Attempts)
		if t.config.OnError != nil {
			t.config.OnError(perr)
		}
	})
}
