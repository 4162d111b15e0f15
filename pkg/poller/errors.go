package poller

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is matched by errors reporting that the attempt budget ran out
	// without a terminal status.
	ErrTimeout = errors.New("task polling timed out")

	// ErrJobFailed is matched by errors reporting that the backend classified
	// the job as failed.
	ErrJobFailed = errors.New("task failed")

	// ErrTransport is matched by errors reporting that a status fetch failed.
	ErrTransport = errors.New("task status fetch failed")
)

// Kind discriminates the reasons a task can end in error.
type Kind int

const (
	// KindTransport means the status fetch itself failed.
	KindTransport Kind = iota + 1

	// KindFailed means the backend reported the job as failed.
	KindFailed

	// KindTimeout means MaxAttempts fetches completed with no terminal status.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFailed:
		return "failed"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the detail delivered to OnError.
type Error struct {
	Kind     Kind
	TaskID   string
	Attempts int

	// Detail is a human-readable reason, such as the backend's failure reason.
	Detail string

	// Err is the underlying fetch error for KindTransport.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("task %s: %s after %d attempt(s)", e.TaskID, e.Kind, e.Attempts)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the error onto its kind sentinel.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrJobFailed:
		return e.Kind == KindFailed
	case ErrTransport:
		return e.Kind == KindTransport
	default:
		return false
	}
}
