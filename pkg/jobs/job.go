// Package jobs runs restyle and 3D generation jobs end to end: quota gate,
// submission, status polling, usage accounting, quota refresh, and lifecycle
// event publishing. A Pool runs many jobs concurrently and Watch feeds it
// from a folder.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/poller"
)

// ErrQuotaExhausted is returned when the quota snapshot forbids new jobs.
var ErrQuotaExhausted = errors.New("usage allowance exhausted")

// Kind is the job type.
type Kind string

const (
	KindRestyle Kind = "restyle"
	KindModel3D Kind = "model3d"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRestyle, KindModel3D:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown job kind %q (want %q or %q)", s, KindRestyle, KindModel3D)
	}
}

// ServiceType is the usage bucket the kind is charged to.
func (k Kind) ServiceType() backend.ServiceType {
	if k == KindModel3D {
		return backend.Service3D
	}
	return backend.ServiceRestyle
}

// Job is one generation request.
type Job struct {
	ID     string
	Kind   Kind
	Source string
	Image  backend.Image
	Prompt string
}

// NewJob returns a job with a fresh id. Source is a display label, usually the
// image path.
func NewJob(kind Kind, source string, image backend.Image, prompt string) Job {
	return Job{
		ID:     uuid.NewString(),
		Kind:   kind,
		Source: source,
		Image:  image,
		Prompt: prompt,
	}
}

// Phase is where a job is in its lifecycle.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseSubmitting
	PhasePolling
	PhaseSucceeded
	PhaseFailed
	PhaseRejected
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseSubmitting:
		return "submitting"
	case PhasePolling:
		return "polling"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseRejected:
		return "rejected"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further updates follow.
func (p Phase) Terminal() bool {
	return p >= PhaseSucceeded
}

// Update is a progress notification for one job.
type Update struct {
	JobID   string
	Kind    Kind
	Source  string
	Phase   Phase
	TaskID  string
	Attempt int

	// Status is the backend's raw status string while polling.
	Status string

	// Progress is a 0-100 completion estimate when the backend reports one.
	Progress int

	// Message is the user-facing failure line for failed or rejected jobs.
	Message string

	Artifacts []string
}

// Outcome is the final result of Runner.Run.
type Outcome struct {
	Job         Job
	Phase       Phase
	TaskID      string
	Attempts    int
	Artifacts   []string
	Err         error
	SubmittedAt time.Time
	CompletedAt time.Time
}

// Message is the single human-readable line for a failed outcome.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	if errors.Is(o.Err, ErrQuotaExhausted) || errors.Is(o.Err, context.Canceled) {
		return o.Err.Error()
	}
	return backend.Describe(o.Err)
}

// Backend is the slice of backend.Client the runner drives.
type Backend interface {
	SubmitRestyle(ctx context.Context, r backend.RestyleRequest) (string, error)
	RestyleStatus(ctx context.Context, taskID string) (backend.RestyleTask, error)
	Submit3D(ctx context.Context, r backend.Model3DRequest) (string, error)
	Model3DStatus(ctx context.Context, taskID string) (backend.Model3DTask, error)
	IncrementUsage(ctx context.Context, taskID string, service backend.ServiceType) error
}

var _ Backend = (*backend.Client)(nil)

// PollSettings tunes one kind's poller.
type PollSettings struct {
	Interval    time.Duration
	MaxAttempts int
}

func stateToPhase(s poller.State) Phase {
	switch s {
	case poller.StateSucceeded:
		return PhaseSucceeded
	case poller.StateCancelled:
		return PhaseCancelled
	default:
		return PhaseFailed
	}
}
