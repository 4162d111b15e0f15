// Package eventstream defines the transport-neutral job lifecycle events that
// formu emits once a generation job reaches a terminal state.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeJobCompleted is emitted after a job succeeds and usage is counted.
	EventTypeJobCompleted = "formu.job.completed"

	// EventTypeJobFailed is emitted after a job fails, times out, or cannot be
	// submitted.
	EventTypeJobFailed = "formu.job.failed"
)

// JobEvent is a transport-neutral event payload for a finished job.
type JobEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Job           JobMeta   `json:"job"`
	Result        JobResult `json:"result"`
}

// JobMeta identifies the job and its timing.
type JobMeta struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	TaskID      string    `json:"task_id,omitempty"`
	Source      string    `json:"source,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Attempts    int       `json:"attempts"`
}

// JobResult captures the outcome.
type JobResult struct {
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// NewJobEvent stamps a payload with the schema version, a fresh event id, and
// the emission time.
func NewJobEvent(eventType string, job JobMeta, result JobResult) *JobEvent {
	if !job.SubmittedAt.IsZero() && !job.CompletedAt.IsZero() {
		job.DurationMs = job.CompletedAt.Sub(job.SubmittedAt).Milliseconds()
	}

	return &JobEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Job:           job,
		Result:        result,
	}
}
