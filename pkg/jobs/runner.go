package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/eventstream"
	"github.com/papercomputeco/formu/pkg/eventstream/nop"
	"github.com/papercomputeco/formu/pkg/logger"
	"github.com/papercomputeco/formu/pkg/poller"
	"github.com/papercomputeco/formu/pkg/quota"
)

var (
	defaultRestylePoll = PollSettings{Interval: 3 * time.Second, MaxAttempts: 60}
	defaultModel3DPoll = PollSettings{Interval: 5 * time.Second, MaxAttempts: 120}
)

// RunnerConfig is the configuration for a Runner.
type RunnerConfig struct {
	// Backend submits and polls jobs. Required.
	Backend Backend

	// Quota gates submissions and is refreshed after every success. Optional.
	Quota *quota.Store

	// Publisher receives one event per finished job (defaults to nop).
	Publisher eventstream.Publisher

	// Restyle carries the model, size, strength and n sent with every restyle.
	Restyle backend.RestyleRequest

	RestylePoll PollSettings
	Model3DPoll PollSettings

	// OnUpdate receives progress for every job. It is called from the job's
	// goroutine and must be safe for concurrent use when jobs run in a Pool.
	OnUpdate func(Update)

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Runner executes jobs.
type Runner struct {
	config *RunnerConfig
	logger *slog.Logger
}

// NewRunner validates c and applies defaults.
func NewRunner(c *RunnerConfig) (*Runner, error) {
	if c.Backend == nil {
		return nil, errors.New("jobs: Backend is required")
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.RestylePoll == (PollSettings{}) {
		c.RestylePoll = defaultRestylePoll
	}
	if c.Model3DPoll == (PollSettings{}) {
		c.Model3DPoll = defaultModel3DPoll
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Runner{config: c, logger: c.Logger}, nil
}

// Run drives job to a terminal outcome. It blocks until the job finishes, and
// when it succeeds, until usage is counted and the quota store refreshed.
func (r *Runner) Run(ctx context.Context, job Job) Outcome {
	log := r.logger.With("job_id", job.ID, "kind", job.Kind)
	out := Outcome{Job: job, SubmittedAt: time.Now()}

	if q := r.config.Quota; q != nil && !q.Snapshot().CanUse {
		log.Warn("job rejected, usage allowance exhausted")
		out.Phase = PhaseRejected
		out.Err = ErrQuotaExhausted
		return r.finish(ctx, out)
	}

	r.notify(job, Update{Phase: PhaseSubmitting})

	taskID, err := r.submit(ctx, job)
	if err != nil {
		log.Warn("job submission failed", "error", err)
		out.Phase = PhaseFailed
		if ctx.Err() != nil {
			out.Phase = PhaseCancelled
		}
		out.Err = fmt.Errorf("submitting %s job: %w", job.Kind, err)
		return r.finish(ctx, out)
	}

	out.TaskID = taskID
	log = log.With("task_id", taskID)
	log.Info("job submitted")
	r.notify(job, Update{Phase: PhasePolling, TaskID: taskID})

	var res pollResult
	switch job.Kind {
	case KindModel3D:
		res = poll[backend.Model3DTask](ctx, r, job, taskID, r.config.Backend.Model3DStatus, backend.Model3DClassifier, r.config.Model3DPoll,
			func(t backend.Model3DTask) (string, int) { return t.Data.Status, t.Data.Progress },
			model3DArtifacts,
		)
	default:
		res = poll[backend.RestyleTask](ctx, r, job, taskID, r.config.Backend.RestyleStatus, backend.RestyleClassifier, r.config.RestylePoll,
			func(t backend.RestyleTask) (string, int) { return t.Status, 0 },
			restyleArtifacts,
		)
	}

	out.Phase = stateToPhase(res.state)
	out.Attempts = res.attempts
	out.Artifacts = res.artifacts
	out.Err = res.err

	if out.Phase == PhaseSucceeded {
		r.countUsage(ctx, log, job, taskID)
	}

	return r.finish(ctx, out)
}

func (r *Runner) submit(ctx context.Context, job Job) (string, error) {
	switch job.Kind {
	case KindRestyle:
		req := r.config.Restyle
		req.Prompt = job.Prompt
		req.Image = job.Image
		return r.config.Backend.SubmitRestyle(ctx, req)
	case KindModel3D:
		return r.config.Backend.Submit3D(ctx, backend.Model3DRequest{Image: job.Image, Prompt: job.Prompt})
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// countUsage charges the completed task and then refreshes the quota store,
// even when the charge fails, so the snapshot reflects the backend.
func (r *Runner) countUsage(ctx context.Context, log *slog.Logger, job Job, taskID string) {
	if err := r.config.Backend.IncrementUsage(ctx, taskID, job.Kind.ServiceType()); err != nil {
		log.Warn("failed to count usage", "error", err)
	}

	if q := r.config.Quota; q != nil {
		q.Refresh(ctx)
	}
}

// finish stamps the outcome, emits the terminal update, and publishes the
// lifecycle event.
func (r *Runner) finish(ctx context.Context, out Outcome) Outcome {
	out.CompletedAt = time.Now()
	if out.Phase == PhaseCancelled && out.Err == nil {
		out.Err = context.Canceled
	}

	r.notify(out.Job, Update{
		Phase:     out.Phase,
		TaskID:    out.TaskID,
		Attempt:   out.Attempts,
		Message:   out.Message(),
		Artifacts: out.Artifacts,
	})

	eventType := eventstream.EventTypeJobCompleted
	if out.Phase != PhaseSucceeded {
		eventType = eventstream.EventTypeJobFailed
	}

	event := eventstream.NewJobEvent(eventType,
		eventstream.JobMeta{
			ID:          out.Job.ID,
			Kind:        string(out.Job.Kind),
			TaskID:      out.TaskID,
			Source:      out.Job.Source,
			SubmittedAt: out.SubmittedAt,
			CompletedAt: out.CompletedAt,
			Attempts:    out.Attempts,
		},
		eventstream.JobResult{
			Status:    out.Phase.String(),
			Error:     out.Message(),
			Artifacts: out.Artifacts,
		},
	)

	// Publishing outlives a cancelled job so the failure is still recorded.
	if err := r.config.Publisher.PublishJob(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Error("failed to publish job event", "job_id", out.Job.ID, "error", err)
	}

	return out
}

func (r *Runner) notify(job Job, u Update) {
	if r.config.OnUpdate == nil {
		return
	}
	u.JobID = job.ID
	u.Kind = job.Kind
	u.Source = job.Source
	r.config.OnUpdate(u)
}

type pollResult struct {
	state     poller.State
	attempts  int
	artifacts []string
	err       error
}

// poll runs one poller task to completion. It is generic over the status
// document so both job kinds share the same flow.
func poll[T any](
	ctx context.Context,
	r *Runner,
	job Job,
	taskID string,
	fetch func(ctx context.Context, taskID string) (T, error),
	classifier poller.Classifier[T],
	settings PollSettings,
	describe func(T) (status string, progress int),
	artifacts func(T) []string,
) pollResult {
	var res pollResult

	task, err := poller.Start(ctx, poller.Config[T]{
		TaskID:      taskID,
		Fetch:       func(ctx context.Context) (T, error) { return fetch(ctx, taskID) },
		Classifier:  classifier,
		Interval:    settings.Interval,
		MaxAttempts: settings.MaxAttempts,
		OnProgress: func(status T) {
			s, p := describe(status)
			r.notify(job, Update{Phase: PhasePolling, TaskID: taskID, Status: s, Progress: p})
		},
		OnSuccess: func(status T) {
			res.artifacts = artifacts(status)
		},
		OnError: func(err error) {
			res.err = err
		},
		Logger: r.logger,
	})
	if err != nil {
		return pollResult{state: poller.StateFailed, err: err}
	}

	res.state = task.Wait()
	res.attempts = task.Attempts()
	return res
}

func restyleArtifacts(t backend.RestyleTask) []string {
	out := make([]string, 0, len(t.Data))
	for _, img := range t.Data {
		switch {
		case img.URL != "":
			out = append(out, img.URL)
		case img.B64JSON != "":
			out = append(out, "data:image/png;base64,"+img.B64JSON)
		}
	}
	return out
}

func model3DArtifacts(t backend.Model3DTask) []string {
	var out []string
	for _, u := range []string{t.ModelURL, t.PreviewURL} {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
