// Package batch drives jobs through a jobs.Pool and reports them either on the
// interactive jobs board or as one plain line per finished job.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	bubbletea "github.com/charmbracelet/bubbletea"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/cliui"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/quota"
	"github.com/papercomputeco/formu/pkg/session"
	"github.com/papercomputeco/formu/pkg/tui"
	"github.com/papercomputeco/formu/pkg/utils"
)

// Producer feeds jobs to enqueue until it returns. enqueue reports false when
// the job was dropped.
type Producer func(ctx context.Context, enqueue func(jobs.Job) bool) error

// Jobs returns a Producer that enqueues a fixed list.
func Jobs(list ...jobs.Job) Producer {
	return func(_ context.Context, enqueue func(jobs.Job) bool) error {
		dropped := 0
		for _, job := range list {
			if !enqueue(job) {
				dropped++
			}
		}
		if dropped > 0 {
			return fmt.Errorf("%d jobs could not be queued", dropped)
		}
		return nil
	}
}

// LoadJobs reads every image path into a job of kind.
func LoadJobs(kind jobs.Kind, paths []string, prompt string) ([]jobs.Job, error) {
	list := make([]jobs.Job, 0, len(paths))
	for _, path := range paths {
		img, err := backend.LoadImage(path)
		if err != nil {
			return nil, err
		}
		list = append(list, jobs.NewJob(kind, path, img, prompt))
	}
	return list, nil
}

// Config configures Run.
type Config struct {
	Session *session.Session

	// Title heads the jobs board.
	Title string

	// Interactive shows the bubbletea board instead of plain lines.
	Interactive bool

	// MinQueue raises the pool queue so a fixed list is never dropped.
	MinQueue int

	// Out receives plain output and the final artifact list. Required.
	Out io.Writer

	// ProgramOptions are passed to bubbletea, mostly for tests.
	ProgramOptions []bubbletea.ProgramOption
}

// Summary is the result of Run.
type Summary struct {
	Outcomes []jobs.Outcome
	Failed   int
}

// Err summarizes failed jobs as one error, or nil when every job succeeded.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d jobs did not succeed", s.Failed, len(s.Outcomes))
}

// RunList runs a fixed list to completion. It fails when any job did not
// succeed, and hints at logging in when the quota says the user is logged out.
func RunList(ctx context.Context, cfg Config, list []jobs.Job) error {
	cfg.MinQueue = max(cfg.MinQueue, len(list))

	summary, err := Run(ctx, cfg, Jobs(list...))
	if err != nil {
		return err
	}

	if cfg.Session.Quota.Snapshot().IsLoggedOut() {
		fmt.Fprintf(cfg.Out, "\n  %s\n", cliui.DimStyle.Render("Set FORMU_AUTH_TOKEN or pass --token to log in."))
	}
	return summary.Err()
}

type collector struct {
	mu      sync.Mutex
	summary Summary
}

func (c *collector) add(o jobs.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Outcomes = append(c.summary.Outcomes, o)
	if o.Phase != jobs.PhaseSucceeded {
		c.summary.Failed++
	}
}

func (c *collector) result() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Run refreshes the quota, starts a pool, and feeds it from produce until
// produce returns and every job has finished. Cancelling ctx, or quitting the
// board, cancels queued and running jobs.
func Run(ctx context.Context, cfg Config, produce Producer) (Summary, error) {
	if cfg.Session == nil || cfg.Out == nil {
		return Summary{}, errors.New("batch: Session and Out are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := cfg.Session
	s.Quota.Refresh(ctx)

	if cfg.Interactive {
		return runBoard(ctx, cancel, cfg, produce)
	}
	return runPlain(ctx, cfg, produce)
}

func runPlain(ctx context.Context, cfg Config, produce Producer) (Summary, error) {
	s := cfg.Session
	var outMu sync.Mutex
	col := &collector{}

	unsubscribe := s.Quota.Subscribe(func(snap quota.Snapshot) {
		s.Logger.Debug("quota updated", "plan", snap.PlanName, "used", snap.Used, "remaining", snap.Remaining.String())
	})
	defer unsubscribe()

	onOutcome := func(o jobs.Outcome) {
		col.add(o)
		outMu.Lock()
		defer outMu.Unlock()
		printOutcome(cfg.Out, o)
	}

	err := drive(ctx, cfg, produce, nil, onOutcome, nil)
	return col.result(), err
}

func runBoard(ctx context.Context, cancel context.CancelFunc, cfg Config, produce Producer) (Summary, error) {
	s := cfg.Session
	col := &collector{}

	tui.ConfigureRenderer()
	model := tui.NewJobsModel(cfg.Title, s.Quota.Snapshot(), cancel)
	program := bubbletea.NewProgram(model, cfg.ProgramOptions...)

	unsubscribe := s.Quota.Subscribe(func(snap quota.Snapshot) {
		program.Send(tui.QuotaMsg(snap))
	})
	defer unsubscribe()

	onUpdate := func(u jobs.Update) { program.Send(tui.JobUpdateMsg(u)) }

	done := make(chan error, 1)
	go func() {
		done <- drive(ctx, cfg, produce, onUpdate, col.add, func() {
			program.Send(tui.AllJobsDoneMsg{})
		})
	}()

	_, runErr := program.Run()
	cancel()
	err := <-done

	summary := col.result()
	printArtifacts(cfg.Out, summary.Outcomes)

	if runErr != nil {
		return summary, fmt.Errorf("running jobs board: %w", runErr)
	}
	return summary, err
}

// drive wires a runner and pool, runs produce, then drains the pool.
func drive(
	ctx context.Context,
	cfg Config,
	produce Producer,
	onUpdate func(jobs.Update),
	onOutcome func(jobs.Outcome),
	drained func(),
) error {
	s := cfg.Session
	if drained != nil {
		defer drained()
	}

	rc, err := s.RunnerConfig(onUpdate)
	if err != nil {
		return err
	}
	runner, err := jobs.NewRunner(rc)
	if err != nil {
		return err
	}

	pc := s.PoolConfig(runner, onOutcome)
	if cfg.MinQueue > 0 && pc.QueueSize < uint(cfg.MinQueue) {
		pc.QueueSize = uint(cfg.MinQueue)
	}
	pool, err := jobs.NewPool(ctx, pc)
	if err != nil {
		return err
	}

	err = produce(ctx, pool.Enqueue)
	pool.Close()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printOutcome(w io.Writer, o jobs.Outcome) {
	source := utils.Truncate(o.Job.Source, 40)
	if o.Phase != jobs.PhaseSucceeded {
		fmt.Fprintf(w, "  %s %s %s  %s\n", cliui.FailMark, o.Job.Kind, source, o.Message())
		return
	}

	fmt.Fprintf(w, "  %s %s %s  %s\n",
		cliui.SuccessMark,
		o.Job.Kind,
		source,
		cliui.DimStyle.Render(cliui.FormatDuration(o.CompletedAt.Sub(o.SubmittedAt))),
	)
	for _, a := range o.Artifacts {
		fmt.Fprintf(w, "      %s\n", artifactLine(a))
	}
}

func printArtifacts(w io.Writer, outcomes []jobs.Outcome) {
	for _, o := range outcomes {
		if o.Phase != jobs.PhaseSucceeded || len(o.Artifacts) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\n", cliui.HeaderStyle.Render(o.Job.Source))
		for _, a := range o.Artifacts {
			fmt.Fprintf(w, "  %s\n", artifactLine(a))
		}
	}
}

// artifactLine keeps inline base64 images from flooding the terminal.
func artifactLine(a string) string {
	return utils.Truncate(a, 120)
}
