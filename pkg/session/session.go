// Package session assembles the pieces every formu command shares from the
// resolved configuration: the logger, the backend client, the quota store and
// the job event publisher.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/eventstream"
	"github.com/papercomputeco/formu/pkg/eventstream/kafka"
	"github.com/papercomputeco/formu/pkg/eventstream/nop"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/logger"
	"github.com/papercomputeco/formu/pkg/quota"
)

// Options are the per-invocation settings that do not live in config.toml.
type Options struct {
	// Command labels pretty log lines, e.g. "restyle".
	Command string

	Debug bool

	// LogFile, when set, receives every record as JSON.
	LogFile string

	// Quiet drops the stderr logger, used while a full-screen view owns the terminal.
	Quiet bool

	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// Session holds the wired dependencies for one command run.
type Session struct {
	Viper     *viper.Viper
	Logger    *slog.Logger
	Client    *backend.Client
	Quota     *quota.Store
	Publisher eventstream.Publisher

	closers []io.Closer
}

// New builds a Session from v, which must come from config.InitViper with the
// command's flags already bound.
func New(v *viper.Viper, opts Options) (*Session, error) {
	s := &Session{Viper: v}

	log, err := s.buildLogger(opts)
	if err != nil {
		return nil, err
	}
	s.Logger = log

	timeout, err := s.duration("api.timeout")
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Client = backend.New(backend.Config{
		BaseURL: v.GetString("api.base_url"),
		Token:   v.GetString("auth.token"),
		Timeout: timeout,
		Logger:  log,
	})

	s.Quota = quota.NewStore(s.Client.FetchQuota, quota.WithLogger(log))

	pub, err := s.buildPublisher()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Publisher = pub

	return s, nil
}

func (s *Session) buildLogger(opts Options) (*slog.Logger, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var console *slog.Logger
	if !opts.Quiet {
		console = logger.New(
			logger.WithDebug(opts.Debug),
			logger.WithPretty(true),
			logger.WithPrefix(opts.Command),
			logger.WithWriter(stderr),
		)
	}

	var file *slog.Logger
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		s.closers = append(s.closers, f)

		file = logger.New(
			logger.WithDebug(opts.Debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		)
	}

	if console == nil && file == nil {
		return logger.Nop(), nil
	}
	return logger.Multi(console, file), nil
}

func (s *Session) buildPublisher() (eventstream.Publisher, error) {
	brokers := config.SplitList(s.Viper.GetString("events.kafka_brokers"))
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   s.Viper.GetString("events.kafka_topic"),
		Logger:  s.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	s.closers = append(s.closers, pub)

	s.Logger.Debug("publishing job events to kafka",
		"brokers", brokers,
		"topic", s.Viper.GetString("events.kafka_topic"),
	)
	return pub, nil
}

// duration reads a positive duration key.
func (s *Session) duration(key string) (time.Duration, error) {
	raw := s.Viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}

// Tick returns the typewriter reveal period.
func (s *Session) Tick() (time.Duration, error) {
	return s.duration("typewriter.tick")
}

// Style returns the configured prompt style.
func (s *Session) Style() string {
	return s.Viper.GetString("prompt.style")
}

// PollSettings returns the interval and attempt limit for kind.
func (s *Session) PollSettings(kind jobs.Kind) (jobs.PollSettings, error) {
	section := string(kind)
	interval, err := s.duration(section + ".poll_interval")
	if err != nil {
		return jobs.PollSettings{}, err
	}

	attempts := s.Viper.GetInt(section + ".max_attempts")
	if attempts <= 0 {
		return jobs.PollSettings{}, fmt.Errorf("invalid %s.max_attempts %d: must be positive", section, attempts)
	}

	return jobs.PollSettings{Interval: interval, MaxAttempts: attempts}, nil
}

// RunnerConfig builds a jobs.RunnerConfig from the session. onUpdate may be nil.
func (s *Session) RunnerConfig(onUpdate func(jobs.Update)) (*jobs.RunnerConfig, error) {
	restylePoll, err := s.PollSettings(jobs.KindRestyle)
	if err != nil {
		return nil, err
	}
	model3DPoll, err := s.PollSettings(jobs.KindModel3D)
	if err != nil {
		return nil, err
	}

	return &jobs.RunnerConfig{
		Backend:   s.Client,
		Quota:     s.Quota,
		Publisher: s.Publisher,
		Restyle: backend.RestyleRequest{
			Model:    s.Viper.GetString("restyle.model"),
			Size:     s.Viper.GetString("restyle.size"),
			Strength: s.Viper.GetFloat64("restyle.strength"),
			N:        1,
		},
		RestylePoll: restylePoll,
		Model3DPoll: model3DPoll,
		OnUpdate:    onUpdate,
		Logger:      s.Logger,
	}, nil
}

// PoolConfig builds a jobs.PoolConfig sized from the jobs section.
func (s *Session) PoolConfig(runner *jobs.Runner, onOutcome func(jobs.Outcome)) *jobs.PoolConfig {
	return &jobs.PoolConfig{
		Runner:     runner,
		NumWorkers: uint(max(s.Viper.GetInt("jobs.workers"), 0)),
		QueueSize:  uint(max(s.Viper.GetInt("jobs.queue_size"), 0)),
		OnOutcome:  onOutcome,
		Logger:     s.Logger,
	}
}

// Close releases the publisher and the log file.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
