// Package watchcmder provides the watch command, which turns every image
// dropped into a folder into a job.
package watchcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/batch"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/session"
	"github.com/papercomputeco/formu/pkg/tui"
)

type watchCommander struct {
	kind      string
	prompt    string
	workers   int
	queueSize int
	brokers   string
	topic     string
	plain     bool
}

var registryKeys = []string{
	config.FlagWorkers,
	config.FlagQueueSize,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const watchLongDesc string = `Watch a folder and process every new image.

Each image written to the folder becomes a restyle or 3D job once the file has
stopped changing. Jobs run on a fixed pool of workers; when the queue is full,
new images are skipped with a warning. Existing files are left alone.

With --kafka-brokers (or events.kafka_brokers), every finished job is also
published as a JSON event.

Press q or Ctrl+C to stop watching. Running jobs are cancelled.

Examples:
  formu watch ./inbox --prompt "pencil sketch"
  formu watch ./inbox --kind model3d --workers 2
  formu watch ./inbox --kafka-brokers localhost:9092`

const watchShortDesc string = "Process images as they land in a folder"

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := jobs.ParseKind(cmder.kind)
			if err != nil {
				return err
			}
			if kind == jobs.KindRestyle && cmder.prompt == "" {
				return errors.New("--prompt is required to restyle images")
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", args[0])
			}

			interactive := !cmder.plain && tui.IsTerminal(cmd.OutOrStdout())
			sess, err := session.FromCommand(cmd, registryKeys, interactive)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			summary, err := batch.Run(ctx, batch.Config{
				Session:     sess,
				Title:       fmt.Sprintf("formu watch · %s · %s", args[0], kind),
				Interactive: interactive,
				Out:         cmd.OutOrStdout(),
			}, cmder.producer(sess, kind, args[0]))
			if err != nil {
				return err
			}

			sess.Logger.Info("stopped watching",
				"jobs", len(summary.Outcomes),
				"failed", summary.Failed,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cmder.kind, "kind", "k", string(jobs.KindRestyle), "Job kind: restyle or model3d")
	cmd.Flags().StringVarP(&cmder.prompt, "prompt", "p", "", "Prompt sent with every job")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print one line per job even when stdout is a terminal")
	config.AddIntFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddIntFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.topic)

	return cmd
}

func (c *watchCommander) producer(sess *session.Session, kind jobs.Kind, dir string) batch.Producer {
	return func(ctx context.Context, enqueue func(jobs.Job) bool) error {
		sess.Logger.Info("watching for images", "dir", dir, "kind", kind)

		return jobs.Watch(ctx, dir, func(path string) {
			img, err := backend.LoadImage(path)
			if err != nil {
				sess.Logger.Warn("skipping unreadable image", "path", path, "error", err)
				return
			}
			if !enqueue(jobs.NewJob(kind, path, img, c.prompt)) {
				sess.Logger.Warn("queue full, image skipped", "path", path)
			}
		})
	}
}
