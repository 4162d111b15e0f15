// Package promptcmder provides the prompt command, which streams an image
// analysis and a generated prompt from the backend.
package promptcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/cliui"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/dotdir"
	"github.com/papercomputeco/formu/pkg/session"
	"github.com/papercomputeco/formu/pkg/sse"
	"github.com/papercomputeco/formu/pkg/tui"
	"github.com/papercomputeco/formu/pkg/typewriter"
)

type promptCommander struct {
	imageURL string
	style    string
	tick     string
	plain    bool

	configDir string
	source    string
	stream    func(ctx context.Context, h sse.Handler) error

	sess   *session.Session
	stdout io.Writer
	stderr io.Writer
}

var registryKeys = []string{config.FlagStyle, config.FlagTick}

const promptLongDesc string = `Generate an image prompt from a picture.

Uploads the image (or sends its URL) to the backend, which streams back an
analysis of the picture followed by a prompt. Both are shown as they arrive.
When stdout is not a terminal, or with --plain, the prompt is written to stdout
as plain text and the analysis to stderr.

The finished prompt is saved in the .formu/ directory and used by
"formu restyle" when no --prompt is given.

Examples:
  formu prompt cat.png
  formu prompt cat.png --style anime
  formu prompt --url https://example.com/cat.png
  formu prompt cat.png --plain > prompt.txt`

const promptShortDesc string = "Generate an image prompt from a picture"

func NewPromptCmd() *cobra.Command {
	cmder := &promptCommander{}

	cmd := &cobra.Command{
		Use:   "prompt [image]",
		Short: promptShortDesc,
		Long:  promptLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 1 && cmder.imageURL != "":
				return errors.New("give either an image path or --url, not both")
			case len(args) == 0 && cmder.imageURL == "":
				return errors.New("an image path or --url is required")
			}

			cmder.stdout = cmd.OutOrStdout()
			cmder.stderr = cmd.ErrOrStderr()
			cmder.configDir, _ = cmd.Flags().GetString(session.FlagConfigDir)

			var err error
			cmder.sess, err = session.FromCommand(cmd, registryKeys, cmder.interactive())
			if err != nil {
				return err
			}

			return cmder.prepare(args)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer cmder.sess.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx)
		},
	}

	cmd.Flags().StringVar(&cmder.imageURL, "url", "", "Generate from an image URL instead of a file")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Write plain text even when stdout is a terminal")
	config.AddStringFlag(cmd, config.Flags, config.FlagStyle, &cmder.style)
	config.AddStringFlag(cmd, config.Flags, config.FlagTick, &cmder.tick)

	return cmd
}

func (c *promptCommander) interactive() bool {
	return !c.plain && tui.IsTerminal(c.stdout)
}

func (c *promptCommander) prepare(args []string) error {
	style := c.sess.Style()
	client := c.sess.Client

	if c.imageURL != "" {
		c.source = c.imageURL
		c.stream = func(ctx context.Context, h sse.Handler) error {
			return client.StreamPromptFromURL(ctx, c.imageURL, style, h)
		}
		return nil
	}

	img, err := backend.LoadImage(args[0])
	if err != nil {
		return err
	}
	c.source = args[0]
	c.stream = func(ctx context.Context, h sse.Handler) error {
		return client.StreamPrompt(ctx, img, style, h)
	}
	return nil
}

func (c *promptCommander) run(ctx context.Context) error {
	c.sess.Logger.Debug("generating prompt", "source", c.source, "style", c.sess.Style())

	var (
		analysis, prompt string
		err              error
	)
	if c.interactive() {
		analysis, prompt, err = c.runInteractive(ctx)
	} else {
		analysis, prompt, err = c.runPlain(ctx)
	}
	if err != nil {
		return err
	}

	if strings.TrimSpace(prompt) == "" {
		return errors.New("the backend did not return a prompt")
	}

	err = dotdir.NewManager().SaveLastPrompt(&dotdir.LastPrompt{
		Prompt:    prompt,
		Analysis:  analysis,
		Source:    c.source,
		Style:     c.sess.Style(),
		CreatedAt: time.Now(),
	}, c.configDir)
	if err != nil {
		c.sess.Logger.Warn("could not save prompt", "error", err)
		return nil
	}

	cliui.Success(c.stderr, `Saved; "formu restyle <image>" will use this prompt`)
	return nil
}

func (c *promptCommander) runPlain(ctx context.Context) (string, string, error) {
	var analysis, prompt strings.Builder

	h := sse.HandlerFuncs{
		Event: func(ev sse.Event) {
			switch ev.Channel() {
			case sse.ChannelAnalysis:
				analysis.WriteString(ev.Payload)
				fmt.Fprint(c.stderr, cliui.DimStyle.Render(ev.Payload))
			case sse.ChannelPrompt:
				prompt.WriteString(ev.Payload)
				fmt.Fprint(c.stdout, ev.Payload)
			}
		},
	}

	if err := c.stream(ctx, h); err != nil {
		return "", "", fmt.Errorf("generating prompt: %w", err)
	}

	if analysis.Len() > 0 {
		fmt.Fprintln(c.stderr)
	}
	fmt.Fprintln(c.stdout)
	return analysis.String(), prompt.String(), nil
}

func (c *promptCommander) runInteractive(ctx context.Context) (string, string, error) {
	tick, err := c.sess.Tick()
	if err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tui.ConfigureRenderer()
	model := tui.NewPromptModel("formu prompt · "+c.source, cancel, typewriter.WithTick(tick))
	model.Begin()
	program := bubbletea.NewProgram(model)

	go func() {
		err := c.stream(ctx, model.Handler(nil))
		program.Send(tui.StreamDoneMsg{Err: err})
	}()

	if _, err := program.Run(); err != nil {
		return "", "", fmt.Errorf("running prompt view: %w", err)
	}

	if model.Aborted() {
		return "", "", errors.New("prompt generation cancelled")
	}
	if err := model.Err(); err != nil {
		return "", "", fmt.Errorf("generating prompt: %w", err)
	}

	prompt := model.Prompt().Text()
	rendered, err := cliui.RenderMarkdown(prompt, 0)
	if err != nil {
		c.sess.Logger.Debug("rendering prompt as markdown", "error", err)
	}
	fmt.Fprint(c.stdout, rendered)

	return model.Analysis().Text(), prompt, nil
}
