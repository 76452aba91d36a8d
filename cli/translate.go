package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

// ErrJobFailed is returned when a one-shot translation does not produce an
// artifact.
var ErrJobFailed = errors.New("translation job failed")

// TranslateCmd runs one job in the foreground and prints its log channel.
func TranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <document_id>",
		Short: "Translate one document and print its progress",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			if !config.IsDocumentID(args[0]) {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// the job's own lines go to stdout; keep process logs out of the way
			ctx = logger.ContextWithLogger(ctx, logger.NewLogger(&logger.Config{
				Level:      logger.WarnLevel,
				Output:     cmd.ErrOrStderr(),
				TimeFormat: time.TimeOnly,
			}))
			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			_, ch, err := app.Runner.Start(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last, err := follow(ctx, out, ch, colorEnabled(out))
			if err != nil {
				return err
			}
			if !strings.HasPrefix(last, job.ArtifactPrefix) {
				return ErrJobFailed
			}
			return nil
		},
	}
}

// follow prints lines until the channel is closed and drained, and returns
// the last one.
func follow(ctx context.Context, w io.Writer, ch *job.LogChannel, color bool) (string, error) {
	var last string
	for {
		ready := ch.Ready()
		lines, done := ch.Drain()
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, renderJobLine(line, color)); err != nil {
				return last, err
			}
			last = line
		}
		if done {
			return last, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			// the runner still closes the channel once the job unwinds
			<-ready
		}
	}
}
