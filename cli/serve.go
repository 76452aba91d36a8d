package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/texlate/texlate/engine/infra/server"
	"github.com/texlate/texlate/engine/infra/server/appstate"
)

// ServeCmd runs the HTTP service.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the translation service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			state, err := appstate.NewState(app.Runner, app.Slots, app.Workspace)
			if err != nil {
				return err
			}
			state.Store = app.Cache
			srv, err := server.NewServer(ctx, app.Config.Server, state, app.Monitoring)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
