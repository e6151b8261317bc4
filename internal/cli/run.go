package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"alpaca-trader/internal/trading"
)

// newRunCmd creates the run command: one scheduled invocation of the engine.
func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one scheduled trading invocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Broker == nil {
				return fmt.Errorf("broker not configured: set Alpaca credentials")
			}
			if app.Store == nil {
				return fmt.Errorf("position store unavailable")
			}

			ctx := cmd.Context()
			if app.Streamer != nil {
				if err := app.Streamer.Connect(ctx); err != nil {
					app.Logger.Warn().Err(err).Msg("Stream connect failed, using snapshots")
					app.Streamer = nil
				}
			}

			engine := trading.NewEngine(app.Config, app.Logger, app.Broker, app.Streamer, app.Cache, app.Secondary, app.Store)
			return engine.Run(ctx)
		},
	}
}
