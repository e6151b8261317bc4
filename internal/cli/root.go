// Package cli provides the command-line interface for the trading engine.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/secondary"
	"alpaca-trader/internal/store"
	"alpaca-trader/internal/stream"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Broker    broker.Broker
	Streamer  broker.Streamer
	Cache     *stream.Cache
	Secondary secondary.Source
	Store     store.PositionStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Cache:     stream.NewCache(),
		Secondary: secondary.NewYahooSource(logger),
	}

	if cfg.Credentials.Alpaca.APIKey != "" {
		alpacaCfg := broker.AlpacaConfig{
			APIKey:    cfg.Credentials.Alpaca.APIKey,
			APISecret: cfg.Credentials.Alpaca.APISecret,
			BaseURL:   cfg.Credentials.Alpaca.BaseURL,
		}
		alpacaBroker := broker.NewAlpacaBroker(alpacaCfg)
		app.Streamer = broker.NewAlpacaStreamer(alpacaCfg, app.Cache)
		if cfg.IsPaperMode() && cfg.Credentials.Alpaca.BaseURL == "" {
			// Without an explicit paper endpoint, simulate fills locally
			// against real market data.
			app.Broker = broker.NewPaperBroker(broker.PaperBrokerConfig{DataBroker: alpacaBroker})
		} else {
			app.Broker = alpacaBroker
		}
		logger.Debug().Bool("paper", cfg.IsPaperMode()).Msg("Alpaca broker initialized")
	}

	dbPath := filepath.Join(config.DefaultConfigDir(), "trader.db")
	positionStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some commands will be unavailable")
	} else {
		app.Store = positionStore
		logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Rules-based equity trading decision engine",
		Long: `A rules-based equity trading decision engine for Alpaca.

Each invocation evaluates the configured symbols once during market hours,
sizes and submits buy orders, and closes positions eligible for sale. It is
intended to be run on a schedule by an external scheduler, one invocation at
a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(app),
		newPositionsCmd(app),
		newVersionCmd(),
	)
	return rootCmd
}
