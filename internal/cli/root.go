package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"shoonya-screener/internal/broker"
	"shoonya-screener/internal/config"
	"shoonya-screener/internal/logging"
	"shoonya-screener/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Broker *broker.ShoonyaBroker
	Store  store.InstrumentStore
}

// SessionPath returns the path where the broker session is persisted.
func (a *App) SessionPath() string {
	return filepath.Join(config.DefaultConfigDir(), "session.json")
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.Broker = broker.NewShoonyaBroker(broker.ShoonyaConfig{
		UserID:     cfg.Credentials.UserID,
		Password:   cfg.Credentials.Password,
		TOTPSecret: cfg.Credentials.TOTPSecret,
		VendorCode: cfg.Credentials.VendorCode,
		APIKey:     cfg.Credentials.APIKey,
		IMEI:       cfg.Credentials.IMEI,
	}, logger)

	// Reuse today's session when one is on disk.
	if err := app.Broker.LoadSession(app.SessionPath()); err == nil {
		logger.Debug().Msg("Restored broker session from disk")
	}

	dataStore, err := store.NewSQLiteStore(cfg.Data.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open instrument store, run 'screener seed' first")
	} else {
		app.Store = dataStore
	}

	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "Shoonya options screener for the Indian stock market",
		Long: `Shoonya options screener streams live NSE/NFO market data and ranks
option contracts by their margin-based selling return.

It filters each underlying's option chain to the strikes outside a
volatility band, values every retained contract tick by tick, and
alerts when the top-ranked contract's bid moves.

Use 'screener help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/shoonya-screener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newSeedCmd(app))
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newExpiriesCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newOrderCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Shoonya Screener v%s\n", Version)
			}
		},
	}
}

// Execute loads configuration, builds the root command and runs it.
// The --config flag is peeked before cobra parsing because the config
// feeds the command construction itself.
func Execute() error {
	cfg, err := config.Load(configDirArg(os.Args[1:]))
	if err != nil {
		return err
	}

	logger := logging.NewLogger()
	return NewRootCmd(cfg, logger).Execute()
}

func configDirArg(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
