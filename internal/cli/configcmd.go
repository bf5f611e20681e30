package cli

import (
	"github.com/spf13/cobra"

	"shoonya-screener/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Prints the effective configuration after file, defaults and
environment overrides. Credentials are masked.`,
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			cfg := app.Config

			if output.IsJSON() {
				output.JSON(map[string]interface{}{
					"config_dir":       config.DefaultConfigDir(),
					"band_mode":        cfg.Screener.BandMode,
					"entry_percent":    cfg.Screener.EntryPercent,
					"sigma_multiplier": cfg.Screener.SigmaMultiplier,
					"custom_percent":   cfg.Screener.CustomPercent,
					"risk_free_rate":   cfg.Screener.RiskFreeRate,
					"tick_slippage":    cfg.Screener.TickSlippage,
					"db_path":          cfg.Data.DBPath,
					"holiday_file":     cfg.Data.HolidayFile,
					"extra_symbols":    cfg.Data.ExtraSymbols,
					"user_id_set":      cfg.Credentials.UserID != "",
				})
				return
			}

			output.Bold("Screener")
			output.Printf("  band mode:        %s\n", cfg.Screener.BandMode)
			output.Printf("  entry percent:    %.2f\n", cfg.Screener.EntryPercent)
			output.Printf("  sigma multiplier: %.2f\n", cfg.Screener.SigmaMultiplier)
			output.Printf("  risk-free rate:   %.2f\n", cfg.Screener.RiskFreeRate)
			output.Printf("  tick slippage:    %.2f\n", cfg.Screener.TickSlippage)
			for symbol, percent := range cfg.Screener.CustomPercent {
				output.Printf("  %s override:  %.2f\n", symbol, percent)
			}

			output.Bold("Data")
			output.Printf("  database:     %s\n", cfg.Data.DBPath)
			if cfg.Data.HolidayFile != "" {
				output.Printf("  holiday file: %s\n", cfg.Data.HolidayFile)
			}
			if len(cfg.Data.ExtraSymbols) > 0 {
				output.Printf("  extra symbols: %v\n", cfg.Data.ExtraSymbols)
			}

			output.Bold("Credentials")
			if cfg.Credentials.UserID != "" {
				output.Printf("  user id: %s (credentials loaded)\n", cfg.Credentials.UserID)
			} else {
				output.Warning("  no credentials configured, edit credentials.toml")
			}
		},
	}
}
