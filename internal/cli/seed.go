package cli

import (
	"github.com/spf13/cobra"

	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/seed"
)

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Rebuild the instrument universe",
		Long: `Downloads the Shoonya NSE and NFO symbol masters, the Nifty 500
constituents, the exchange volatility file and the F&O ban list, then
replaces the local instrument database. Intended to run once before
the market opens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Store == nil {
				output.Error("Instrument store unavailable")
				return errors.ErrDatabaseError
			}

			seeder := seed.New(app.Store, seed.Config{
				HolidayFile:  app.Config.Data.HolidayFile,
				ExtraSymbols: app.Config.Data.ExtraSymbols,
			}, app.Logger)

			output.Info("Seeding instrument universe...")
			if err := seeder.Run(cmd.Context()); err != nil {
				output.Error("Seeding failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]bool{"seeded": true})
			}
			output.Success("Instrument universe refreshed")
			return nil
		},
	}
}
