package cli

import (
	"github.com/spf13/cobra"

	"shoonya-screener/internal/errors"
	"shoonya-screener/pkg/utils"
)

func newExpiriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expiries",
		Short: "List the option expiries in the seeded universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Store == nil {
				output.Error("Instrument store unavailable, run 'screener seed' first")
				return errors.ErrDatabaseError
			}

			expiries, err := app.Store.DistinctExpiries(cmd.Context())
			if err != nil {
				output.Error("Query failed: %v", err)
				return err
			}
			utils.SortExpiries(expiries)

			if output.IsJSON() {
				return output.JSON(expiries)
			}
			for _, expiry := range expiries {
				output.Println(expiry)
			}
			return nil
		},
	}
}
