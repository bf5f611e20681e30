package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"shoonya-screener/internal/errors"
)

func newOrderCmd(app *App) *cobra.Command {
	var price float64

	cmd := &cobra.Command{
		Use:   "amo <trading-symbol> <quantity>",
		Short: "Place an after-market limit buy order",
		Long: `Places an AMO (after market order) limit buy on NSE. The order is
queued by the exchange and fires in the next session's opening
window.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if !app.Broker.IsAuthenticated() {
				output.Error("Not logged in, run 'screener login' first")
				return errors.ErrNotAuthenticated
			}

			quantity, err := strconv.Atoi(args[1])
			if err != nil || quantity <= 0 {
				output.Error("Quantity must be a positive integer")
				return errors.ErrConfigInvalid
			}
			if price <= 0 {
				output.Error("A positive --price is required")
				return errors.ErrConfigInvalid
			}

			orderNo, err := app.Broker.PlaceAMOOrder(cmd.Context(), args[0], quantity, price)
			if err != nil {
				output.Error("Order failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"order_no": orderNo})
			}
			output.Success("AMO placed, order number %s", orderNo)
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "limit price (required)")
	return cmd
}
