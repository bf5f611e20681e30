package cli

import (
	"github.com/spf13/cobra"

	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/models"
	"shoonya-screener/pkg/utils"
)

func newQuoteCmd(app *App) *cobra.Command {
	var exchange string

	cmd := &cobra.Command{
		Use:   "quote <token>",
		Short: "Fetch a full quote including the top-5 bid/ask ladder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if !app.Broker.IsAuthenticated() {
				output.Error("Not logged in, run 'screener login' first")
				return errors.ErrNotAuthenticated
			}

			quote, err := app.Broker.GetQuote(cmd.Context(), models.Exchange(exchange), args[0])
			if err != nil {
				output.Error("Quote failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(quote)
			}

			output.Bold("%s  %s", quote.TradingSymbol, quote.Exchange)
			output.Printf("LTP    %s\n", utils.FormatIndianCurrency(quote.LTPValue()))
			output.Printf("Close  %s\n", utils.FormatIndianCurrency(quote.CloseValue()))

			bids := quote.BidLadder()
			asks := quote.AskLadder()
			output.Println()
			output.Dim("      Bid        Ask")
			for i := 0; i < 5; i++ {
				output.Printf("%d  %9.2f  %9.2f\n", i+1, bids[i], asks[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exchange, "exchange", string(models.NSE), "exchange segment (NSE, NFO)")
	return cmd
}
