package cli

import (
	"fmt"

	"shoonya-screener/internal/models"
	"shoonya-screener/pkg/utils"
)

// renderTable prints the ranked live table: underlying header first,
// then the contracts ordered by return.
func renderTable(output *Output, equity models.Equity, insts []models.LiveInstrument, topRows int) {
	output.Println()
	output.Bold("%s  %s  %s", equity.Symbol,
		utils.FormatIndianCurrency(equity.LTP),
		utils.FormatPercent(equity.GainLossPercent))

	output.Dim("%-24s %8s %10s %8s %8s %8s %7s", "CONTRACT", "BID", "SELL VAL", "DIST%", "RET%", "XI", "DELTA")

	if topRows <= 0 || topRows > len(insts) {
		topRows = len(insts)
	}
	for _, inst := range insts[:topRows] {
		line := fmt.Sprintf("%-24s %8.2f %10.2f %8.2f %8.2f %8.2f %7.3f",
			inst.TradingSymbol,
			inst.Bid,
			inst.SellValue,
			inst.StrikePosition,
			inst.ReturnValue,
			inst.Sigmas.XI,
			inst.Delta)

		switch {
		case inst.ReturnValueChange.HasPrior && inst.ReturnValueChange.Change > 0:
			output.Success("%s", line)
		case inst.ReturnValueChange.HasPrior && inst.ReturnValueChange.Change < 0:
			output.Error("%s", line)
		default:
			output.Println(line)
		}
	}
}
