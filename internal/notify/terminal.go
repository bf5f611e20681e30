package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// TerminalNotifier rings the terminal bell and prints a one-line alert
// when the top-ranked contract's bid moves. Writes are serialized so
// alerts from the store loop never interleave with table redraws.
type TerminalNotifier struct {
	out         io.Writer
	logger      zerolog.Logger
	bellEnabled bool

	mu sync.Mutex
}

// NewTerminalNotifier creates a terminal notifier writing to out.
func NewTerminalNotifier(out io.Writer, bellEnabled bool, logger zerolog.Logger) *TerminalNotifier {
	return &TerminalNotifier{out: out, logger: logger, bellEnabled: bellEnabled}
}

// TopBidMoved implements Notifier.
func (n *TerminalNotifier) TopBidMoved(alert Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()

	sign := ""
	if alert.BidChange > 0 {
		sign = "+"
	}

	bell := ""
	if n.bellEnabled {
		bell = "\a"
	}

	fmt.Fprintf(n.out, "%s[%s] %s bid %.2f (%s%.2f) return %.2f%%\n",
		bell,
		alert.Timestamp.Format("15:04:05"),
		alert.TradingSymbol,
		alert.Bid, sign, alert.BidChange,
		alert.ReturnValue)

	n.logger.Info().
		Str("symbol", alert.TradingSymbol).
		Float64("bid", alert.Bid).
		Float64("change", alert.BidChange).
		Msg("Top-ranked bid moved")
}

var _ Notifier = (*TerminalNotifier)(nil)
