package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shoonya-screener/internal/calendar"
	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/livestore"
	"shoonya-screener/internal/logging"
	"shoonya-screener/internal/models"
	"shoonya-screener/internal/notify"
	"shoonya-screener/internal/ret"
	"shoonya-screener/internal/selector"
	"shoonya-screener/internal/workdays"
	"shoonya-screener/pkg/utils"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		expirySuffix string
		bandMode     string
		refresh      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <symbol>",
		Short: "Screen an underlying's option chain live",
		Long: `Streams live ticks for an underlying and its out-of-band option
strikes, ranking the contracts by margin-based selling return. The
chain is narrowed once at startup using the configured volatility
band; every retained contract is then revalued on each tick.

Press Ctrl-C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])

			if !app.Broker.IsAuthenticated() {
				output.Error("Not logged in, run 'screener login' first")
				return errors.ErrNotAuthenticated
			}
			if app.Store == nil {
				output.Error("Instrument store unavailable, run 'screener seed' first")
				return errors.ErrDatabaseError
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if expirySuffix == "" {
				expirySuffix = utils.CurrentExpirySuffix()
			}
			if bandMode == "" {
				bandMode = app.Config.Screener.BandMode
			}

			return app.runWatch(ctx, output, symbol, expirySuffix, bandMode, refresh)
		},
	}

	cmd.Flags().StringVar(&expirySuffix, "expiry", "", "expiry month suffix, e.g. AUG-2025 (default: current month)")
	cmd.Flags().StringVar(&bandMode, "band", "", "band strategy: percent, sd or sigma (default: from config)")
	cmd.Flags().DurationVar(&refresh, "refresh", 2*time.Second, "table refresh interval")
	return cmd
}

// runWatch wires the whole pipeline: universe lookup, working-day
// cache, band narrowing, snapshot collection, then the live loop.
func (a *App) runWatch(ctx context.Context, output *Output, symbol, expirySuffix, bandMode string, refresh time.Duration) error {
	logger := logging.WithSymbol(a.Logger, symbol)

	equityInst, chain, err := a.Store.Subscription(ctx, symbol, expirySuffix)
	if err != nil {
		output.Error("Universe lookup failed: %v", err)
		return err
	}
	if len(chain) == 0 {
		output.Warning("No %s option contracts for %s in the universe", expirySuffix, symbol)
		return errors.ErrDataNotFound
	}

	cache, err := a.buildCache(ctx, chain)
	if err != nil {
		return err
	}

	// One quote for the live LTP and the previous close.
	quote, err := a.Broker.GetQuote(ctx, models.NSE, equityInst.Token)
	if err != nil {
		output.Error("Equity quote failed: %v", err)
		return err
	}
	equity := models.Equity{
		Token:     equityInst.Token,
		Symbol:    symbol,
		LTP:       quote.LTPValue(),
		PrevClose: quote.CloseValue(),
	}
	if equity.LTP <= 0 {
		output.Error("No last traded price for %s, is the market open?", symbol)
		return errors.ErrDataNotFound
	}

	band := a.bandStrategy(bandMode, symbol, cache)
	floor, ceiling := band.Bounds(selector.BandInput{
		LTP:       equity.LTP,
		AnnualVol: equityInst.AnnualVol,
		Expiry:    firstExpiry(chain),
	})
	output.Info("%s LTP %.2f, %s band [%.2f, %.2f]", symbol, equity.LTP, band.Name(), floor, ceiling)

	ticker := a.Broker.NewTicker()
	if err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return ticker.Connect(ctx)
	}); err != nil {
		output.Error("Ticker connection failed: %v", err)
		return err
	}
	defer ticker.Close()

	sel := selector.New(ticker, cache, selector.Config{
		TickSlippage: a.Config.Screener.TickSlippage,
		RiskFreeRate: a.Config.Screener.RiskFreeRate,
	}, logger)

	collected, err := sel.Collect(ctx, chain, equity.LTP, floor, ceiling)
	if err != nil {
		output.Error("Snapshot collection failed: %v", err)
		return err
	}
	if len(collected) == 0 {
		output.Warning("No contracts with a live bid inside the retained tails")
		return nil
	}
	output.Info("Watching %d contracts", len(collected))

	notifier := notify.NewTerminalNotifier(output.Writer(), a.Config.UI.AlertSound, logger)
	estimator := ret.NewMarginEstimator(a.Broker, a.Config.Screener.TickSlippage, logger)

	live := livestore.New(equity, collected, estimator, notifier, cache, livestore.Config{
		TickSlippage: a.Config.Screener.TickSlippage,
		RiskFreeRate: a.Config.Screener.RiskFreeRate,
	}, logger)
	go live.Run(ctx)

	ticker.OnTouchline(live.OnTick)
	ticker.OnError(func(err error) {
		logger.Error().Err(err).Msg("Ticker stream error")
	})

	keys := live.Keys()
	if err := ticker.Subscribe(keys); err != nil {
		output.Error("Subscribe failed: %v", err)
		return err
	}
	defer ticker.Unsubscribe(keys)

	return a.renderLoop(ctx, output, live, refresh)
}

// buildCache loads the holiday calendar and pre-populates the
// working-day cache for every expiry in the chain.
func (a *App) buildCache(ctx context.Context, chain []models.Instrument) (*workdays.Cache, error) {
	holidays, err := a.Store.Holidays(ctx)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(holidays))
	for _, h := range holidays {
		dates = append(dates, h.Date)
	}
	cache := workdays.New(calendar.NewHolidaySet(dates), a.Logger)

	seen := make(map[string]struct{})
	expiries := make([]string, 0, 4)
	for _, inst := range chain {
		if _, ok := seen[inst.Expiry]; !ok {
			seen[inst.Expiry] = struct{}{}
			expiries = append(expiries, inst.Expiry)
		}
	}
	cache.Prepopulate(expiries)
	return cache, nil
}

// bandStrategy resolves the configured band mode.
func (a *App) bandStrategy(mode, symbol string, cache *workdays.Cache) selector.BandStrategy {
	switch mode {
	case "percent":
		return selector.FlatPercentBand{Percent: a.Config.EntryPercentFor(symbol)}
	case "sd":
		return selector.SDBand{Cache: cache, Multiplier: a.Config.Screener.SigmaMultiplier}
	default:
		return selector.SigmaBand{Cache: cache, Multiplier: a.Config.Screener.SigmaMultiplier}
	}
}

func firstExpiry(chain []models.Instrument) string {
	for _, inst := range chain {
		if inst.Expiry != "" {
			return inst.Expiry
		}
	}
	return ""
}

// renderLoop redraws the ranked table until the context is cancelled.
func (a *App) renderLoop(ctx context.Context, output *Output, live *livestore.Store, refresh time.Duration) error {
	tick := time.NewTicker(refresh)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			output.Println()
			output.Info("Stopped")
			return nil
		case <-tick.C:
			equity, insts, err := live.Snapshot(ctx)
			if err != nil {
				return nil
			}
			renderTable(output, equity, insts, a.Config.UI.TopRows)
		}
	}
}
