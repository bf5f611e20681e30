// Package broker provides Shoonya (Noren) API integration.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/models"
)

const (
	defaultBaseURL   = "https://api.shoonya.com/NorenWClientTP"
	defaultTickerURL = "wss://api.shoonya.com/NorenWSTP/"
)

// ShoonyaConfig holds configuration for the Shoonya broker.
type ShoonyaConfig struct {
	UserID     string
	Password   string
	TOTPSecret string
	VendorCode string
	APIKey     string
	IMEI       string

	// BaseURL and TickerURL override the production endpoints in tests.
	BaseURL   string
	TickerURL string
}

// ShoonyaBroker implements the Broker interface over the Noren REST API.
type ShoonyaBroker struct {
	cfg       ShoonyaConfig
	baseURL   string
	tickerURL string
	client    *http.Client
	logger    zerolog.Logger

	mu           sync.RWMutex
	sessionToken string
}

// NewShoonyaBroker creates a new Shoonya broker instance.
func NewShoonyaBroker(cfg ShoonyaConfig, logger zerolog.Logger) *ShoonyaBroker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tickerURL := cfg.TickerURL
	if tickerURL == "" {
		tickerURL = defaultTickerURL
	}

	return &ShoonyaBroker{
		cfg:       cfg,
		baseURL:   baseURL,
		tickerURL: tickerURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// IsAuthenticated returns whether a session token is held.
func (b *ShoonyaBroker) IsAuthenticated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sessionToken != ""
}

// SessionToken returns the current session token, empty when not logged in.
func (b *ShoonyaBroker) SessionToken() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sessionToken
}

// SetSessionToken installs a previously issued session token (e.g. one
// restored from disk).
func (b *ShoonyaBroker) SetSessionToken(token string) {
	b.mu.Lock()
	b.sessionToken = token
	b.mu.Unlock()
}

// GetQuote fetches a full quote (including the top-5 bid/ask ladder)
// for one instrument.
func (b *ShoonyaBroker) GetQuote(ctx context.Context, exchange models.Exchange, token string) (*Quote, error) {
	payload := map[string]string{
		"uid":   b.cfg.UserID,
		"exch":  string(exchange),
		"token": token,
	}

	var quote Quote
	if err := b.post(ctx, "GetQuotes", payload, true, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetOrderMargin fetches the margin requirement for selling one lot at
// the given price.
func (b *ShoonyaBroker) GetOrderMargin(ctx context.Context, price float64, quantity int, tradingSymbol string) (*models.Margin, error) {
	payload := map[string]string{
		"uid":      b.cfg.UserID,
		"actid":    b.cfg.UserID,
		"exch":     string(models.NFO),
		"tsym":     tradingSymbol,
		"qty":      fmt.Sprintf("%d", quantity),
		"prc":      fmt.Sprintf("%.2f", price),
		"prd":      "M",
		"trantype": "S",
		"prctyp":   "LMT",
	}

	var resp struct {
		Stat         string `json:"stat"`
		ErrorMessage string `json:"emsg"`
		OrderMargin  string `json:"ordermargin"`
		MarginUsed   string `json:"marginused"`
		Cash         string `json:"cash"`
		Remarks      string `json:"remarks"`
	}
	if err := b.post(ctx, "GetOrderMargin", payload, true, &resp); err != nil {
		return nil, err
	}

	return &models.Margin{
		OrderMargin: parsePrice(resp.OrderMargin),
		MarginUsed:  parsePrice(resp.MarginUsed),
		Cash:        parsePrice(resp.Cash),
		Remarks:     resp.Remarks,
	}, nil
}

// PlaceAMOOrder places an after-market limit buy order on NSE and
// returns the order number.
func (b *ShoonyaBroker) PlaceAMOOrder(ctx context.Context, tradingSymbol string, quantity int, price float64) (string, error) {
	payload := map[string]string{
		"uid":      b.cfg.UserID,
		"actid":    b.cfg.UserID,
		"exch":     string(models.NSE),
		"tsym":     tradingSymbol,
		"qty":      fmt.Sprintf("%d", quantity),
		"prc":      fmt.Sprintf("%.2f", price),
		"prd":      "C",
		"trantype": "B",
		"prctyp":   "LMT",
		"ret":      "DAY",
		"amo":      "Yes",
	}

	var resp struct {
		Stat         string `json:"stat"`
		ErrorMessage string `json:"emsg"`
		OrderNumber  string `json:"norenordno"`
	}
	if err := b.post(ctx, "PlaceOrder", payload, true, &resp); err != nil {
		return "", err
	}

	b.logger.Info().
		Str("trading_symbol", tradingSymbol).
		Int("quantity", quantity).
		Float64("price", price).
		Str("order_no", resp.OrderNumber).
		Msg("Placed AMO order")

	return resp.OrderNumber, nil
}

// NewTicker creates a streaming connection bound to this broker's
// session. The connection is not established until Connect is called.
func (b *ShoonyaBroker) NewTicker() *ShoonyaTicker {
	return NewShoonyaTicker(TickerConfig{
		URL:          b.tickerURL,
		UserID:       b.cfg.UserID,
		AccountID:    b.cfg.UserID,
		SessionToken: b.SessionToken(),
	}, b.logger)
}

// post sends a Noren-style form request: "jData=<json>" plus the
// session token as jKey when withKey is set. Responses with
// stat != Ok become BrokerErrors; transport failures become
// ConnectivityErrors.
func (b *ShoonyaBroker) post(ctx context.Context, endpoint string, payload interface{}, withKey bool, out interface{}) error {
	start := time.Now()

	jData, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshaling %s request", endpoint)
	}

	body := "jData=" + string(jData)
	if withKey {
		token := b.SessionToken()
		if token == "" {
			return errors.ErrNotAuthenticated
		}
		body += "&jKey=" + token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "building %s request", endpoint)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.NewConnectivityError(endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewConnectivityError(endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.NewBrokerError(endpoint, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, data), nil)
	}

	var probe struct {
		Stat         string `json:"stat"`
		ErrorMessage string `json:"emsg"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.NewBrokerError(endpoint, "unparseable response", err)
	}
	if probe.Stat != "Ok" {
		return errors.NewBrokerError(endpoint, probe.ErrorMessage, nil)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.NewBrokerError(endpoint, "unparseable response body", err)
		}
	}

	b.logger.Debug().
		Str("endpoint", endpoint).
		Dur("duration", time.Since(start)).
		Msg("API call completed")

	return nil
}

// Ensure ShoonyaBroker implements Broker
var _ Broker = (*ShoonyaBroker)(nil)
