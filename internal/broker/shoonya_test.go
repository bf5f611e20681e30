package broker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/models"
)

// restServer records Noren-style form requests and replays canned JSON.
type restServer struct {
	t *testing.T

	lastEndpoint string
	lastJData    map[string]string
	lastJKey     string

	responses map[string]string
}

func newRESTBroker(t *testing.T) (*restServer, *ShoonyaBroker) {
	s := &restServer{t: t, responses: map[string]string{}}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		values, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("unparseable form body: %v", err)
		}

		s.lastEndpoint = filepath.Base(r.URL.Path)
		s.lastJKey = values.Get("jKey")
		s.lastJData = map[string]string{}
		if jData := values.Get("jData"); jData != "" {
			if err := json.Unmarshal([]byte(jData), &s.lastJData); err != nil {
				t.Fatalf("unparseable jData: %v", err)
			}
		}

		resp, ok := s.responses[s.lastEndpoint]
		if !ok {
			resp = `{"stat":"Not_Ok","emsg":"no canned response"}`
		}
		io.WriteString(w, resp)
	}))
	t.Cleanup(ts.Close)

	b := NewShoonyaBroker(ShoonyaConfig{
		UserID:     "FA0001",
		VendorCode: "FA0001_U",
		APIKey:     "key",
		BaseURL:    ts.URL,
	}, zerolog.Nop())
	b.SetSessionToken("session-token")
	return s, b
}

func TestGetQuoteWireFormat(t *testing.T) {
	server, b := newRESTBroker(t)
	server.responses["GetQuotes"] = `{"stat":"Ok","tsym":"RELIANCE-EQ","lp":"2950.10","c":"2930.00","bp1":"2950.00","sp1":"2950.20"}`

	quote, err := b.GetQuote(context.Background(), models.NSE, "2885")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	if server.lastJData["uid"] != "FA0001" || server.lastJData["exch"] != "NSE" || server.lastJData["token"] != "2885" {
		t.Errorf("unexpected jData payload: %v", server.lastJData)
	}
	if server.lastJKey != "session-token" {
		t.Errorf("jKey = %q, want the session token", server.lastJKey)
	}

	if quote.LTPValue() != 2950.10 {
		t.Errorf("ltp = %f, want 2950.10", quote.LTPValue())
	}
	if quote.CloseValue() != 2930.00 {
		t.Errorf("close = %f, want 2930.00", quote.CloseValue())
	}
	if bids := quote.BidLadder(); bids[0] != 2950.00 {
		t.Errorf("best bid = %f, want 2950.00", bids[0])
	}
}

func TestGetOrderMarginSellQuote(t *testing.T) {
	server, b := newRESTBroker(t)
	server.responses["GetOrderMargin"] = `{"stat":"Ok","ordermargin":"52000.50","cash":"100000"}`

	margin, err := b.GetOrderMargin(context.Background(), 12.50, 250, "RELIANCE28AUG25P2800")
	if err != nil {
		t.Fatalf("GetOrderMargin: %v", err)
	}

	jd := server.lastJData
	if jd["trantype"] != "S" || jd["prd"] != "M" || jd["prctyp"] != "LMT" {
		t.Errorf("margin quote must describe a margin-product limit sell, got %v", jd)
	}
	if jd["qty"] != "250" || jd["prc"] != "12.50" || jd["tsym"] != "RELIANCE28AUG25P2800" {
		t.Errorf("unexpected order fields: %v", jd)
	}

	if margin.OrderMargin != 52000.50 {
		t.Errorf("order margin = %f, want 52000.50", margin.OrderMargin)
	}
}

func TestPlaceAMOOrder(t *testing.T) {
	server, b := newRESTBroker(t)
	server.responses["PlaceOrder"] = `{"stat":"Ok","norenordno":"24083100000001"}`

	orderNo, err := b.PlaceAMOOrder(context.Background(), "RELIANCE-EQ", 10, 2900)
	if err != nil {
		t.Fatalf("PlaceAMOOrder: %v", err)
	}
	if orderNo != "24083100000001" {
		t.Errorf("order number = %s", orderNo)
	}

	jd := server.lastJData
	if jd["amo"] != "Yes" || jd["trantype"] != "B" || jd["prd"] != "C" {
		t.Errorf("AMO order must be an after-market CNC buy, got %v", jd)
	}
}

func TestBrokerErrorOnNotOk(t *testing.T) {
	server, b := newRESTBroker(t)
	server.responses["GetQuotes"] = `{"stat":"Not_Ok","emsg":"Session Expired"}`

	_, err := b.GetQuote(context.Background(), models.NSE, "2885")
	var brokerErr *errors.BrokerError
	if !errors.As(err, &brokerErr) {
		t.Fatalf("expected BrokerError, got %v", err)
	}
	if !strings.Contains(brokerErr.Message, "Session Expired") {
		t.Errorf("broker error should carry the emsg, got %q", brokerErr.Message)
	}
}

func TestAuthenticatedCallWithoutSession(t *testing.T) {
	_, b := newRESTBroker(t)
	b.SetSessionToken("")

	_, err := b.GetQuote(context.Background(), models.NSE, "2885")
	if !errors.Is(err, errors.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSessionSaveAndLoad(t *testing.T) {
	_, b := newRESTBroker(t)
	path := filepath.Join(t.TempDir(), "session.json")

	if err := b.SaveSession(path); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	restored := NewShoonyaBroker(ShoonyaConfig{UserID: "FA0001"}, zerolog.Nop())
	if err := restored.LoadSession(path); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if restored.SessionToken() != "session-token" {
		t.Errorf("restored token = %q", restored.SessionToken())
	}

	// A different user must not inherit the session.
	other := NewShoonyaBroker(ShoonyaConfig{UserID: "FB9999"}, zerolog.Nop())
	if err := other.LoadSession(path); !errors.Is(err, errors.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired for a different user, got %v", err)
	}
}
