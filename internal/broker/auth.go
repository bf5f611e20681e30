package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pquerna/otp/totp"

	"shoonya-screener/internal/errors"
)

// Login authenticates with the QuickAuth endpoint. The password and the
// "uid|apikey" pair are SHA-256 hashed; the second factor is a TOTP
// generated from the configured secret.
func (b *ShoonyaBroker) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(b.cfg.TOTPSecret, time.Now())
	if err != nil {
		return errors.Wrap(err, "generating TOTP")
	}

	payload := map[string]string{
		"apkversion": "go:1.0.0",
		"uid":        b.cfg.UserID,
		"pwd":        sha256Hex(b.cfg.Password),
		"factor2":    code,
		"vc":         b.cfg.VendorCode,
		"appkey":     sha256Hex(b.cfg.UserID + "|" + b.cfg.APIKey),
		"imei":       b.cfg.IMEI,
		"source":     "API",
	}

	var resp struct {
		Stat         string `json:"stat"`
		ErrorMessage string `json:"emsg"`
		SessionToken string `json:"susertoken"`
		UserName     string `json:"uname"`
	}
	if err := b.post(ctx, "QuickAuth", payload, false, &resp); err != nil {
		return err
	}

	b.mu.Lock()
	b.sessionToken = resp.SessionToken
	b.mu.Unlock()

	b.logger.Info().Str("user", resp.UserName).Msg("Login successful")
	return nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// sessionData represents a persisted session.
type sessionData struct {
	SessionToken string    `json:"session_token"`
	UserID       string    `json:"user_id"`
	IssuedAt     time.Time `json:"issued_at"`
}

// SaveSession persists the current session token to disk so subsequent
// invocations can reuse it. Shoonya tokens are valid for the trading day.
func (b *ShoonyaBroker) SaveSession(path string) error {
	token := b.SessionToken()
	if token == "" {
		return errors.ErrNotAuthenticated
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "creating session directory")
	}

	data, err := json.Marshal(sessionData{
		SessionToken: token,
		UserID:       b.cfg.UserID,
		IssuedAt:     time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "marshaling session")
	}

	return os.WriteFile(path, data, 0600)
}

// LoadSession restores a persisted session token. Tokens issued on a
// previous calendar day are expired.
func (b *ShoonyaBroker) LoadSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading session file")
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return errors.Wrap(err, "unmarshaling session")
	}

	if session.UserID != b.cfg.UserID {
		return errors.ErrSessionExpired
	}
	now := time.Now()
	if session.IssuedAt.Year() != now.Year() || session.IssuedAt.YearDay() != now.YearDay() {
		return errors.ErrSessionExpired
	}

	b.SetSessionToken(session.SessionToken)
	return nil
}
