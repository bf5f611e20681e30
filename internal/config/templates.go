package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Shoonya Screener Configuration

[screener]
# Filtering band strategy: "percent" (flat percentage band),
# "sd" (SD-multiplier band) or "sigma" (asymmetric sigma band)
band_mode = "sigma"
# Entry percent for the flat percentage band
entry_percent = 10.0
# Multiplier applied to the volatility band in sd/sigma modes
sigma_multiplier = 1.0
# Risk-free rate used in the Black-Scholes delta
risk_free_rate = 0.07
# Assumed slippage below the best bid, in rupees
tick_slippage = 0.05

# Per-symbol entry percent overrides
[screener.custom_percent]
# RELIANCE = 7.5

[data]
# Path to the instrument universe database (default: <config dir>/screener.db)
# db_path = ""
# CSV file with market holidays (date,name rows, date as YYYY-MM-DD)
holiday_file = ""
# Extra NSE symbols to seed beyond the Nifty 500
extra_symbols = []

[ui]
# Enable colored output
color_enabled = true
# Ring the terminal bell when the top-ranked contract's bid moves
alert_sound = true
# Number of ranked rows to display
top_rows = 20
`

const credentialsTemplate = `# Shoonya API Credentials
# Fill these in before running 'screener login'.

user_id = ""
password = ""
totp_secret = ""
vendor_code = ""
api_key = ""
imei = "abc1234"
`

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate)
}

func createTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}
