// Package config provides configuration management for the screener.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Screener    ScreenerConfig `mapstructure:"screener"`
	Data        DataConfig     `mapstructure:"data"`
	UI          UIConfig       `mapstructure:"ui"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// ScreenerConfig holds valuation and filtering configuration.
type ScreenerConfig struct {
	// Band strategy: "percent", "sd" or "sigma"
	BandMode string `mapstructure:"band_mode"`
	// Default entry percent for the flat percentage band
	EntryPercent float64 `mapstructure:"entry_percent"`
	// Multiplier applied to the volatility band (sd / sigma modes)
	SigmaMultiplier float64 `mapstructure:"sigma_multiplier"`
	// Per-symbol entry percent overrides
	CustomPercent map[string]float64 `mapstructure:"custom_percent"`
	// Risk-free rate used in the Black-Scholes delta
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	// Assumed slippage below the best bid, in rupees
	TickSlippage float64 `mapstructure:"tick_slippage"`
}

// DataConfig holds instrument-universe and seeding configuration.
type DataConfig struct {
	DBPath       string   `mapstructure:"db_path"`
	HolidayFile  string   `mapstructure:"holiday_file"`
	ExtraSymbols []string `mapstructure:"extra_symbols"`
}

// UIConfig holds terminal output configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
	AlertSound   bool `mapstructure:"alert_sound"`
	TopRows      int  `mapstructure:"top_rows"`
}

// Credentials holds Shoonya API credentials.
type Credentials struct {
	UserID     string `mapstructure:"user_id"`
	Password   string `mapstructure:"password"`
	TOTPSecret string `mapstructure:"totp_secret"`
	VendorCode string `mapstructure:"vendor_code"`
	APIKey     string `mapstructure:"api_key"`
	IMEI       string `mapstructure:"imei"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/shoonya-screener"
	}
	return filepath.Join(home, ".config", "shoonya-screener")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("screener.band_mode", "sigma")
	v.SetDefault("screener.entry_percent", 10.0)
	v.SetDefault("screener.sigma_multiplier", 1.0)
	v.SetDefault("screener.risk_free_rate", 0.07)
	v.SetDefault("screener.tick_slippage", 0.05)
	v.SetDefault("data.db_path", filepath.Join(configDir, "screener.db"))
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.alert_sound", true)
	v.SetDefault("ui.top_rows", 20)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if terr := createTemplateConfig(configDir); terr != nil {
				return terr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOONYA_USER_ID"); v != "" {
		cfg.Credentials.UserID = v
	}
	if v := os.Getenv("SHOONYA_PASSWORD"); v != "" {
		cfg.Credentials.Password = v
	}
	if v := os.Getenv("SHOONYA_TOTP_SECRET"); v != "" {
		cfg.Credentials.TOTPSecret = v
	}
	if v := os.Getenv("SHOONYA_VENDOR_CODE"); v != "" {
		cfg.Credentials.VendorCode = v
	}
	if v := os.Getenv("SHOONYA_API_KEY"); v != "" {
		cfg.Credentials.APIKey = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Screener.BandMode {
	case "", "percent", "sd", "sigma":
	default:
		return fmt.Errorf("invalid band_mode: %s (must be 'percent', 'sd' or 'sigma')", c.Screener.BandMode)
	}

	if c.Screener.EntryPercent < 0 || c.Screener.EntryPercent > 100 {
		return fmt.Errorf("entry_percent must be between 0 and 100")
	}
	if c.Screener.SigmaMultiplier < 0 {
		return fmt.Errorf("sigma_multiplier must be non-negative")
	}
	if c.Screener.TickSlippage < 0 {
		return fmt.Errorf("tick_slippage must be non-negative")
	}
	for symbol, percent := range c.Screener.CustomPercent {
		if percent < 0 || percent > 100 {
			return fmt.Errorf("custom_percent for %s must be between 0 and 100", symbol)
		}
	}

	return nil
}

// EntryPercentFor returns the entry percent for a symbol, honoring any
// per-symbol override.
func (c *Config) EntryPercentFor(symbol string) float64 {
	if p, ok := c.Screener.CustomPercent[symbol]; ok {
		return p
	}
	return c.Screener.EntryPercent
}
