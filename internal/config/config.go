// Package config provides configuration management for the analytics desk.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultTakeProfitPercent is used when monitor.take_profit_percent is unset
	defaultTakeProfitPercent = 50.0
	// defaultStopLossPercent is used when monitor.stop_loss_percent is unset
	defaultStopLossPercent = 100.0
	// defaultCloseBeforeExpiryHours is used when monitor.close_before_expiry_hours is unset
	defaultCloseBeforeExpiryHours = 24.0
	// defaultMonitorInterval is used when monitor.interval is unset or invalid
	defaultMonitorInterval = time.Minute
	// defaultQuoteTTL is used when market.quote_ttl is unset or invalid
	defaultQuoteTTL = 30 * time.Second
	// defaultRangeFraction controls how wide payoff curves are sampled around spot
	defaultRangeFraction = 0.3
	// default template strike geometry, as fractions of the center price
	defaultCenterOffsetPct = 0.02
	defaultSpreadWidthPct  = 0.01
	defaultWingWidthPct    = 0.01
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Market      MarketConfig      `yaml:"market"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Sizing      SizingConfig      `yaml:"sizing"`
	Curve       CurveConfig       `yaml:"curve"`
	Templates   TemplatesConfig   `yaml:"templates"`
	Risk        RiskConfig        `yaml:"risk"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	LogFile  string `yaml:"log_file"`  // empty means stderr only
}

// MarketConfig defines the market-data provider settings.
type MarketConfig struct {
	Provider string `yaml:"provider"`  // sim
	QuoteTTL string `yaml:"quote_ttl"` // cache lifetime, e.g. "30s"
	Breaker  bool   `yaml:"breaker"`   // wrap the provider in a circuit breaker
}

// MonitorConfig defines the auto-close rule and evaluation cadence.
// CloseBeforeExpiryHours is a pointer so an explicit 0 (expiry trigger
// disabled) survives decoding; nil means unset and takes the default.
type MonitorConfig struct {
	Enabled                bool     `yaml:"enabled"`
	Interval               string   `yaml:"interval"`
	TakeProfitPercent      float64  `yaml:"take_profit_percent"`
	StopLossPercent        float64  `yaml:"stop_loss_percent"`
	CloseBeforeExpiryHours *float64 `yaml:"close_before_expiry_hours"`
	CloseTimeout           string   `yaml:"close_timeout"`
}

// SizingConfig defines the position sizer inputs.
type SizingConfig struct {
	Budget      float64 `yaml:"budget"`
	RewardFloor float64 `yaml:"reward_floor"`
}

// CurveConfig defines payoff-curve sampling.
type CurveConfig struct {
	RangeFraction float64 `yaml:"range_fraction"`
}

// TemplatesConfig defines the strike geometry for generated strategy drafts,
// all expressed as fractions of the center price.
type TemplatesConfig struct {
	CenterOffsetPct float64 `yaml:"center_offset_pct"`
	SpreadWidthPct  float64 `yaml:"spread_width_pct"`
	WingWidthPct    float64 `yaml:"wing_width_pct"`
}

// RiskConfig defines the risk report inputs.
type RiskConfig struct {
	AccountSize float64 `yaml:"account_size"`
}

// DashboardConfig defines the HTTP API settings.
type DashboardConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	AuthToken  string `yaml:"auth_token"`
}

// StorageConfig defines storage settings for position data.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// Defaults are applied before range checks.
func (c *Config) Validate() error {
	c.normalize()

	if c.Environment.Mode != "paper" {
		return fmt.Errorf("environment.mode must be 'paper'")
	}

	if c.Market.Provider != "sim" {
		return fmt.Errorf("market.provider must be 'sim'")
	}
	if c.Market.QuoteTTL != "" {
		if _, err := time.ParseDuration(c.Market.QuoteTTL); err != nil {
			return fmt.Errorf("market.quote_ttl invalid: %w", err)
		}
	}

	if c.Monitor.TakeProfitPercent < 1 || c.Monitor.TakeProfitPercent > 500 {
		return fmt.Errorf("monitor.take_profit_percent must be between 1 and 500")
	}
	if c.Monitor.StopLossPercent < 1 || c.Monitor.StopLossPercent > 500 {
		return fmt.Errorf("monitor.stop_loss_percent must be between 1 and 500")
	}
	if h := *c.Monitor.CloseBeforeExpiryHours; h < 0 || h > 168 {
		return fmt.Errorf("monitor.close_before_expiry_hours must be between 0 and 168")
	}
	if c.Monitor.Interval != "" {
		if _, err := time.ParseDuration(c.Monitor.Interval); err != nil {
			return fmt.Errorf("monitor.interval invalid: %w", err)
		}
	}
	if c.Monitor.CloseTimeout != "" {
		if _, err := time.ParseDuration(c.Monitor.CloseTimeout); err != nil {
			return fmt.Errorf("monitor.close_timeout invalid: %w", err)
		}
	}

	if c.Sizing.Budget <= 0 {
		return fmt.Errorf("sizing.budget must be > 0")
	}
	if c.Sizing.RewardFloor < 0 {
		return fmt.Errorf("sizing.reward_floor must be >= 0")
	}

	if c.Curve.RangeFraction <= 0 || c.Curve.RangeFraction >= 1 {
		return fmt.Errorf("curve.range_fraction must be in (0,1)")
	}

	if c.Templates.CenterOffsetPct <= 0 || c.Templates.CenterOffsetPct >= 1 {
		return fmt.Errorf("templates.center_offset_pct must be in (0,1)")
	}
	if c.Templates.SpreadWidthPct <= 0 || c.Templates.SpreadWidthPct >= 1 {
		return fmt.Errorf("templates.spread_width_pct must be in (0,1)")
	}
	if c.Templates.WingWidthPct <= 0 || c.Templates.WingWidthPct >= 1 {
		return fmt.Errorf("templates.wing_width_pct must be in (0,1)")
	}

	if c.Risk.AccountSize <= 0 {
		return fmt.Errorf("risk.account_size must be > 0")
	}

	if c.Dashboard.Enabled && c.Dashboard.ListenAddr == "" {
		return fmt.Errorf("dashboard.listen_addr is required when dashboard is enabled")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	return nil
}

// normalize fills unset fields with defaults.
func (c *Config) normalize() {
	if c.Environment.Mode == "" {
		c.Environment.Mode = "paper"
	}
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Market.Provider == "" {
		c.Market.Provider = "sim"
	}
	if c.Monitor.TakeProfitPercent == 0 {
		c.Monitor.TakeProfitPercent = defaultTakeProfitPercent
	}
	if c.Monitor.StopLossPercent == 0 {
		c.Monitor.StopLossPercent = defaultStopLossPercent
	}
	if c.Monitor.CloseBeforeExpiryHours == nil {
		v := defaultCloseBeforeExpiryHours
		c.Monitor.CloseBeforeExpiryHours = &v
	}
	if c.Curve.RangeFraction == 0 {
		c.Curve.RangeFraction = defaultRangeFraction
	}
	if c.Templates.CenterOffsetPct == 0 {
		c.Templates.CenterOffsetPct = defaultCenterOffsetPct
	}
	if c.Templates.SpreadWidthPct == 0 {
		c.Templates.SpreadWidthPct = defaultSpreadWidthPct
	}
	if c.Templates.WingWidthPct == 0 {
		c.Templates.WingWidthPct = defaultWingWidthPct
	}
}

// ExpiryCloseHours returns the expiry-proximity close window in hours.
// Zero means the trigger is disabled.
func (c *Config) ExpiryCloseHours() float64 {
	if c.Monitor.CloseBeforeExpiryHours == nil {
		return defaultCloseBeforeExpiryHours
	}
	return *c.Monitor.CloseBeforeExpiryHours
}

// MonitorInterval returns the configured evaluation cadence.
func (c *Config) MonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.Monitor.Interval)
	if err != nil || d <= 0 {
		return defaultMonitorInterval
	}
	return d
}

// CloseTimeout returns the per-close execution timeout. Zero means the
// monitor's own default applies.
func (c *Config) CloseTimeout() time.Duration {
	d, err := time.ParseDuration(c.Monitor.CloseTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// QuoteTTL returns the market-data cache lifetime.
func (c *Config) QuoteTTL() time.Duration {
	d, err := time.ParseDuration(c.Market.QuoteTTL)
	if err != nil || d <= 0 {
		return defaultQuoteTTL
	}
	return d
}
