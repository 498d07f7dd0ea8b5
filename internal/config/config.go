// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Discovery() DiscoveryConfig
	Output() OutputConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserNavigationTimeout(d time.Duration)

	// Discovery Setters
	SetDiscoveryRefreshInterval(d time.Duration)

	// Output Setters
	SetOutputFormat(string)
	SetOutputFile(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	DiscoveryCfg DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	OutputCfg    OutputConfig    `mapstructure:"output" yaml:"output"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Discovery() DiscoveryConfig { return c.DiscoveryCfg }
func (c *Config) Output() OutputConfig       { return c.OutputCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserNavigationTimeout(d time.Duration) {
	c.BrowserCfg.NavigationTimeout = d
}
func (c *Config) SetDiscoveryRefreshInterval(d time.Duration) {
	c.DiscoveryCfg.RefreshInterval = d
}
func (c *Config) SetOutputFormat(f string) { c.OutputCfg.Format = f }
func (c *Config) SetOutputFile(p string)   { c.OutputCfg.File = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance driven over CDP.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// ExecPath overrides the Chrome binary chromedp would locate.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// Locale, Timezone and Languages are emulated in the tab when set.
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// DiscoveryConfig tunes the thumbnail discovery loop.
type DiscoveryConfig struct {
	Selector            string        `mapstructure:"selector" yaml:"selector"`
	AltSelector         string        `mapstructure:"alt_selector" yaml:"alt_selector"`
	LinkSelector        string        `mapstructure:"link_selector" yaml:"link_selector"`
	AltLinkSelector     string        `mapstructure:"alt_link_selector" yaml:"alt_link_selector"`
	LinkAttribute       string        `mapstructure:"link_attribute" yaml:"link_attribute"`
	Debounce            time.Duration `mapstructure:"debounce" yaml:"debounce"`
	GCInterval          time.Duration `mapstructure:"gc_interval" yaml:"gc_interval"`
	AltHosts            []string      `mapstructure:"alt_hosts" yaml:"alt_hosts"`
	ConfigReadyTimeout  time.Duration `mapstructure:"config_ready_timeout" yaml:"config_ready_timeout"`
	ConfigReadyInterval time.Duration `mapstructure:"config_ready_interval" yaml:"config_ready_interval"`
	// RefreshInterval re-reports every tracked thumbnail periodically; zero disables it.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// Output formats understood by the event sink.
const (
	FormatJSONL = "jsonl"
	FormatText  = "text"
)

// OutputConfig controls where discovery events go.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	// File is the destination path; empty means stdout.
	File string `mapstructure:"file" yaml:"file"`
	// LookupBase is the endpoint a video id is appended to as a query.
	LookupBase string `mapstructure:"lookup_base" yaml:"lookup_base"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "thumbwatch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.locale", "")
	v.SetDefault("browser.timezone", "")
	v.SetDefault("browser.languages", []string{})

	// -- Discovery --
	v.SetDefault("discovery.selector", "ytd-thumbnail, ytd-playlist-thumbnail")
	v.SetDefault("discovery.alt_selector", "div.thumbnail")
	v.SetDefault("discovery.link_selector", "ytd-thumbnail a")
	v.SetDefault("discovery.alt_link_selector", "a")
	v.SetDefault("discovery.link_attribute", "href")
	v.SetDefault("discovery.debounce", "50ms")
	v.SetDefault("discovery.gc_interval", "5s")
	v.SetDefault("discovery.alt_hosts", []string{})
	v.SetDefault("discovery.config_ready_timeout", "5s")
	v.SetDefault("discovery.config_ready_interval", "10ms")
	v.SetDefault("discovery.refresh_interval", "0s")

	// -- Output --
	v.SetDefault("output.format", FormatJSONL)
	v.SetDefault("output.file", "")
	v.SetDefault("output.lookup_base", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Explicit binding so the user agent can come from the environment even
	// without a config file entry.
	_ = v.BindEnv("browser.user_agent", "THUMBWATCH_USER_AGENT")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LoggerCfg.Level); err != nil {
		return fmt.Errorf("logger.level %q is not a valid level", c.LoggerCfg.Level)
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if err := c.DiscoveryCfg.Validate(); err != nil {
		return fmt.Errorf("discovery configuration invalid: %w", err)
	}
	if err := c.OutputCfg.Validate(); err != nil {
		return fmt.Errorf("output configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the DiscoveryConfig settings.
func (d *DiscoveryConfig) Validate() error {
	if strings.TrimSpace(d.Selector) == "" || strings.TrimSpace(d.AltSelector) == "" {
		return fmt.Errorf("selector and alt_selector are required")
	}
	if strings.TrimSpace(d.LinkSelector) == "" || strings.TrimSpace(d.LinkAttribute) == "" {
		return fmt.Errorf("link_selector and link_attribute are required")
	}
	if d.Debounce <= 0 {
		return fmt.Errorf("debounce must be a positive duration")
	}
	if d.GCInterval <= 0 {
		return fmt.Errorf("gc_interval must be a positive duration")
	}
	if d.ConfigReadyTimeout <= 0 || d.ConfigReadyInterval <= 0 {
		return fmt.Errorf("config_ready_timeout and config_ready_interval must be positive durations")
	}
	if d.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative")
	}
	return nil
}

// Validate checks the OutputConfig settings.
func (o *OutputConfig) Validate() error {
	switch o.Format {
	case FormatJSONL, FormatText:
	default:
		return fmt.Errorf("format must be %q or %q, got %q", FormatJSONL, FormatText, o.Format)
	}
	if o.LookupBase != "" {
		u, err := url.Parse(o.LookupBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("lookup_base must be an absolute URL")
		}
	}
	return nil
}
