package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv
const EnvPrefix = "XHS_"

// Config holds all configuration options for the XHS scraper
type Config struct {
	XHS       XHSConfig       `yaml:"xhs" json:"xhs"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// XHSConfig holds session and transport settings for the web API
type XHSConfig struct {
	// CookiesFile is a JSON file of name/value pairs copied from the browser
	CookiesFile string `yaml:"cookies_file" json:"cookies_file"`
	// Account names a cookie set saved with `xhs auth login`
	Account       string        `yaml:"account" json:"account"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" validate:"required"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	SignServerURL string        `yaml:"sign_server_url" json:"sign_server_url" validate:"omitempty,url"`
}

// RateLimitConfig holds client-side pacing configuration
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	Burst             float64 `yaml:"burst" json:"burst" validate:"gte=0"`
}

// RetryConfig holds the retry policy applied by the CLI around API calls
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=1,lte=10"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier" validate:"gte=1"`
}

// OutputConfig holds export settings
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory" validate:"required"`
	Format    string `yaml:"format" json:"format" validate:"oneof=json csv both"`
}

// DownloadConfig holds media download settings
type DownloadConfig struct {
	Concurrency     int           `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=16"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	FileNamePattern string        `yaml:"file_name_pattern" json:"file_name_pattern" validate:"required"`
	// RequestsPerMinute caps CDN fetches; 0 disables the cap
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultUserAgent mirrors a current desktop Chrome
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		XHS: XHSConfig{
			UserAgent: DefaultUserAgent,
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 2,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Output: OutputConfig{
			Directory: "./output",
			Format:    "json",
		},
		Download: DownloadConfig{
			Concurrency:     5,
			Timeout:         60 * time.Second,
			FileNamePattern: "{note_id}_{index}.{ext}",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromEnv loads configuration from XHS_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setString("COOKIES_FILE", &c.XHS.CookiesFile)
	setString("ACCOUNT", &c.XHS.Account)
	setString("USER_AGENT", &c.XHS.UserAgent)
	setString("SIGN_SERVER_URL", &c.XHS.SignServerURL)
	setString("OUTPUT_DIR", &c.Output.Directory)
	setString("OUTPUT_FORMAT", &c.Output.Format)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.XHS.Timeout = d
		}
	}
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv(EnvPrefix + "CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENT_DOWNLOADS: %w", EnvPrefix, err))
		} else {
			c.Download.Concurrency = n
		}
	}
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".xhs.yaml",
		".xhs.yml",
		filepath.Join(home, ".config", "xhs", "config.yaml"),
		filepath.Join(home, ".config", "xhs", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then cross-field rules
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.RateLimit.Burst > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate limit burst must be at least 1 token"))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, errors.New("retry max delay must not be below initial delay"))
	}
	if !strings.Contains(c.Download.FileNamePattern, "{index}") {
		errs = append(errs, errors.New("file name pattern must contain {index}"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flags that the user set explicitly
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.XHS.CookiesFile = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.XHS.Account = v
	}
	if v, ok := flags["sign-server"].(string); ok && v != "" {
		c.XHS.SignServerURL = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Output.Format = v
	}
	if v, ok := flags["rate"].(float64); ok && v > 0 {
		c.RateLimit.RequestsPerSecond = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xhs.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
