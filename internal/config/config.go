package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/opendlt/aptos-toolkit/internal/netprofiles"
)

// Config represents the toolkit configuration
type Config struct {
	Network           string  `yaml:"network" toml:"network"`
	Endpoint          string  `yaml:"endpoint" toml:"endpoint"`
	Timeout           string  `yaml:"timeout" toml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries" toml:"maxRetries"`
	RetryDelay        string  `yaml:"retryDelay" toml:"retryDelay"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" toml:"requestsPerSecond"`
	Burst             int     `yaml:"burst" toml:"burst"`
	BatchConcurrency  int     `yaml:"batchConcurrency" toml:"batchConcurrency"`
	DefaultSlippage   float64 `yaml:"defaultSlippage" toml:"defaultSlippage"`

	// ListenerPollInterval maps a venue name to its event poll interval
	ListenerPollInterval map[string]string `yaml:"listenerPollInterval" toml:"listenerPollInterval"`

	Gas struct {
		MaxGasAmount    uint64  `yaml:"maxGasAmount" toml:"maxGasAmount"`
		GasUnitPrice    uint64  `yaml:"gasUnitPrice" toml:"gasUnitPrice"`
		ExpirationSecs  uint64  `yaml:"expirationSecs" toml:"expirationSecs"`
		ConfirmTimeout  string  `yaml:"confirmTimeout" toml:"confirmTimeout"`
		PollInterval    string  `yaml:"pollInterval" toml:"pollInterval"`
		PriceMultiplier float64 `yaml:"priceMultiplier" toml:"priceMultiplier"`
	} `yaml:"gas" toml:"gas"`

	Wallet struct {
		Type        string `yaml:"type" toml:"type"` // "file" | "env" | "hex" | "keystore"
		Key         string `yaml:"key" toml:"key"`   // path, env var name, hex key or keystore entry
		KeystoreDir string `yaml:"keystoreDir" toml:"keystoreDir"`
	} `yaml:"wallet" toml:"wallet"`

	Events struct {
		Capacity  int    `yaml:"capacity" toml:"capacity"`
		BatchSize int    `yaml:"batchSize" toml:"batchSize"`
		StateDir  string `yaml:"stateDir" toml:"stateDir"` // empty keeps cursors in memory
	} `yaml:"events" toml:"events"`

	Relay struct {
		ListenAddr        string   `yaml:"listenAddr" toml:"listenAddr"`
		APIKeys           []string `yaml:"apiKeys" toml:"apiKeys"`
		CORSOrigins       []string `yaml:"corsOrigins" toml:"corsOrigins"`
		RequestsPerSecond float64  `yaml:"requestsPerSecond" toml:"requestsPerSecond"`
		Burst             int      `yaml:"burst" toml:"burst"`
		TLSCertFile       string   `yaml:"tlsCertFile" toml:"tlsCertFile"`
		TLSKeyFile        string   `yaml:"tlsKeyFile" toml:"tlsKeyFile"`
	} `yaml:"relay" toml:"relay"`

	Logging struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"logging" toml:"logging"`

	Metrics struct {
		Enabled bool `yaml:"enabled" toml:"enabled"`
	} `yaml:"metrics" toml:"metrics"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	_ = c.setDefaults()
	return c
}

// Load reads and parses a YAML or TOML configuration file, chosen by extension
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes configuration bytes. ext selects the format (".toml" or YAML otherwise).
func Parse(data []byte, ext string) (*Config, error) {
	var config Config
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	// Set defaults and validate
	if err := config.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for empty fields
func (c *Config) setDefaults() error {
	if c.Network == "" {
		c.Network = netprofiles.Mainnet
	}
	if c.Endpoint == "" {
		c.Endpoint = netprofiles.BaseURL(c.Network)
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "1s"
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = 4
	}
	if c.DefaultSlippage == 0 {
		c.DefaultSlippage = 0.005
	}
	if c.ListenerPollInterval == nil {
		c.ListenerPollInterval = map[string]string{}
	}

	// Gas defaults mirror the contract write path
	if c.Gas.MaxGasAmount == 0 {
		c.Gas.MaxGasAmount = 2000
	}
	if c.Gas.GasUnitPrice == 0 {
		c.Gas.GasUnitPrice = 100
	}
	if c.Gas.ExpirationSecs == 0 {
		c.Gas.ExpirationSecs = 30
	}
	if c.Gas.ConfirmTimeout == "" {
		c.Gas.ConfirmTimeout = "30s"
	}
	if c.Gas.PollInterval == "" {
		c.Gas.PollInterval = "500ms"
	}
	if c.Gas.PriceMultiplier == 0 {
		c.Gas.PriceMultiplier = 1.1
	}

	if c.Wallet.Type == "" {
		c.Wallet.Type = "env"
	}
	if c.Wallet.Key == "" && c.Wallet.Type == "env" {
		c.Wallet.Key = "APTOS_PRIVATE_KEY"
	}

	if c.Events.Capacity == 0 {
		c.Events.Capacity = 1000
	}
	if c.Events.BatchSize == 0 {
		c.Events.BatchSize = 100
	}

	if c.Relay.ListenAddr == "" {
		c.Relay.ListenAddr = "127.0.0.1:8090"
	}
	if c.Relay.CORSOrigins == nil {
		c.Relay.CORSOrigins = []string{"*"}
	}
	if c.Relay.Burst == 0 {
		c.Relay.Burst = 20
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

// validate performs basic validation of config values
func (c *Config) validate() error {
	if !netprofiles.IsValidNetwork(c.Network) {
		return fmt.Errorf("unknown network %s, expected one of %v", c.Network, netprofiles.GetAvailableNetworks())
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	for name, value := range map[string]string{
		"timeout":              c.Timeout,
		"retry delay":          c.RetryDelay,
		"confirmation timeout": c.Gas.ConfirmTimeout,
		"poll interval":        c.Gas.PollInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration %s: %w", name, value, err)
		}
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative, got %f", c.RequestsPerSecond)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.DefaultSlippage < 0 || c.DefaultSlippage >= 1 {
		return fmt.Errorf("default slippage must be in [0, 1), got %f", c.DefaultSlippage)
	}

	for venue, value := range c.ListenerPollInterval {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid poll interval for %s: %w", venue, err)
		}
		if d < time.Second || d > 3*time.Second {
			return fmt.Errorf("poll interval for %s must be between 1s and 3s, got %s", venue, d)
		}
	}

	if c.Gas.PriceMultiplier <= 0 {
		return fmt.Errorf("gas price multiplier must be positive, got %f", c.Gas.PriceMultiplier)
	}

	switch c.Wallet.Type {
	case "file", "env", "hex", "keystore":
	default:
		return fmt.Errorf("wallet type must be one of file, env, hex, keystore, got %s", c.Wallet.Type)
	}
	if c.Wallet.Type == "keystore" && c.Wallet.KeystoreDir == "" {
		return fmt.Errorf("keystore wallet requires keystoreDir")
	}

	if c.Events.Capacity < 1 {
		return fmt.Errorf("event channel capacity must be at least 1, got %d", c.Events.Capacity)
	}
	if c.Events.BatchSize < 1 {
		return fmt.Errorf("event batch size must be at least 1, got %d", c.Events.BatchSize)
	}

	if c.Relay.RequestsPerSecond < 0 {
		return fmt.Errorf("relay requests per second cannot be negative, got %f", c.Relay.RequestsPerSecond)
	}
	if (c.Relay.TLSCertFile == "") != (c.Relay.TLSKeyFile == "") {
		return fmt.Errorf("relay TLS requires both tlsCertFile and tlsKeyFile")
	}

	return nil
}

// GetTimeout returns the request timeout as a time.Duration
func (c *Config) GetTimeout() time.Duration {
	return parseOr(c.Timeout, 30*time.Second)
}

// GetRetryDelay returns the retry delay as a time.Duration
func (c *Config) GetRetryDelay() time.Duration {
	return parseOr(c.RetryDelay, time.Second)
}

// GetConfirmTimeout returns the confirmation wait as a time.Duration
func (c *Config) GetConfirmTimeout() time.Duration {
	return parseOr(c.Gas.ConfirmTimeout, 30*time.Second)
}

// GetPollInterval returns the confirmation poll interval as a time.Duration
func (c *Config) GetPollInterval() time.Duration {
	return parseOr(c.Gas.PollInterval, 500*time.Millisecond)
}

// GetListenerPollInterval returns the configured interval for a venue, or fallback
func (c *Config) GetListenerPollInterval(venue string, fallback time.Duration) time.Duration {
	value, ok := c.ListenerPollInterval[venue]
	if !ok {
		return fallback
	}
	return parseOr(value, fallback)
}

func parseOr(value string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		// This should not happen if validation passed
		return fallback
	}
	return duration
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Network: %s, Endpoint: %s, Timeout: %s, BatchConcurrency: %d, DefaultSlippage: %g}",
		c.Network, c.Endpoint, c.Timeout, c.BatchConcurrency, c.DefaultSlippage)
}
