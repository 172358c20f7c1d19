// Copyright 2024-2026 Aiku AI

package relay

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/zeroconfig"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the relay configuration.
type Config struct {
	BotToken string `yaml:"bot_token"`
	AppID    int    `yaml:"app_id"`
	AppHash  string `yaml:"app_hash"`

	Language string `yaml:"language"`
	// PairingTimeout is in seconds.
	PairingTimeout int `yaml:"pairing_timeout"`

	DeliveryRate  float64 `yaml:"delivery_rate"`
	DeliveryBurst int     `yaml:"delivery_burst"`

	ListenerRestart RestartConfig `yaml:"listener_restart"`

	AdminAPIAddr string `yaml:"admin_api_addr"`

	Logging zeroconfig.Config `yaml:"logging"`

	messages *Messages `yaml:"-"`
}

// RestartConfig selects the listener restart policy.
type RestartConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	// Backoff is in seconds.
	Backoff int `yaml:"backoff"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// DefaultConfig returns the embedded example configuration.
func DefaultConfig() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(ExampleConfig), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads a YAML file over the example defaults, applies
// environment overrides and post-processes the result.
func LoadConfig(path string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLegacyConfig reads the single-line "bot_token@app_id@app_hash"
// format into a config with all other values at their defaults.
func ParseLegacyConfig(data string) (*Config, error) {
	parts := strings.Split(strings.TrimSpace(data), "@")
	if len(parts) != 3 {
		return nil, fmt.Errorf("legacy config: expected 3 '@'-separated fields, got %d", len(parts))
	}
	appID, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("legacy config: invalid app id: %w", err)
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	cfg.BotToken = strings.TrimSpace(parts[0])
	cfg.AppID = appID
	cfg.AppHash = strings.TrimSpace(parts[2])
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the credentials from RELAY_BOT_TOKEN, RELAY_APP_ID and
// RELAY_APP_HASH when set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("RELAY_BOT_TOKEN"); v != "" {
		c.BotToken = v
	}
	if v := getenv("RELAY_APP_ID"); v != "" {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid RELAY_APP_ID %q: %w", v, err)
		}
		c.AppID = id
	}
	if v := getenv("RELAY_APP_HASH"); v != "" {
		c.AppHash = v
	}
	return nil
}

func (c *Config) PostProcess() error {
	if c.PairingTimeout < 0 {
		return fmt.Errorf("pairing_timeout must not be negative")
	}
	if c.DeliveryRate < 0 || c.DeliveryBurst < 0 {
		return fmt.Errorf("delivery_rate and delivery_burst must not be negative")
	}
	if len(c.Logging.Writers) == 0 {
		c.Logging.Writers = []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStdout,
			Format: zeroconfig.LogFormatPrettyColored,
		}}
	}
	c.messages = MessagesFor(c.Language)
	return nil
}

// Validate checks that the three credentials needed before any pairing are
// present.
func (c *Config) Validate() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "bot_token")
	}
	if c.AppID == 0 {
		missing = append(missing, "app_id")
	}
	if c.AppHash == "" {
		missing = append(missing, "app_hash")
	}
	if len(missing) > 0 {
		return errors.New("missing required config: " + strings.Join(missing, ", "))
	}
	return nil
}

// Messages returns the reply table of the configured language.
func (c *Config) Messages() *Messages {
	if c.messages == nil {
		return MessagesFor(c.Language)
	}
	return c.messages
}

// PairingTimeoutDuration returns the pairing deadline, zero meaning default.
func (c *Config) PairingTimeoutDuration() time.Duration {
	return time.Duration(c.PairingTimeout) * time.Second
}

// RestartPolicy builds the listener restart policy.
func (c *Config) RestartPolicy() RestartPolicy {
	if c.ListenerRestart.MaxAttempts <= 0 {
		return NoRestart{}
	}
	return BoundedRestart{
		MaxAttempts: c.ListenerRestart.MaxAttempts,
		Backoff:     time.Duration(c.ListenerRestart.Backoff) * time.Second,
	}
}

// DeliveryLimiter builds the shared outbound rate limiter, or nil when
// delivery_rate is 0.
func (c *Config) DeliveryLimiter() *rate.Limiter {
	if c.DeliveryRate <= 0 {
		return nil
	}
	burst := c.DeliveryBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.DeliveryRate), burst)
}

// CompileLogger builds the root logger from the logging block.
func (c *Config) CompileLogger() (*zerolog.Logger, error) {
	log, err := c.Logging.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile logging config: %w", err)
	}
	return log, nil
}
