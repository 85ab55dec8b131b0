package smbauth

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for a Conn.
type Config struct {
	// Credits
	InitialCredits uint16 `envconfig:"INITIAL_CREDITS"` // Credits available before the first grant (default: 1)

	// Limits
	MaxBufferSize  int `envconfig:"MAX_BUFFER_SIZE"`  // Largest owned DER buffer (default: 64KB)
	MaxMessageSize int `envconfig:"MAX_MESSAGE_SIZE"` // Largest SMB2 frame accepted (default: 8MB)

	// Timeouts
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT"`  // Per-frame read timeout (default: 30s)
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT"` // Per-frame write timeout (default: 30s)

	// NTLM
	TargetName string `envconfig:"TARGET_NAME"` // Server name sent in challenges (empty = bare record)

	// Retry and reliability
	RetryPolicy *RetryPolicy `ignored:"true"` // Policy for waiting on credits (nil = use default)

	// Logging
	Logger Logger `ignored:"true"` // Logger (nil = logrus, honoring Debug)
	Debug  bool   `envconfig:"DEBUG"`
}

// setDefaults sets default values for any unspecified configuration options.
func (c *Config) setDefaults() {
	if c.InitialCredits == 0 {
		c.InitialCredits = 1
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = MaxTransactSize + SMB2HeaderSize
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger(c.Debug)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxBufferSize < 0 {
		return fmt.Errorf("max buffer size %d: %w", c.MaxBufferSize, ErrInvalidConfig)
	}
	if c.MaxMessageSize != 0 && (c.MaxMessageSize < SMB2HeaderSize || c.MaxMessageSize > maxNetbiosLength) {
		return fmt.Errorf("max message size %d outside [%d, %d]: %w",
			c.MaxMessageSize, SMB2HeaderSize, maxNetbiosLength, ErrInvalidConfig)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("negative timeout: %w", ErrInvalidConfig)
	}
	if p := c.RetryPolicy; p != nil {
		if p.Multiplier != 0 && p.Multiplier < 1 {
			return fmt.Errorf("retry multiplier %v: %w", p.Multiplier, ErrInvalidConfig)
		}
		if p.InitialDelay < 0 || p.MaxDelay < 0 {
			return fmt.Errorf("negative retry delay: %w", ErrInvalidConfig)
		}
	}
	return nil
}

// LoadConfigFromEnv reads a Config from environment variables named
// PREFIX_INITIAL_CREDITS, PREFIX_READ_TIMEOUT and so on. Unset variables
// keep their defaults.
func LoadConfigFromEnv(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(prefix, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}
