package smbauth

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_setDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected *Config
	}{
		{
			name:   "empty config gets all defaults",
			config: &Config{},
			expected: &Config{
				InitialCredits: 1,
				MaxBufferSize:  DefaultMaxBufferSize,
				MaxMessageSize: MaxTransactSize + SMB2HeaderSize,
				ReadTimeout:    30 * time.Second,
				WriteTimeout:   30 * time.Second,
			},
		},
		{
			name: "custom values are preserved",
			config: &Config{
				InitialCredits: 64,
				MaxBufferSize:  4096,
				ReadTimeout:    5 * time.Second,
				TargetName:     "FILESRV",
			},
			expected: &Config{
				InitialCredits: 64,
				MaxBufferSize:  4096,
				MaxMessageSize: MaxTransactSize + SMB2HeaderSize,
				ReadTimeout:    5 * time.Second,
				WriteTimeout:   30 * time.Second,
				TargetName:     "FILESRV",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.setDefaults()

			if tt.config.InitialCredits != tt.expected.InitialCredits {
				t.Errorf("InitialCredits = %d, want %d", tt.config.InitialCredits, tt.expected.InitialCredits)
			}
			if tt.config.MaxBufferSize != tt.expected.MaxBufferSize {
				t.Errorf("MaxBufferSize = %d, want %d", tt.config.MaxBufferSize, tt.expected.MaxBufferSize)
			}
			if tt.config.MaxMessageSize != tt.expected.MaxMessageSize {
				t.Errorf("MaxMessageSize = %d, want %d", tt.config.MaxMessageSize, tt.expected.MaxMessageSize)
			}
			if tt.config.ReadTimeout != tt.expected.ReadTimeout {
				t.Errorf("ReadTimeout = %v, want %v", tt.config.ReadTimeout, tt.expected.ReadTimeout)
			}
			if tt.config.WriteTimeout != tt.expected.WriteTimeout {
				t.Errorf("WriteTimeout = %v, want %v", tt.config.WriteTimeout, tt.expected.WriteTimeout)
			}
			if tt.config.TargetName != tt.expected.TargetName {
				t.Errorf("TargetName = %q, want %q", tt.config.TargetName, tt.expected.TargetName)
			}
			if tt.config.Logger == nil {
				t.Error("Logger = nil, want default logger")
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "zero config is valid",
			config:  &Config{},
			wantErr: false,
		},
		{
			name:    "negative buffer size",
			config:  &Config{MaxBufferSize: -1},
			wantErr: true,
		},
		{
			name:    "message size below header",
			config:  &Config{MaxMessageSize: SMB2HeaderSize - 1},
			wantErr: true,
		},
		{
			name:    "message size above NetBIOS limit",
			config:  &Config{MaxMessageSize: 1 << 24},
			wantErr: true,
		},
		{
			name:    "largest NetBIOS frame",
			config:  &Config{MaxMessageSize: 1<<24 - 1},
			wantErr: false,
		},
		{
			name:    "negative timeout",
			config:  &Config{ReadTimeout: -time.Second},
			wantErr: true,
		},
		{
			name:    "shrinking retry multiplier",
			config:  &Config{RetryPolicy: &RetryPolicy{MaxAttempts: 3, Multiplier: 0.5}},
			wantErr: true,
		},
		{
			name:    "negative retry delay",
			config:  &Config{RetryPolicy: &RetryPolicy{MaxAttempts: 3, InitialDelay: -time.Millisecond}},
			wantErr: true,
		},
		{
			name:    "valid retry policy",
			config:  &Config{RetryPolicy: &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, Multiplier: 1.5}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SMBTEST_INITIAL_CREDITS", "16")
	t.Setenv("SMBTEST_MAX_BUFFER_SIZE", "8192")
	t.Setenv("SMBTEST_READ_TIMEOUT", "5s")
	t.Setenv("SMBTEST_TARGET_NAME", "FILESRV")
	t.Setenv("SMBTEST_DEBUG", "true")

	cfg, err := LoadConfigFromEnv("SMBTEST")
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}

	if cfg.InitialCredits != 16 {
		t.Errorf("InitialCredits = %d, want 16", cfg.InitialCredits)
	}
	if cfg.MaxBufferSize != 8192 {
		t.Errorf("MaxBufferSize = %d, want 8192", cfg.MaxBufferSize)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want default 30s", cfg.WriteTimeout)
	}
	if cfg.TargetName != "FILESRV" {
		t.Errorf("TargetName = %q, want FILESRV", cfg.TargetName)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.Logger == nil {
		t.Error("Logger = nil, want default logger")
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"not a number", "SMBTEST_INITIAL_CREDITS", "many"},
		{"credits overflow uint16", "SMBTEST_INITIAL_CREDITS", "70000"},
		{"bad duration", "SMBTEST_WRITE_TIMEOUT", "soon"},
		{"fails validation", "SMBTEST_MAX_MESSAGE_SIZE", "16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfigFromEnv("SMBTEST")
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("LoadConfigFromEnv() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
