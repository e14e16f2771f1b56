package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	ListenAddress      string   `json:"listen_address"`
	Operators          []string `json:"operators"`
	RingTimeoutSeconds int      `json:"ring_timeout_seconds"`
	SIPEnabled         bool     `json:"sip_enabled"`
	SIPProtocol        string   `json:"sip_protocol"`
	SIPPort            int      `json:"sip_port"`
	SIPListenAddress   string   `json:"sip_listen_address"`
	LogPhoneNumbers    bool     `json:"log_phone_numbers"`
}

// DefaultConfig matches the classic two-operator setup on port 5678.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress:      ":5678",
		Operators:          []string{"A", "B"},
		RingTimeoutSeconds: 10,
		SIPProtocol:        "udp",
		SIPPort:            5060,
		SIPListenAddress:   "127.0.0.1",
	}
}

// LoadConfig reads the JSON config at path, falling back to defaults when
// the file does not exist so the daemon runs out of the box.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	configData, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(configData, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config JSON: %w", err)
	}

	if len(cfg.Operators) == 0 {
		return nil, fmt.Errorf("config must list at least one operator")
	}
	if cfg.RingTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("ring_timeout_seconds must be positive, got %d", cfg.RingTimeoutSeconds)
	}
	return cfg, nil
}

// RingTimeout returns the ring deadline as a duration.
func (c *Config) RingTimeout() time.Duration {
	return time.Duration(c.RingTimeoutSeconds) * time.Second
}
