package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full daemon configuration. Timer values default to the
// protocol's nominal intervals; tests compress them.
type Config struct {
	Name          string
	WSAddr        string
	APIAddr       string
	DiscoveryAddr string
	CertFile      string
	KeyFile       string
	CodeLength    int
	Timers        Timers
}

// Timers groups every interval the bridge schedules against.
type Timers struct {
	PingInterval        time.Duration
	UnauthorizedTimeout time.Duration
	SessionValidity     time.Duration
	CodeTTL             time.Duration
	CredentialTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Name:          "",
		WSAddr:        ":8766",
		APIAddr:       ":8765",
		DiscoveryAddr: ":60537",
		CertFile:      "cert/cert.pem",
		KeyFile:       "cert/key.pem",
		CodeLength:    5,
		Timers: Timers{
			PingInterval:        10 * time.Second,
			UnauthorizedTimeout: 10 * time.Minute,
			SessionValidity:     60 * time.Second,
			CodeTTL:             5 * time.Minute,
			CredentialTTL:       7 * 24 * time.Hour,
		},
	}
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.WSAddr) == "" {
		return fmt.Errorf("config missing ws_addr")
	}
	if strings.TrimSpace(cfg.APIAddr) == "" {
		return fmt.Errorf("config missing api_addr")
	}
	if strings.TrimSpace(cfg.DiscoveryAddr) == "" {
		return fmt.Errorf("config missing discovery_addr")
	}
	if strings.TrimSpace(cfg.CertFile) == "" || strings.TrimSpace(cfg.KeyFile) == "" {
		return fmt.Errorf("config missing cert_file or key_file")
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 10 {
		return fmt.Errorf("config code_length out of range: %d", cfg.CodeLength)
	}
	if cfg.Timers.PingInterval <= 0 {
		return fmt.Errorf("config ping_interval must be positive")
	}
	if cfg.Timers.UnauthorizedTimeout <= 0 {
		return fmt.Errorf("config unauthorized_timeout must be positive")
	}
	if cfg.Timers.SessionValidity <= 0 {
		return fmt.Errorf("config session_validity must be positive")
	}
	if cfg.Timers.CodeTTL <= 0 {
		return fmt.Errorf("config code_ttl must be positive")
	}
	if cfg.Timers.CredentialTTL <= 0 {
		return fmt.Errorf("config credential_ttl must be positive")
	}
	return nil
}
