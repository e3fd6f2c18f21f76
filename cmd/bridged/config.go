package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mediamote/bridge/internal/config"
	tomlv2 "github.com/pelletier/go-toml/v2"
)

type fileConfig struct {
	Name                string `toml:"name"`
	WSAddr              string `toml:"ws_addr"`
	APIAddr             string `toml:"api_addr"`
	DiscoveryAddr       string `toml:"discovery_addr"`
	CertFile            string `toml:"cert_file"`
	KeyFile             string `toml:"key_file"`
	CodeLength          int    `toml:"code_length"`
	PingInterval        string `toml:"ping_interval"`
	UnauthorizedTimeout string `toml:"unauthorized_timeout"`
	SessionValidity     string `toml:"session_validity"`
	CodeTTL             string `toml:"code_ttl"`
	CredentialTTL       string `toml:"credential_ttl"`
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Config{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("ws_addr") {
		cfg.WSAddr = strings.TrimSpace(raw.WSAddr)
	}
	if meta.IsDefined("api_addr") {
		cfg.APIAddr = strings.TrimSpace(raw.APIAddr)
	}
	if meta.IsDefined("discovery_addr") {
		cfg.DiscoveryAddr = strings.TrimSpace(raw.DiscoveryAddr)
	}
	if meta.IsDefined("cert_file") {
		cfg.CertFile = strings.TrimSpace(raw.CertFile)
	}
	if meta.IsDefined("key_file") {
		cfg.KeyFile = strings.TrimSpace(raw.KeyFile)
	}
	if meta.IsDefined("code_length") {
		cfg.CodeLength = raw.CodeLength
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"ping_interval", raw.PingInterval, &cfg.Timers.PingInterval},
		{"unauthorized_timeout", raw.UnauthorizedTimeout, &cfg.Timers.UnauthorizedTimeout},
		{"session_validity", raw.SessionValidity, &cfg.Timers.SessionValidity},
		{"code_ttl", raw.CodeTTL, &cfg.Timers.CodeTTL},
		{"credential_ttl", raw.CredentialTTL, &cfg.Timers.CredentialTTL},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return config.Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// exampleConfig renders the defaults as a TOML file a user can copy and
// edit.
func exampleConfig() ([]byte, error) {
	cfg := config.DefaultConfig()
	return tomlv2.Marshal(fileConfig{
		Name:                cfg.Name,
		WSAddr:              cfg.WSAddr,
		APIAddr:             cfg.APIAddr,
		DiscoveryAddr:       cfg.DiscoveryAddr,
		CertFile:            cfg.CertFile,
		KeyFile:             cfg.KeyFile,
		CodeLength:          cfg.CodeLength,
		PingInterval:        cfg.Timers.PingInterval.String(),
		UnauthorizedTimeout: cfg.Timers.UnauthorizedTimeout.String(),
		SessionValidity:     cfg.Timers.SessionValidity.String(),
		CodeTTL:             cfg.Timers.CodeTTL.String(),
		CredentialTTL:       cfg.Timers.CredentialTTL.String(),
	})
}
