package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing ws addr", func(c *Config) { c.WSAddr = " " }, "ws_addr"},
		{"missing api addr", func(c *Config) { c.APIAddr = "" }, "api_addr"},
		{"missing discovery addr", func(c *Config) { c.DiscoveryAddr = "" }, "discovery_addr"},
		{"missing cert", func(c *Config) { c.CertFile = "" }, "cert_file"},
		{"missing key", func(c *Config) { c.KeyFile = "" }, "cert_file"},
		{"code too short", func(c *Config) { c.CodeLength = 3 }, "code_length"},
		{"code too long", func(c *Config) { c.CodeLength = 11 }, "code_length"},
		{"zero ping", func(c *Config) { c.Timers.PingInterval = 0 }, "ping_interval"},
		{"negative timeout", func(c *Config) { c.Timers.UnauthorizedTimeout = -time.Second }, "unauthorized_timeout"},
		{"zero session validity", func(c *Config) { c.Timers.SessionValidity = 0 }, "session_validity"},
		{"zero code ttl", func(c *Config) { c.Timers.CodeTTL = 0 }, "code_ttl"},
		{"zero credential ttl", func(c *Config) { c.Timers.CredentialTTL = 0 }, "credential_ttl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
