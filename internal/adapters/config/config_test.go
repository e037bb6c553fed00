package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Symbols:        []string{"BTCUSDT"},
			Interval:       30 * time.Second,
			Concurrency:    4,
			StopTimeout:    10 * time.Second,
			HeatThreshold:  30,
			CooldownWindow: 15 * time.Minute,
		},
		Provider: ProviderConfig{Kind: "rest"},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no symbols", func(c *Config) { c.Engine.Symbols = nil }, "symbol"},
		{"interval too short", func(c *Config) { c.Engine.Interval = 100 * time.Millisecond }, "interval"},
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }, "concurrency"},
		{"threshold out of range", func(c *Config) { c.Engine.HeatThreshold = 150 }, "threshold"},
		{"bad provider", func(c *Config) { c.Provider.Kind = "kraken" }, "provider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, Name: "sigflow",
		User: "svc", Password: "secret", SSLMode: "disable",
	}
	got := cfg.DSN()
	want := "host=db port=5432 user=svc password=secret dbname=sigflow sslmode=disable"
	if got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestTelegramEnabled(t *testing.T) {
	cfg := TelegramConfig{}
	if cfg.Enabled() {
		t.Error("empty telegram config should be disabled")
	}
	cfg = TelegramConfig{BotToken: "t", ChatID: 1}
	if !cfg.Enabled() {
		t.Error("configured telegram should be enabled")
	}
}
