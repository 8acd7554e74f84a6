package config

import (
	"math"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Tax.Rate != 0.19 {
		t.Errorf("Expected default tax rate 0.19, got %v", cfg.Tax.Rate)
	}
	if cfg.Tax.StampDuty != 1.0 {
		t.Errorf("Expected default stamp duty 1.0, got %v", cfg.Tax.StampDuty)
	}
	if cfg.Tax.Currency != "TND" {
		t.Errorf("Expected default currency TND, got %s", cfg.Tax.Currency)
	}
	if cfg.Redis.TTL != 5*time.Minute {
		t.Errorf("Expected default cache TTL 5m, got %s", cfg.Redis.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TAX_RATE", "0.07")
	t.Setenv("TAX_STAMP_DUTY", "0.6")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("FEATURE_INVOICE_CACHING", "false")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg := Load()

	if cfg.Tax.Rate != 0.07 {
		t.Errorf("Expected tax rate 0.07, got %v", cfg.Tax.Rate)
	}
	if cfg.Tax.StampDuty != 0.6 {
		t.Errorf("Expected stamp duty 0.6, got %v", cfg.Tax.StampDuty)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Features.EnableInvoiceCaching {
		t.Errorf("Expected caching to be disabled")
	}
	if cfg.Server.Port != 8086 {
		t.Errorf("Expected fallback port 8086, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero rate allowed", func(c *Config) { c.Tax.Rate = 0 }, false},
		{"negative rate", func(c *Config) { c.Tax.Rate = -0.1 }, true},
		{"negative stamp duty", func(c *Config) { c.Tax.StampDuty = -1 }, true},
		{"NaN rate", func(c *Config) { c.Tax.Rate = math.NaN() }, true},
		{"infinite rate", func(c *Config) { c.Tax.Rate = math.Inf(1) }, true},
		{"NaN stamp duty", func(c *Config) { c.Tax.StampDuty = math.NaN() }, true},
		{"missing currency", func(c *Config) { c.Tax.Currency = "" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NaNFromEnvironment(t *testing.T) {
	t.Setenv("TAX_RATE", "NaN")

	if err := Load().Validate(); err == nil {
		t.Error("Expected TAX_RATE=NaN to be rejected")
	}
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "billing", SSLMode: "require"}
	want := "host=db port=5433 user=u password=p dbname=billing sslmode=require"
	if got := d.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
