package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLATFORM_FEE_RATE", "")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load()
	if cfg.PlatformFeeRate.String() != "0.02" {
		t.Errorf("PlatformFeeRate = %s, want 0.02", cfg.PlatformFeeRate)
	}
	if cfg.NoShowPenaltyRate.String() != "0.2" {
		t.Errorf("NoShowPenaltyRate = %s, want 0.2", cfg.NoShowPenaltyRate)
	}
	if cfg.SettleMaxAttempts != 3 {
		t.Errorf("SettleMaxAttempts = %d, want 3", cfg.SettleMaxAttempts)
	}
	if cfg.SettleBaseDelay != 50*time.Millisecond {
		t.Errorf("SettleBaseDelay = %v", cfg.SettleBaseDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PLATFORM_FEE_RATE", "0.05")
	t.Setenv("GROUP_ON_SETTLE", "DELETE")
	t.Setenv("EVENTS_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SPLIT_RECONCILE", "true")
	t.Setenv("SETTLE_BASE_DELAY", "10ms")

	cfg := Load()
	if cfg.PlatformFeeRate.String() != "0.05" {
		t.Errorf("PlatformFeeRate = %s", cfg.PlatformFeeRate)
	}
	if cfg.GroupOnSettle != "delete" {
		t.Errorf("GroupOnSettle = %q", cfg.GroupOnSettle)
	}
	if strings.Join(cfg.KafkaBrokers, "|") != "k1:9092|k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.SplitReconcile {
		t.Error("SplitReconcile = false")
	}
	if cfg.SettleBaseDelay != 10*time.Millisecond {
		t.Errorf("SettleBaseDelay = %v", cfg.SettleBaseDelay)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "fee of one", env: map[string]string{"PLATFORM_FEE_RATE": "1"}, wantErr: "PLATFORM_FEE_RATE"},
		{name: "negative penalty", env: map[string]string{"NO_SHOW_PENALTY_RATE": "-0.1"}, wantErr: "NO_SHOW_PENALTY_RATE"},
		{name: "zero attempts", env: map[string]string{"SETTLE_MAX_ATTEMPTS": "0"}, wantErr: "SETTLE_MAX_ATTEMPTS"},
		{name: "unknown group mode", env: map[string]string{"GROUP_ON_SETTLE": "keep"}, wantErr: "GROUP_ON_SETTLE"},
		{name: "unknown backend", env: map[string]string{"EVENTS_BACKEND": "nats"}, wantErr: "EVENTS_BACKEND"},
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}, wantErr: "JWT_SECRET"},
		{name: "gateway reuses user secret", env: map[string]string{"GATEWAY_SECRET": "secret"}, wantErr: "GATEWAY_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := Load().Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
