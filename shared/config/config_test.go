package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadCMS(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SERVICE_TOKEN_SECRET", "svc")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("FRAUD_TIMEOUT", "750ms")

	cfg, err := LoadCMS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FraudTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms fraud timeout, got %s", cfg.FraudTimeout)
	}
	if cfg.Port != "8081" {
		t.Errorf("expected default port, got %s", cfg.Port)
	}
	if cfg.CardEncryptionKey != nil {
		t.Errorf("memory driver should not require an encryption key")
	}
}

func TestLoadCMSRequiresKeyForPostgres(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SERVICE_TOKEN_SECRET", "svc")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("CARD_ENCRYPTION_KEY", "abcd")

	if _, err := LoadCMS(); err == nil || !strings.Contains(err.Error(), "CARD_ENCRYPTION_KEY") {
		t.Fatalf("expected encryption key error, got %v", err)
	}

	t.Setenv("CARD_ENCRYPTION_KEY", strings.Repeat("ab", 32))
	cfg, err := LoadCMS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CardEncryptionKey) != 32 {
		t.Errorf("expected 32 byte key, got %d", len(cfg.CardEncryptionKey))
	}
}

func TestLoadFraudDefaults(t *testing.T) {
	t.Setenv("SERVICE_TOKEN_SECRET", "svc")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadFraud()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AmountLimit.String() != "10000" {
		t.Errorf("expected 10000 limit, got %s", cfg.AmountLimit)
	}
	if cfg.LookbackWindow != time.Hour {
		t.Errorf("expected 1h window, got %s", cfg.LookbackWindow)
	}
}

func TestLoadFraudRejectsUnknownDriver(t *testing.T) {
	t.Setenv("SERVICE_TOKEN_SECRET", "svc")
	t.Setenv("STORAGE_DRIVER", "bolt")

	if _, err := LoadFraud(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("AUTH_CLIENTS", "ops:hash:accounts:write")

	cfg, err := LoadAuth()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Errorf("expected 15m default ttl, got %s", cfg.TokenTTL)
	}
	if cfg.Clients != "ops:hash:accounts:write" {
		t.Errorf("unexpected clients %q", cfg.Clients)
	}

	t.Setenv("TOKEN_TTL", "0s")
	if _, err := LoadAuth(); err == nil {
		t.Error("expected error for zero ttl")
	}
}
