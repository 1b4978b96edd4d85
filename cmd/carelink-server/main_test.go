package main

import (
	"testing"

	"github.com/carelink/carelink/internal/config"
)

func TestJWTSecret_Configured(t *testing.T) {
	cfg := &config.Config{Env: "production", JWTSecret: "0123456789abcdef0123456789abcdef"}
	secret, err := jwtSecret(cfg)
	if err != nil {
		t.Fatalf("jwtSecret: %v", err)
	}
	if string(secret) != cfg.JWTSecret {
		t.Errorf("secret = %q, want configured value", secret)
	}
}

func TestJWTSecret_DevEphemeral(t *testing.T) {
	cfg := &config.Config{Env: "development"}
	first, err := jwtSecret(cfg)
	if err != nil {
		t.Fatalf("jwtSecret: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("len(secret) = %d, want 64 hex chars", len(first))
	}
	second, _ := jwtSecret(cfg)
	if string(first) == string(second) {
		t.Error("ephemeral secrets should differ per call")
	}
}

func TestJWTSecret_ProductionRequired(t *testing.T) {
	cfg := &config.Config{Env: "production"}
	if _, err := jwtSecret(cfg); err == nil {
		t.Error("expected error when JWT_SECRET is missing outside development")
	}
}
