package main

import (
	"context"
	"testing"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", ManagerPIN: "739154"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123456"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "444444"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "786786"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "98765"},
	}
	for _, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("expected weak config %+v to be rejected", cfg)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestBuildDraftStoreWithoutRedisUsesMemory(t *testing.T) {
	drafts, closeFn := buildDraftStore(context.Background(), config.Config{})
	if _, ok := drafts.(*cache.MemoryDraftStore); !ok {
		t.Fatalf("expected memory draft store, got %T", drafts)
	}
	if closeFn != nil {
		t.Fatalf("memory draft store needs no closer")
	}
}
