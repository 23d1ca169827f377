package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyPlatformDefaults_PurchaseLimitEnv(t *testing.T) {
	t.Setenv("PURCHASE_RATE_LIMIT_PER_PRODUCT", "5")
	t.Setenv("PURCHASE_RATE_LIMIT_WINDOW_SECONDS", "120")

	var cfg Config
	cfg.applyPlatformDefaults()

	assert.Equal(t, 5, cfg.PurchaseLimit.PerProduct)
	assert.Equal(t, 120, cfg.PurchaseLimit.WindowSeconds)
}

func TestApplyPlatformDefaults_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"not a number", "abc"},
		{"zero", "0"},
		{"negative", "-3"},
		{"float", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PURCHASE_RATE_LIMIT_PER_PRODUCT", tt.value)
			t.Setenv("PURCHASE_RATE_LIMIT_WINDOW_SECONDS", tt.value)

			var cfg Config
			cfg.applyPlatformDefaults()

			assert.Equal(t, 1, cfg.PurchaseLimit.PerProduct)
			assert.Equal(t, 60, cfg.PurchaseLimit.WindowSeconds)
		})
	}
}

func TestApplyPlatformDefaults_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fallback/db")

	var cfg Config
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://fallback/db", cfg.DatabaseURL)

	// An explicit value is not overridden.
	cfg = Config{DatabaseURL: "postgres://primary/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://primary/db", cfg.DatabaseURL)
}

func TestApplyPlatformDefaults_Port(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:3000"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr)
}

func TestPurchaseLimitConfig_Evaluator(t *testing.T) {
	cfg := PurchaseLimitConfig{PerProduct: 3, WindowSeconds: 90}
	out := cfg.Evaluator()
	assert.Equal(t, 3, out.PerProduct)
	assert.Equal(t, 90*time.Second, out.Window)
}
