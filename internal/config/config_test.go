package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ADMIN_CHAT_ID", "100500")
	t.Setenv("YOOKASSA_SHOP_ID", "shop-1")
	t.Setenv("YOOKASSA_API_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ProductPrice != 100000 {
		t.Errorf("price must be in kopecks, got %d", cfg.ProductPrice)
	}
	if cfg.LowStockLevel != 5 || cfg.CriticalStock != 3 || cfg.InitialStock != 10 {
		t.Errorf("unexpected stock defaults: %d/%d/%d", cfg.LowStockLevel, cfg.CriticalStock, cfg.InitialStock)
	}
	if len(cfg.AddressKeywords) == 0 {
		t.Error("default address keywords must be present")
	}
	if cfg.AdminChatID != 100500 {
		t.Errorf("admin chat id = %d", cfg.AdminChatID)
	}
}

func TestLoadMissingCredential(t *testing.T) {
	setRequired(t)
	t.Setenv("YOOKASSA_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing credential")
	}
	if !strings.Contains(err.Error(), "YOOKASSA_API_KEY") {
		t.Errorf("error should name the env var, got %q", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PRODUCT_PRICE", "1500")
	t.Setenv("ADDRESS_KEYWORDS", "Россия, Казань")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ProductPrice != 150000 {
		t.Errorf("price = %d, want 150000", cfg.ProductPrice)
	}
	if len(cfg.AddressKeywords) != 2 || cfg.AddressKeywords[0] != "россия" {
		t.Errorf("keywords must be lowercased: %v", cfg.AddressKeywords)
	}
}
