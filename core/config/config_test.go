package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Storage.Dir != "data" {
		t.Errorf("storage.dir = %q", cfg.Storage.Dir)
	}
	if cfg.Health.Listen != ":9001" {
		t.Errorf("health.listen = %q", cfg.Health.Listen)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("want token error, got %v", err)
	}
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q", cfg.Telegram.RunMode)
	}
}

func TestNormalizeWebhookValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	if err := Normalize(cfg); err == nil {
		t.Fatal("webhook mode without url accepted")
	}
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("valid webhook config rejected: %v", err)
	}
}

func TestNormalizeAdminDedupe(t *testing.T) {
	cfg := validConfig()
	cfg.Admins.SuperAdminIDs = []int64{3, 1, 3, -5, 0, 2}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	got := cfg.Admins.SuperAdminIDs
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestNormalizeExcludeUpdates(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Errorf("exclude = %q", cfg.RateLimit.ExcludeUpdates[0])
	}
	cfg.RateLimit.ExcludeUpdates = []string{"webhook"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("invalid exclude value accepted")
	}
}
