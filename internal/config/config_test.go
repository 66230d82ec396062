package config

import "testing"

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Addr)
	}
}

func TestLoadServerConfigFullAddr(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", cfg.Addr)
	}
}

func TestLoadAIConfigInfersProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("ARK_API_KEY", "")
	t.Setenv("ARK_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := loadAIConfig()
	if err != nil {
		t.Fatalf("loadAIConfig err: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %q", cfg.Provider)
	}
	if !cfg.Enabled() {
		t.Fatal("expected auto-reply enabled with an API key")
	}
}

func TestLoadAIConfigUnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "palm")

	if _, err := loadAIConfig(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadAIConfigDisabledWithoutCredentials(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("ARK_API_KEY", "")
	t.Setenv("ARK_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := loadAIConfig()
	if err != nil {
		t.Fatalf("loadAIConfig err: %v", err)
	}
	if cfg.Enabled() {
		t.Fatal("expected auto-reply disabled without credentials")
	}
}

func TestLoadAIConfigTimeout(t *testing.T) {
	t.Setenv("AI_TIMEOUT", "5")

	cfg, err := loadAIConfig()
	if err != nil {
		t.Fatalf("loadAIConfig err: %v", err)
	}
	if cfg.ReplyTimeout.Seconds() != 5 {
		t.Fatalf("unexpected timeout %v", cfg.ReplyTimeout)
	}
}
