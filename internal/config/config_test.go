package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Router.Temperature != 0.7 || cfg.Router.MaxTokens != 2000 {
		t.Fatalf("sampling defaults = %v/%d", cfg.Router.Temperature, cfg.Router.MaxTokens)
	}
	if cfg.Router.FallbackHistoryWindow != 6 {
		t.Fatalf("FallbackHistoryWindow = %d, want 6", cfg.Router.FallbackHistoryWindow)
	}
}

func TestLoadFromMissingYAMLUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(cfg.Router.Models) != len(DefaultModels()) {
		t.Fatalf("got %d models, want built-in catalog", len(cfg.Router.Models))
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modelchat.yaml")
	yamlDoc := `
port: "9090"
router:
  default_model: gpt-4o-mini
  call_timeout: 15s
  fallback_models: [gpt-4.1]
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("FALLBACK_MODELS", "gpt-4o, gpt-4.1 ,")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("env should override yaml: Port = %q", cfg.Port)
	}
	if cfg.Router.DefaultModel != "gpt-4o-mini" {
		t.Errorf("yaml should override defaults: DefaultModel = %q", cfg.Router.DefaultModel)
	}
	if cfg.Router.CallTimeout != 15*time.Second {
		t.Errorf("CallTimeout = %v, want 15s", cfg.Router.CallTimeout)
	}
	if got := cfg.Router.FallbackModels; len(got) != 2 || got[0] != "gpt-4o" || got[1] != "gpt-4.1" {
		t.Errorf("FallbackModels = %v", got)
	}
	if len(cfg.Router.Models) == 0 {
		t.Error("catalog should survive a yaml file that does not mention it")
	}
}

func TestValidateRejectsUnknownDefaultModel(t *testing.T) {
	cfg := Defaults()
	cfg.Router.DefaultModel = "nope"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown default model")
	}
}

func TestValidateRejectsDuplicateModels(t *testing.T) {
	cfg := Defaults()
	cfg.Router.Models = append(cfg.Router.Models, cfg.Router.Models[0])
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate model id")
	}
}

func TestValidateRejectsBadLocale(t *testing.T) {
	cfg := Defaults()
	cfg.Router.DefaultLocale = "de"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported locale")
	}
}

func TestGetEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	if got := getEnvInt("X_INT", 3); got != 3 {
		t.Errorf("getEnvInt = %d, want 3", got)
	}
	if got := getEnvBool("X_BOOL", true); !got {
		t.Errorf("getEnvBool = %v, want true", got)
	}
	if got := getEnvDuration("X_DUR", time.Second); got != time.Second {
		t.Errorf("getEnvDuration = %v, want 1s", got)
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	cfg := Defaults()
	cfg.FrontendURL = "https://chat.example.com/"
	got := cfg.AllowedOrigins()
	if len(got) != 1 || got[0] != "https://chat.example.com" {
		t.Fatalf("AllowedOrigins = %v", got)
	}
}
