package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxIterationsBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.MaxIterations = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxIterations=0")
	}

	cfg.Agent.MaxIterations = 999
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxIterations=999")
	}

	cfg.Agent.MaxIterations = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxIterations=1 should be valid: %v", err)
	}
	cfg.Agent.MaxIterations = 100
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxIterations=100 should be valid: %v", err)
	}
}

func TestValidate_UnknownAgentProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.Provider = "nonexistent"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown agent provider")
	}
}

func TestValidate_TemperatureBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.Temperature = 3.0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for temperature > 2")
	}
	cfg.Agent.Temperature = -0.1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative temperature")
	}
}

func TestValidate_TelegramTokenRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled telegram without token")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Set(t *testing.T) {
	t.Setenv("MEROBOT_TEST_VAR", "hello")
	out := ExpandEnvVars("value is ${MEROBOT_TEST_VAR}")
	if out != "value is hello" {
		t.Fatalf("got %q", out)
	}
}

func TestExpandEnvVars_DefaultUsed(t *testing.T) {
	os.Unsetenv("MEROBOT_UNSET_VAR")
	out := ExpandEnvVars("${MEROBOT_UNSET_VAR:-fallback}")
	if out != "fallback" {
		t.Fatalf("got %q", out)
	}
}

func TestExpandEnvVars_SetBeatsDefault(t *testing.T) {
	t.Setenv("MEROBOT_TEST_VAR", "real")
	out := ExpandEnvVars("${MEROBOT_TEST_VAR:-fallback}")
	if out != "real" {
		t.Fatalf("got %q", out)
	}
}

func TestExpandEnvVars_UnsetNoDefaultKept(t *testing.T) {
	os.Unsetenv("MEROBOT_UNSET_VAR")
	out := ExpandEnvVars("${MEROBOT_UNSET_VAR}")
	if out != "${MEROBOT_UNSET_VAR}" {
		t.Fatalf("got %q", out)
	}
}

// --- Load / Save ---

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Agent.Model = "gpt-4o"
	cfg.General.Workspace = filepath.Join(dir, "ws")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Agent.Model != "gpt-4o" {
		t.Fatalf("model not preserved: %q", loaded.Agent.Model)
	}
}

func TestLoad_EnvExpansionInFile(t *testing.T) {
	t.Setenv("MEROBOT_TEST_KEY", "sekrit")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	raw := `{
		"providers": {
			"openai": {"enabled": true, "apiBase": "https://api.openai.com/v1", "apiKey": "${MEROBOT_TEST_KEY}"}
		}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sekrit" {
		t.Fatalf("env var not expanded: %q", cfg.Providers["openai"].APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{"agent": {"maxIterations": 0}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{"channels": {"telegram": {"enabled": true, "token": "x", "allowFrom": ["123", 456]}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := []string(cfg.Channels.Telegram.AllowFrom)
	if len(got) != 2 || got[0] != "123" || got[1] != "456" {
		t.Fatalf("allowFrom = %v", got)
	}
}

// --- Accessors ---

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	v, err := GetByPath(cfg, "agent.model")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "gpt-4o-mini" {
		t.Fatalf("got %v", v)
	}

	if _, err := GetByPath(cfg, "agent.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "agent.maxIterations", "5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Fatalf("maxIterations = %d", cfg.Agent.MaxIterations)
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	p := cfg.Providers["openai"]
	p.APIKey = "sk-veryverysecretkey"
	cfg.Providers["openai"] = p
	cfg.Channels.Telegram.Token = "123456:telegram-token"

	clean := Sanitize(cfg)
	if strings.Contains(clean.Providers["openai"].APIKey, "verysecret") {
		t.Fatalf("api key not masked: %q", clean.Providers["openai"].APIKey)
	}
	if clean.Channels.Telegram.Token == cfg.Channels.Telegram.Token {
		t.Fatal("telegram token not masked")
	}
	// Original untouched.
	if cfg.Providers["openai"].APIKey != "sk-veryverysecretkey" {
		t.Fatal("sanitize mutated the original config")
	}
}
