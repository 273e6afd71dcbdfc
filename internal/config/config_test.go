package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Port != 6660 {
		t.Errorf("Port: got %d, want 6660", cfg.Port)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.Home == "" {
		t.Error("Home should not be empty")
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider: got %s, want anthropic", cfg.DefaultProvider)
	}
	if cfg.RequestTimeoutSecs != 120 {
		t.Errorf("RequestTimeoutSecs: got %d, want 120", cfg.RequestTimeoutSecs)
	}
	if cfg.StreamChunkTimeoutSecs != 30 {
		t.Errorf("StreamChunkTimeoutSecs: got %d, want 30", cfg.StreamChunkTimeoutSecs)
	}
	if cfg.ShutdownGraceSecs != 15 {
		t.Errorf("ShutdownGraceSecs: got %d, want 15", cfg.ShutdownGraceSecs)
	}
	if cfg.VaultCacheCapacity != 50000 {
		t.Errorf("VaultCacheCapacity: got %d, want 50000", cfg.VaultCacheCapacity)
	}
}

func TestKeyFileAndVaultFile(t *testing.T) {
	cfg := defaults()
	cfg.Home = "/tmp/pg-home"

	if got, want := cfg.KeyFile(), "/tmp/pg-home/master.key"; got != want {
		t.Errorf("KeyFile(): got %s, want %s", got, want)
	}
	if got, want := cfg.VaultFile(), "/tmp/pg-home/vault.db"; got != want {
		t.Errorf("VaultFile(): got %s, want %s", got, want)
	}
}

func TestLoadEnv_Port(t *testing.T) {
	t.Setenv("GUARDIAN_PORT", "9090")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Port != 9090 {
		t.Errorf("Port: got %d, want 9090", cfg.Port)
	}
}

func TestLoadEnv_InvalidPort_Ignored(t *testing.T) {
	t.Setenv("GUARDIAN_PORT", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Port != 6660 {
		t.Errorf("Port: got %d, want 6660 (invalid env should be ignored)", cfg.Port)
	}
}

func TestLoadEnv_BindAddress(t *testing.T) {
	t.Setenv("GUARDIAN_BIND_ADDRESS", "0.0.0.0")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
}

func TestLoadEnv_LogLevel(t *testing.T) {
	t.Setenv("GUARDIAN_LOG_LEVEL", "debug")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
}

func TestLoadEnv_Home(t *testing.T) {
	t.Setenv("GUARDIAN_HOME", "/var/lib/guardian")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Home != "/var/lib/guardian" {
		t.Errorf("Home: got %s", cfg.Home)
	}
}

func TestLoadEnv_ControlToken(t *testing.T) {
	t.Setenv("GUARDIAN_CONTROL_TOKEN", "secret-token")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.ControlToken != "secret-token" {
		t.Errorf("ControlToken: got %s", cfg.ControlToken)
	}
}

func TestLoadEnv_DefaultProvider(t *testing.T) {
	t.Setenv("GUARDIAN_DEFAULT_PROVIDER", "openai")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider: got %s", cfg.DefaultProvider)
	}
}

func TestLoadEnv_VaultCacheCapacity_ZeroIgnored(t *testing.T) {
	t.Setenv("GUARDIAN_VAULT_CACHE_CAPACITY", "0")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.VaultCacheCapacity != 50000 {
		t.Errorf("VaultCacheCapacity: got %d, want 50000 (zero should be ignored)", cfg.VaultCacheCapacity)
	}
}

func TestLoadFile_ValidJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatal(err)
	}

	data, marshalErr := json.Marshal(map[string]any{
		"port":            9999,
		"defaultProvider": "mistral",
	})
	if marshalErr != nil {
		t.Fatal(marshalErr)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())

	if cfg.Port != 9999 {
		t.Errorf("Port: got %d, want 9999", cfg.Port)
	}
	if cfg.DefaultProvider != "mistral" {
		t.Errorf("DefaultProvider: got %s", cfg.DefaultProvider)
	}
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, "/nonexistent/path/config.json")
	if cfg.Port != 6660 {
		t.Errorf("Port changed unexpectedly: %d", cfg.Port)
	}
}

func TestLoadFile_InvalidJSON_PreservesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-bad-*.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{this is not json}"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())
	if cfg.Port != 6660 {
		t.Errorf("Port changed on bad JSON: %d", cfg.Port)
	}
}

func TestLoad_ReturnsNonNil(t *testing.T) {
	cfg := Load()
	if cfg == nil {
		t.Fatal("Load() returned nil")
	}
	if cfg.Port <= 0 {
		t.Errorf("Port should be positive, got %d", cfg.Port)
	}
}
