// Package config loads and holds all guardian proxy configuration.
// Settings are layered: defaults → guardian-config.json → environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the full proxy configuration.
type Config struct {
	Port            int    `json:"port"`
	BindAddress     string `json:"bindAddress"`
	LogLevel        string `json:"logLevel"`
	Home            string `json:"home"`
	ControlToken    string `json:"controlToken"`
	DefaultProvider string `json:"defaultProvider"`

	// RequestTimeoutSecs bounds a buffered (non-streaming) upstream round trip.
	RequestTimeoutSecs int `json:"requestTimeoutSecs"`
	// StreamChunkTimeoutSecs is loaded from file and env but is not read by
	// the dispatcher: a streaming upstream response has no per-chunk or
	// total deadline.
	StreamChunkTimeoutSecs int `json:"streamChunkTimeoutSecs"`

	// ShutdownGraceSecs bounds how long the server waits for in-flight
	// requests to drain on SIGINT/SIGTERM before forcing a close.
	ShutdownGraceSecs int `json:"shutdownGraceSecs"`

	// VaultCacheCapacity bounds the number of hot entries kept in the
	// token vault's S3-FIFO read-through cache.
	VaultCacheCapacity int `json:"vaultCacheCapacity"`
}

// Load returns config with defaults overridden by guardian-config.json and
// env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "guardian-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Port:                   6660,
		BindAddress:            "127.0.0.1",
		LogLevel:               "info",
		Home:                   filepath.Join(home, ".privacyguardian"),
		DefaultProvider:        "anthropic",
		RequestTimeoutSecs:     120,
		StreamChunkTimeoutSecs: 30,
		ShutdownGraceSecs:      15,
		VaultCacheCapacity:     50000,
	}
}

// KeyFile returns the path to the vault's master encryption key.
func (c *Config) KeyFile() string { return filepath.Join(c.Home, "master.key") }

// VaultFile returns the path to the bbolt-backed token vault.
func (c *Config) VaultFile() string { return filepath.Join(c.Home, "vault.db") }

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a fixed config file name, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("GUARDIAN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("GUARDIAN_BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("GUARDIAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GUARDIAN_HOME"); v != "" {
		cfg.Home = v
	}
	if v := os.Getenv("GUARDIAN_CONTROL_TOKEN"); v != "" {
		cfg.ControlToken = v
	}
	if v := os.Getenv("GUARDIAN_DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
	if v := os.Getenv("GUARDIAN_REQUEST_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSecs = n
		}
	}
	if v := os.Getenv("GUARDIAN_STREAM_CHUNK_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StreamChunkTimeoutSecs = n
		}
	}
	if v := os.Getenv("GUARDIAN_SHUTDOWN_GRACE_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShutdownGraceSecs = n
		}
	}
	if v := os.Getenv("GUARDIAN_VAULT_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VaultCacheCapacity = n
		}
	}
}
