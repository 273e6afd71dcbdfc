// Command guardianproxy is the local PII-redacting reverse proxy for
// outbound LLM API traffic.
//
// It intercepts requests bound for a known LLM API (or an explicitly named
// one, via the X-Target-Url header), replaces detected PII and secrets in
// the request body with stable opaque tokens, forwards the cleaned request,
// and substitutes the original values back into the response — including a
// streamed SSE response, where a token can arrive split across chunks.
//
// Usage:
//
//	# Start with defaults (127.0.0.1:6660)
//	./guardianproxy
//
//	# Custom port and home directory
//	GUARDIAN_PORT=7000 GUARDIAN_HOME=/var/lib/guardianproxy ./guardianproxy
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guardianproxy/internal/config"
	"guardianproxy/internal/control"
	"guardianproxy/internal/crypto"
	"guardianproxy/internal/detector"
	"guardianproxy/internal/logger"
	"guardianproxy/internal/metrics"
	"guardianproxy/internal/provider"
	"guardianproxy/internal/proxy"
	"guardianproxy/internal/transform"
	"guardianproxy/internal/vault"
)

func main() {
	cfg := config.Load()
	log := logger.New("main", cfg.LogLevel)

	printBanner(cfg)

	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		log.Fatalf("startup", "create home directory %s: %v", cfg.Home, err)
	}

	core, err := crypto.Open(cfg.KeyFile())
	if err != nil {
		log.Fatalf("startup", "open master key: %v", err)
	}

	// Shared metrics collector — passed to the vault and the dispatcher so
	// counters are unified under one snapshot.
	m := metrics.New()

	v, err := vault.Open(cfg.VaultFile(), core, cfg.VaultCacheCapacity, m)
	if err != nil {
		log.Fatalf("startup", "open vault: %v", err)
	}
	defer func() {
		if cerr := v.Close(); cerr != nil {
			log.Errorf("shutdown", "vault close: %v", cerr)
		}
	}()

	reg := provider.NewRegistry()
	tr := transform.New(detector.New(), v, m)

	controlServer := control.New(v, m, reg, cfg.ControlToken, logger.New("control", cfg.LogLevel))
	proxyServer := proxy.New(cfg, reg, tr, m, logger.New("proxy", cfg.LogLevel))

	mux := http.NewServeMux()
	mux.Handle(control.Prefix, controlServer.Handler())
	mux.Handle("/", proxyServer)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("startup", "listening on %s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-quit
		log.Info("shutdown", "shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceSecs)*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("shutdown", "server shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("startup", "listen: %v", err)
	}
	// ListenAndServe returns as soon as Shutdown starts; wait for the drain.
	<-drained
}

func printBanner(cfg *config.Config) {
	auth := "disabled"
	if cfg.ControlToken != "" {
		auth = "bearer token required"
	}
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║            PrivacyGuardian Proxy  (Go)                ║
╚══════════════════════════════════════════════════════╝
  Listen address   : %s:%d
  Home directory   : %s
  Default provider : %s
  Control auth     : %s

  Point a client at this address, or set the X-Target-Url
  header to name the upstream explicitly.

  Check status:
    curl http://%s:%d%shealth
`, cfg.BindAddress, cfg.Port, cfg.Home, cfg.DefaultProvider, auth,
		cfg.BindAddress, cfg.Port, control.Prefix)
}
