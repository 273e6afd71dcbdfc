// Package control provides the read-only HTTP API for inspecting a running
// proxy: aggregate metrics, recent first-intern activity, and a health
// check. It listens under the reserved "/__guardian__/" prefix, which the
// top-level mux in cmd/guardianproxy routes here ahead of the proxy's
// catch-all, so those paths are not forwarded upstream.
package control

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"guardianproxy/internal/logger"
	"guardianproxy/internal/metrics"
	"guardianproxy/internal/provider"
	"guardianproxy/internal/vault"
)

// Prefix is the reserved path prefix that the top-level mux routes to this
// server ahead of the proxy's catch-all.
const Prefix = "/__guardian__/"

// Server is the control-surface HTTP API.
type Server struct {
	vault     *vault.Vault
	metrics   *metrics.Metrics
	reg       *provider.Registry
	token     string // bearer token for auth; empty = no auth
	log       *logger.Logger
	startTime time.Time
}

// New creates a control Server. An empty token disables authentication.
func New(v *vault.Vault, m *metrics.Metrics, reg *provider.Registry, token string, log *logger.Logger) *Server {
	s := &Server{vault: v, metrics: m, reg: reg, token: token, log: log, startTime: time.Now()}
	if s.token != "" {
		s.log.Info("init", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler serving the control endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Prefix+"stats", s.handleStats)
	mux.HandleFunc(Prefix+"activity", s.handleActivity)
	mux.HandleFunc(Prefix+"health", s.handleHealth)
	return s.authMiddleware(mux)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	vstats, err := s.vault.Stats()
	if err != nil {
		s.log.Errorf("stats", "vault.Stats: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	type response struct {
		Vault     vault.Stats       `json:"vault"`
		Metrics   *metrics.Snapshot `json:"metrics,omitempty"`
		Uptime    string            `json:"uptime"`
		Providers []string          `json:"providers"`
	}
	resp := response{
		Vault:     vstats,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Providers: s.providerNames(),
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		resp.Metrics = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	activity, err := s.vault.RecentActivity(n)
	if err != nil {
		s.log.Errorf("activity", "vault.RecentActivity: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// providerNames lists the registered provider keys, in catalog order. Nil
// registry (not expected in production wiring, but harmless for tests that
// construct a Server without one) reports an empty list.
func (s *Server) providerNames() []string {
	if s.reg == nil {
		return []string{}
	}
	all := s.reg.All()
	names := make([]string, 0, len(all))
	for _, p := range all {
		names = append(names, p.Key)
	}
	return names
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort; client may have disconnected
}
