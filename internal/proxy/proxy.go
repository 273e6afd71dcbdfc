// Package proxy implements the catch-all HTTP dispatcher: it resolves the
// upstream LLM API target for each request, protects request bodies before
// forwarding, and detokenizes response bodies (buffered or streamed)
// before they reach the client.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"guardianproxy/internal/config"
	"guardianproxy/internal/logger"
	"guardianproxy/internal/metrics"
	"guardianproxy/internal/provider"
	"guardianproxy/internal/transform"
)

// maxBodyBytes bounds how much of a request body the dispatcher will read
// into memory to run detection over.
const maxBodyBytes = 25 * 1024 * 1024

// targetHeader lets a client name the upstream URL explicitly, overriding
// Host-based provider resolution. Stripped before forwarding.
const targetHeader = "X-Target-Url"

// Server is the proxy dispatcher.
type Server struct {
	cfg       *config.Config
	reg       *provider.Registry
	transform *transform.Transformer
	transport *http.Transport
	log       *logger.Logger
	m         *metrics.Metrics
}

// New creates a dispatcher forwarding through a hardened transport that
// refuses to dial private/loopback addresses (the proxy itself listens on
// loopback, but must never let a spoofed Host or X-Target-Url redirect
// traffic back into the local network).
func New(cfg *config.Config, reg *provider.Registry, tr *transform.Transformer, m *metrics.Metrics, log *logger.Logger) *Server {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &Server{
		cfg:       cfg,
		reg:       reg,
		transform: tr,
		m:         m,
		log:       log,
		transport: &http.Transport{
			DialContext:           ssrfSafeDialContext(dialer),
			MaxIdleConns:          200,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// ServeHTTP resolves the upstream target, protects the request body,
// forwards it, and detokenizes the response before writing it back.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.m != nil {
		s.m.RequestsTotal.Add(1)
	}

	target, p, err := s.resolveTarget(r)
	if err != nil {
		s.log.Errorf("dispatch", "%v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body.Close() //nolint:errcheck // best-effort close
	if err != nil {
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}

	streaming := isStreamingRequest(body)
	if streaming {
		if s.m != nil {
			s.m.RequestsStreamed.Add(1)
		}
	} else {
		if s.m != nil {
			s.m.RequestsBuffered.Add(1)
		}
	}

	detectStart := time.Now()
	protected, err := s.transform.ProtectRequest(body, p.MessagePaths, p.Key)
	if s.m != nil {
		s.m.RecordDetectLatency(time.Since(detectStart))
	}
	if err != nil {
		if s.m != nil {
			s.m.ErrorsDetect.Add(1)
		}
		s.log.Errorf("protect", "%v", err)
		http.Error(w, "detection error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	var cancel context.CancelFunc
	if !streaming {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutSecs)*time.Second)
		defer cancel()
	}

	upReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(protected))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	upReq.Header = r.Header.Clone()
	upReq.Header.Del(targetHeader)
	removeHopByHop(upReq.Header)
	upReq.ContentLength = int64(len(protected))
	upReq.Host = target.Host

	upstreamStart := time.Now()
	resp, err := s.transport.RoundTrip(upReq)
	if err != nil {
		if s.m != nil {
			s.m.ErrorsUpstream.Add(1)
		}
		s.log.Errorf("upstream", "%s: %v", target.Host, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("upstream unreachable: %v", err)}) //nolint:errcheck // best-effort write
		return
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	if s.m != nil {
		s.m.RecordUpstreamLatency(time.Since(upstreamStart))
	}

	removeHopByHop(resp.Header)
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	// Upstream application errors (4xx/5xx) keep their status and take the
	// buffered path below even for a streaming request, so their body is
	// detokenized like any other buffered response.
	if streaming && resp.StatusCode < 400 {
		sr := s.transform.NewStreamReader(resp.Body)
		flushingCopy(w, sr)
		return
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Errorf("response", "read upstream body: %v", err)
		return
	}
	out, err := s.transform.UnprotectResponse(respBody)
	if err != nil {
		s.log.Errorf("response", "detokenize failed, passing through raw: %v", err)
		w.Write(respBody) //nolint:errcheck // best-effort write
		return
	}
	w.Write(out) //nolint:errcheck // best-effort write
}

// resolveTarget picks the upstream URL for r: an explicit X-Target-Url
// header wins, then a known-Host provider match, then the configured
// default provider's primary domain.
func (s *Server) resolveTarget(r *http.Request) (*url.URL, provider.Provider, error) {
	if override := r.Header.Get(targetHeader); override != "" {
		u, err := url.Parse(override)
		if err != nil {
			return nil, provider.Provider{}, fmt.Errorf("invalid %s header: %w", targetHeader, err)
		}
		if isPrivateHost(u.Host) {
			return nil, provider.Provider{}, fmt.Errorf("%s refuses a private-address target: %s", targetHeader, u.Host)
		}
		p, _ := s.reg.Resolve(u.Host)
		return u, p, nil
	}

	if p, ok := s.reg.Resolve(r.Host); ok {
		return &url.URL{Scheme: "https", Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}, p, nil
	}

	p, ok := s.reg.ByKey(s.cfg.DefaultProvider)
	if !ok || len(p.Domains) == 0 {
		return nil, provider.Provider{}, fmt.Errorf("no route for host %q and no usable default provider", r.Host)
	}
	return &url.URL{Scheme: "https", Host: p.Domains[0], Path: r.URL.Path, RawQuery: r.URL.RawQuery}, p, nil
}

// isStreamingRequest reports whether body is a JSON document requesting a
// streamed response ({"stream": true}), the signal used to choose the
// buffered vs. streaming response path before the upstream round trip
// begins.
func isStreamingRequest(body []byte) bool {
	var probe struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Stream
}

var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailers", "Transfer-Encoding", "Upgrade", "Proxy-Connection",
}

func removeHopByHop(h http.Header) {
	for _, v := range hopByHopHeaders {
		h.Del(v)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// isPrivateIP reports whether ip is loopback, link-local, or within an
// RFC 1918 / RFC 4193 private range.
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate()
}

// isPrivateHost reports whether host (optionally "host:port", optionally
// bracketed IPv6) is a private IP literal. It does not resolve hostnames:
// checking a resolved address here and dialing a separately-resolved one
// later would leave a TOCTOU gap, so hostname resolution is handled by
// ssrfSafeDialContext at dial time instead.
func isPrivateHost(host string) bool {
	h := host
	if hh, _, err := net.SplitHostPort(host); err == nil {
		h = hh
	}
	h = strings.Trim(h, "[]")
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return isPrivateIP(ip)
}

// ssrfSafeDialContext wraps dialer so outbound connections refuse private,
// loopback, and link-local destinations — including ones reached only
// after this function resolves a hostname, so a later DNS answer can't
// rebind a permitted hostname onto an internal address.
func ssrfSafeDialContext(dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		if ip := net.ParseIP(host); ip != nil {
			if isPrivateIP(ip) {
				return nil, fmt.Errorf("proxy: refusing to dial private address %s", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		}

		resolved, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		for _, ipAddr := range resolved {
			if !isPrivateIP(ipAddr.IP) {
				// Dial the checked address itself, not the hostname, so a
				// second resolution cannot substitute a private address.
				return dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			}
		}
		return nil, fmt.Errorf("proxy: refusing to dial private address %s", addr)
	}
}

// flushingCopy copies src to dst, flushing dst after every successful
// write so a streaming SSE response reaches the client promptly instead of
// sitting in a buffer until enough bytes accumulate.
func flushingCopy(dst io.Writer, src io.Reader) {
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}
