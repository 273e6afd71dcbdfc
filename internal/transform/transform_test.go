package transform

import (
	"path/filepath"
	"strings"
	"testing"

	"guardianproxy/internal/crypto"
	"guardianproxy/internal/detector"
	"guardianproxy/internal/metrics"
	"guardianproxy/internal/vault"
)

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	dir := t.TempDir()
	core, err := crypto.Open(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("crypto.Open: %v", err)
	}
	v, err := vault.Open(filepath.Join(dir, "vault.db"), core, 100, nil)
	if err != nil {
		t.Fatalf("vault.Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return New(detector.New(), v, nil)
}

func TestProtectText_ReplacesDetectedValue(t *testing.T) {
	tr := newTestTransformer(t)
	out, err := tr.ProtectText("contact alice@example.com for details", "anthropic")
	if err != nil {
		t.Fatalf("ProtectText: %v", err)
	}
	if strings.Contains(out, "alice@example.com") {
		t.Errorf("email leaked into protected text: %q", out)
	}
	if !vault.TokenPattern.MatchString(out) {
		t.Errorf("expected a token in output, got %q", out)
	}
}

func TestProtectText_NoMatchPassesThroughUnchanged(t *testing.T) {
	tr := newTestTransformer(t)
	const text = "nothing sensitive here"
	out, err := tr.ProtectText(text, "anthropic")
	if err != nil {
		t.Fatalf("ProtectText: %v", err)
	}
	if out != text {
		t.Errorf("got %q, want unchanged %q", out, text)
	}
}

func TestProtectUnprotect_RoundTrip(t *testing.T) {
	tr := newTestTransformer(t)
	original := "my email is bob@example.com and ssn 123-45-6789"
	protected, err := tr.ProtectText(original, "anthropic")
	if err != nil {
		t.Fatalf("ProtectText: %v", err)
	}
	restored, err := tr.UnprotectText(protected)
	if err != nil {
		t.Fatalf("UnprotectText: %v", err)
	}
	if restored != original {
		t.Errorf("round trip: got %q, want %q", restored, original)
	}
}

func TestUnprotectText_UnknownTokenPassesThrough(t *testing.T) {
	tr := newTestTransformer(t)
	const text = "orphan token ◈PG:EMAI_000000000000◈ remains"
	out, err := tr.UnprotectText(text)
	if err != nil {
		t.Fatalf("UnprotectText: %v", err)
	}
	if out != text {
		t.Errorf("unknown token should pass through verbatim: got %q", out)
	}
}

// TestProtectText_RepeatValueDoesNotInflateNewItemCounter covers spec
// Scenario 2: a second request for an already-known value must not bump
// the new-item counter, since no new vault entry is created.
func TestProtectText_RepeatValueDoesNotInflateNewItemCounter(t *testing.T) {
	dir := t.TempDir()
	core, err := crypto.Open(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("crypto.Open: %v", err)
	}
	v, err := vault.Open(filepath.Join(dir, "vault.db"), core, 100, nil)
	if err != nil {
		t.Fatalf("vault.Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	m := metrics.New()
	tr := New(detector.New(), v, m)

	if _, err := tr.ProtectText("contact test@example.com please", "anthropic"); err != nil {
		t.Fatalf("ProtectText #1: %v", err)
	}
	afterFirst := m.TokensProtected.Load()
	if afterFirst != 1 {
		t.Fatalf("TokensProtected after first request: got %d, want 1", afterFirst)
	}

	if _, err := tr.ProtectText("contact test@example.com please", "anthropic"); err != nil {
		t.Fatalf("ProtectText #2: %v", err)
	}
	afterSecond := m.TokensProtected.Load()
	if afterSecond != afterFirst {
		t.Errorf("TokensProtected delta on repeat value: got %d, want 0 (stayed at %d)", afterSecond-afterFirst, afterFirst)
	}
}

func TestProtectRequest_JSON_OnlyScansMatchingPaths(t *testing.T) {
	tr := newTestTransformer(t)
	body := []byte(`{"model":"claude-3","messages":[{"role":"user","content":"email me at carol@example.com"}]}`)
	out, err := tr.ProtectRequest(body, []string{"messages[*].content"}, "anthropic")
	if err != nil {
		t.Fatalf("ProtectRequest: %v", err)
	}
	if strings.Contains(string(out), "carol@example.com") {
		t.Errorf("email leaked: %s", out)
	}
	if !strings.Contains(string(out), `"model":"claude-3"`) {
		t.Errorf("non-matching field was altered: %s", out)
	}
}

func TestProtectRequest_JSON_SkipsNonMatchingField(t *testing.T) {
	tr := newTestTransformer(t)
	// "model" is not a message path and not a fallback field name; a
	// PII-shaped value there must survive untouched.
	body := []byte(`{"model":"foo@bar.com-model","messages":[{"role":"user","content":"hi"}]}`)
	out, err := tr.ProtectRequest(body, []string{"messages[*].content"}, "anthropic")
	if err != nil {
		t.Fatalf("ProtectRequest: %v", err)
	}
	if !strings.Contains(string(out), "foo@bar.com-model") {
		t.Errorf("non-message field should not be scanned: %s", out)
	}
}

func TestProtectRequest_FallbackFieldName(t *testing.T) {
	tr := newTestTransformer(t)
	body := []byte(`{"prompt":"call me at 555-123-4567"}`)
	out, err := tr.ProtectRequest(body, nil, "anthropic")
	if err != nil {
		t.Fatalf("ProtectRequest: %v", err)
	}
	if strings.Contains(string(out), "555-123-4567") {
		t.Errorf("phone leaked via fallback field match: %s", out)
	}
}

func TestProtectRequest_NonJSONBody_TreatedAsPlainText(t *testing.T) {
	tr := newTestTransformer(t)
	out, err := tr.ProtectRequest([]byte("plain text with dana@example.com inside"), nil, "anthropic")
	if err != nil {
		t.Fatalf("ProtectRequest: %v", err)
	}
	if strings.Contains(string(out), "dana@example.com") {
		t.Errorf("email leaked in plain-text fallback: %s", out)
	}
}

func TestUnprotectResponse_JSONEnvelope(t *testing.T) {
	tr := newTestTransformer(t)
	protected, err := tr.ProtectText("erin@example.com", "anthropic")
	if err != nil {
		t.Fatalf("ProtectText: %v", err)
	}
	body := []byte(`{"choices":[{"text":"` + protected + `"}]}`)
	out, err := tr.UnprotectResponse(body)
	if err != nil {
		t.Fatalf("UnprotectResponse: %v", err)
	}
	if !strings.Contains(string(out), "erin@example.com") {
		t.Errorf("expected detokenized value in response: %s", out)
	}
}
