// Package transform implements the outbound protect / inbound detokenize
// pass over request and response bodies.
//
// Outbound, only fields reachable under a provider's message paths (or,
// absent a match, a common user-text field name like "content" or
// "prompt") are scanned for PII and replaced with vault tokens — scanning
// the whole request body blind would risk tokenizing structural fields
// (model names, parameters) that merely happen to look like PII.
//
// Inbound, the entire response body is scanned for tokens with a single
// compiled pattern and detokenized regardless of JSON structure: a token is
// self-identifying by its wire format, so there is nothing to gain from
// walking the response JSON to find them.
package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"guardianproxy/internal/detector"
	"guardianproxy/internal/metrics"
	"guardianproxy/internal/vault"
)

// Transformer applies the protect/detokenize passes, grounded on a fixed
// detector catalog and backed by a shared vault.
type Transformer struct {
	det   *detector.Detector
	vault *vault.Vault
	m     *metrics.Metrics
}

// New returns a ready-to-use Transformer.
func New(det *detector.Detector, v *vault.Vault, m *metrics.Metrics) *Transformer {
	return &Transformer{det: det, vault: v, m: m}
}

// ProtectRequest walks body as JSON, replacing PII/secrets found in leaves
// whose path matches messagePaths (or a fallback user-text field name) with
// vault tokens recorded under providerName. If body does not parse as JSON,
// it is treated as a single plain-text document and protected in full.
func (t *Transformer) ProtectRequest(body []byte, messagePaths []string, providerName string) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		protected, perr := t.ProtectText(string(body), providerName)
		if perr != nil {
			return nil, perr
		}
		return []byte(protected), nil
	}

	matchers := compilePathMatchers(messagePaths)
	doc, err := t.walkProtect(doc, "", matchers, providerName)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (t *Transformer) walkProtect(node any, path string, matchers []*regexp.Regexp, providerName string) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		for k, val := range v {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			if s, ok := val.(string); ok {
				if pathMatches(childPath, matchers) {
					protected, err := t.ProtectText(s, providerName)
					if err != nil {
						return nil, err
					}
					v[k] = protected
				}
				continue
			}
			child, err := t.walkProtect(val, childPath, matchers, providerName)
			if err != nil {
				return nil, err
			}
			v[k] = child
		}
		return v, nil
	case []any:
		for i, item := range v {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if s, ok := item.(string); ok {
				if pathMatches(childPath, matchers) {
					protected, err := t.ProtectText(s, providerName)
					if err != nil {
						return nil, err
					}
					v[i] = protected
				}
				continue
			}
			child, err := t.walkProtect(item, childPath, matchers, providerName)
			if err != nil {
				return nil, err
			}
			v[i] = child
		}
		return v, nil
	default:
		return node, nil
	}
}

// ProtectText detects PII/secrets in text and replaces each accepted match
// with its vault token, interning new values under providerName as it goes.
// The new-item counter only advances for values the vault had not already
// interned — a repeat request for an already-known value must not inflate
// it.
func (t *Transformer) ProtectText(text, providerName string) (string, error) {
	matches := t.det.Detect(text)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		token, isNew, err := t.vault.Intern(string(m.Kind), m.Value, providerName)
		if err != nil {
			return "", fmt.Errorf("transform: intern %s: %w", m.Kind, err)
		}
		b.WriteString(text[last:m.Start])
		b.WriteString(token)
		last = m.End
		if isNew && t.m != nil {
			t.m.TokensProtected.Add(1)
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// UnprotectResponse scans the entire response body for vault tokens and
// replaces each with its original value. Unknown tokens (e.g. stale tokens
// echoed back that the vault has no record of) are left verbatim.
func (t *Transformer) UnprotectResponse(body []byte) ([]byte, error) {
	out, err := t.UnprotectText(string(body))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// UnprotectText replaces every vault token found in text with its looked-up
// value.
func (t *Transformer) UnprotectText(text string) (string, error) {
	locs := vault.TokenPattern.FindAllStringIndex(text, -1)
	if locs == nil {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		token := text[start:end]
		value, ok, err := t.vault.Lookup(token)
		if err != nil {
			return "", fmt.Errorf("transform: lookup %s: %w", token, err)
		}
		b.WriteString(text[last:start])
		if ok {
			b.WriteString(value)
			if t.m != nil {
				t.m.TokensDetokenized.Add(1)
			}
		} else {
			b.WriteString(token)
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
