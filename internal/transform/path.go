package transform

import (
	"regexp"
	"strings"
)

// indexSuffix matches a literal array index segment, e.g. "[3]".
var indexSuffix = regexp.MustCompile(`\[\d+\]`)

// fallbackFields are the field names checked, case-insensitively, when no
// explicit message-path pattern matches a JSON leaf's path. These are the
// common user-authored-text field names across the provider catalog.
var fallbackFields = map[string]bool{
	"content": true,
	"text":    true,
	"prompt":  true,
	"message": true,
	"input":   true,
	"query":   true,
}

// compilePathMatchers turns a provider's message-path patterns
// ("messages[*].content") into regexps matching a walked JSON path
// ("messages[2].content"). "[*]" matches any literal array index; the
// match is anchored at the end of the path but not the start, so a pattern
// matches its path as a suffix (a leaf named exactly by the pattern, at any
// nesting depth above it).
func compilePathMatchers(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(p, ".")
		escaped := regexp.QuoteMeta(p)
		escaped = strings.ReplaceAll(escaped, `\[\*\]`, `\[\d+\]`)
		re, err := regexp.Compile(escaped + `$`)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// pathMatches reports whether path should be scanned for PII: either an
// explicit matcher matches it, or (absent any match) its leaf field name is
// one of the common user-text field names.
func pathMatches(path string, matchers []*regexp.Regexp) bool {
	path = strings.TrimPrefix(path, ".")
	for _, re := range matchers {
		if re.MatchString(path) {
			return true
		}
	}
	return fallbackFieldMatches(path)
}

func fallbackFieldMatches(path string) bool {
	segment := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		segment = path[idx+1:]
	}
	segment = indexSuffix.ReplaceAllString(segment, "")
	return fallbackFields[strings.ToLower(segment)]
}
