package vault

import "regexp"

const (
	tokenOpen  = "◈PG:"
	tokenClose = "◈"
)

// TokenPattern matches any token in the `◈PG:<K>_<H>◈` wire format, where
// <K> is 1-8 uppercase ASCII letters/underscores and <H> is exactly 12
// lowercase hex digits. Used by the transformer to find candidate tokens in
// a single pass over response text.
var TokenPattern = regexp.MustCompile(`◈PG:[A-Z_]{1,8}_[a-f0-9]{12}◈`)

// FormatToken builds the wire-format token for a kind code and a 12-hex-digit
// value hash. kind is truncated to its first four characters, matching the
// normative token format (shorter kind codes are used as-is).
func FormatToken(kind, hash12 string) string {
	return tokenOpen + kind4(kind) + "_" + hash12 + tokenClose
}

// kind4 returns the first four characters of kind, or kind itself if
// shorter.
func kind4(kind string) string {
	if len(kind) <= 4 {
		return kind
	}
	return kind[:4]
}
