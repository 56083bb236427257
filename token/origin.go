package token

import (
	"regexp"
	"strings"
)

// MatchOrigin evaluates a request origin against a domain allowlist. An empty
// allowlist means unrestricted; an empty origin against a non-empty allowlist
// is always rejected. Entries may contain `*`, which matches any run of
// characters (including none) in the position it appears. Matching is
// case-sensitive and anchored at both ends; entry order is irrelevant.
func MatchOrigin(allowedOrigins []string, requestOrigin string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	if requestOrigin == "" {
		return false
	}
	for _, pattern := range allowedOrigins {
		if matchOriginPattern(pattern, requestOrigin) {
			return true
		}
	}
	return false
}

func matchOriginPattern(pattern, origin string) bool {
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	matched, err := regexp.MatchString(expr, origin)
	if err != nil {
		return false
	}
	return matched
}
