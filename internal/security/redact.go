// Package security masks credentials before they reach logs or terminal output.
package security

import (
	"regexp"
	"strings"
)

// secretPatterns match credentials embedded in free text such as provider
// error messages.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|access[_-]?token|auth[_-]?token|password)(\s*[=:]\s*["']?)([^\s"',]+)`),
	regexp.MustCompile(`(?i)\b(bearer\s+)([A-Za-z0-9._\-]{8,})`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`), // OpenAI keys
}

// MaskCredential keeps the first and last four characters of long values.
func MaskCredential(value string) string {
	switch n := len(value); {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:2] + strings.Repeat("*", n-2)
	default:
		return value[:4] + strings.Repeat("*", n-8) + value[n-4:]
	}
}

// MaskSecrets masks every credential-looking substring of text.
func MaskSecrets(text string) string {
	text = secretPatterns[0].ReplaceAllStringFunc(text, func(m string) string {
		parts := secretPatterns[0].FindStringSubmatch(m)
		return parts[1] + parts[2] + MaskCredential(parts[3])
	})
	text = secretPatterns[1].ReplaceAllStringFunc(text, func(m string) string {
		parts := secretPatterns[1].FindStringSubmatch(m)
		return parts[1] + MaskCredential(parts[2])
	})
	return secretPatterns[2].ReplaceAllStringFunc(text, MaskCredential)
}

// ContainsSecret reports whether text holds anything MaskSecrets would change.
func ContainsSecret(text string) bool {
	for _, p := range secretPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
