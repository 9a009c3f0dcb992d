package utils

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Slug lowercases s and joins its letter and digit runs with dashes.
// Names without letters or digits get a stable name-based UUID instead,
// so distinct names never share a slug. Blank input returns "unknown".
func Slug(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "unknown"
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(trimmed) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed)).String()
	}
	return b.String()
}
