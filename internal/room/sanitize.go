package room

import "strings"

// Sanitize keeps ASCII letters and spaces, trims, and caps the result at maxLen
// bytes. Spaces exposed by the cap are trimmed too, so Sanitize is idempotent.
func Sanitize(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], " ")
	}
	return out
}

// NameLength caps player names.
const NameLength = 12

// NormalizeName is the name a player is known by in a room. Client and server
// both apply it, so change-player names compare equal to the joining name.
func NormalizeName(s string) string {
	return strings.ToUpper(Sanitize(s, NameLength))
}
