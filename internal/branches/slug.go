package branches

import "strings"

// Slugify derives the canonical branch slug from a display name: the name is
// lowercased and every run of characters outside [a-z0-9-_] collapses to a
// single hyphen. Leading and trailing separator runs produce no hyphen, so
// "Feature Branch!!" yields "feature-branch". The function is pure; equal
// names always yield equal slugs.
func Slugify(name string) string {
	lowered := strings.ToLower(name)

	var builder strings.Builder
	builder.Grow(len(lowered))
	pendingSeparator := false
	for _, char := range lowered {
		if isSlugChar(char) {
			if pendingSeparator && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			pendingSeparator = false
			builder.WriteRune(char)
			continue
		}
		pendingSeparator = true
	}
	return builder.String()
}

func isSlugChar(char rune) bool {
	switch {
	case char >= 'a' && char <= 'z':
		return true
	case char >= '0' && char <= '9':
		return true
	case char == '-' || char == '_':
		return true
	default:
		return false
	}
}
