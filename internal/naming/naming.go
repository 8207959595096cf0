package naming

import "strings"

// Normalize cleans up user-typed identifiers so they can be compared against known names. It
// strips leading/trailing whitespace and lower-cases the rest (e.g. "  ADD\n" -> "add").
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ToUpperCamel converts the string to upper camel-cased.
func ToUpperCamel(value string) string {
	// This is a shitty implementation.
	if value == "" {
		return ""
	}
	firstChar := value[0:1]
	return strings.ToUpper(firstChar) + value[1:]
}
