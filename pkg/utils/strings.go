package utils

import "strings"

// ParseCommaDelimited splits a comma-delimited flag value into trimmed,
// non-empty items.
func ParseCommaDelimited(input string) []string {
	if input == "" {
		return nil
	}

	var result []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// HasAnyPrefix reports whether s starts with one of the prefixes.
func HasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// ContainsString reports whether items contains s.
func ContainsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
