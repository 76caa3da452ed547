package rules

import (
	"fmt"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// GenerateFunctionID creates a consistent function identifier
func GenerateFunctionID(fn *ssa.Function) string {
	if fn.Pkg != nil && fn.Pkg.Pkg != nil {
		if recv := fn.Signature.Recv(); recv != nil {
			return fmt.Sprintf("(%s).%s", recv.Type().String(), fn.Name())
		}
		return fmt.Sprintf("%s.%s", fn.Pkg.Pkg.Path(), fn.Name())
	}
	return fn.String()
}

// MatchesEntryPointPattern checks if function matches entry point patterns
func MatchesEntryPointPattern(functionName string, patterns []string) bool {
	for _, pattern := range patterns {
		if MatchesPattern(functionName, pattern) {
			return true
		}
	}
	return false
}

// MatchesPattern checks if a string matches given patterns
func MatchesPattern(str string, pattern string) bool {
	// Handle exact matches
	if str == pattern {
		return true
	}

	// Handle simple wildcard patterns
	if strings.Contains(pattern, "*") {
		// Special case: single wildcard matches everything
		if pattern == "*" {
			return true
		}

		if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
			// Pattern like "*User*" - contains match
			if len(pattern) == 2 { // Pattern is "**" - matches everything
				return true
			}
			middle := pattern[1 : len(pattern)-1]
			return strings.Contains(str, middle)
		} else if strings.HasPrefix(pattern, "*") {
			// Pattern like "*User" - suffix match
			suffix := pattern[1:]
			return strings.HasSuffix(str, suffix)
		} else if strings.HasSuffix(pattern, "*") {
			// Pattern like "Get*" - prefix match
			prefix := pattern[:len(pattern)-1]
			return strings.HasPrefix(str, prefix)
		}
	}

	return false
}
