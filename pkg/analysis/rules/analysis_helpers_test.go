package rules

import (
	"testing"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
)

// TestMatchesPattern tests the pattern matching utility (basic cases)
func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		str     string
		pattern string
		want    bool
	}{
		{"main", "main", true},
		{"TestMain", "Test*", true},
		{"testhelper", "test*", true},
		{"helper", "test*", false},
		{"github.com/example", "github.com/*", true},
		{"internal/pkg", "internal/*", true},
		{"external/pkg", "internal/*", false},
		{"", "", true},
		{"different", "main", false},
	}

	for _, tt := range tests {
		t.Run(tt.str+"_matches_"+tt.pattern, func(t *testing.T) {
			got := MatchesPattern(tt.str, tt.pattern)
			if got != tt.want {
				t.Errorf("MatchesPattern(%q, %q) = %v, want %v", tt.str, tt.pattern, got, tt.want)
			}
		})
	}
}

// TestMatchesPattern_WildcardCases tests the wildcard pattern behavior
func TestMatchesPattern_WildcardCases(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		pattern string
		want    bool
	}{
		// Single wildcard should match everything
		{"wildcard matches anything", "anything", "*", true},
		{"wildcard matches empty", "", "*", true},
		{"wildcard matches complex", "very/complex/path", "*", true},

		// Suffix patterns (starting with *)
		{"suffix match", "TestMain", "*Main", true},
		{"suffix match 2", "helper", "*er", true},
		{"suffix mismatch", "TestMain", "*Test", false},

		// Contains patterns (*word*)
		{"contains match", "TestMainHelper", "*Main*", true},
		{"contains mismatch", "TestHelper", "*Main*", false},
		{"contains empty middle", "anything", "**", true}, // Edge case: ** should match anything
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesPattern(tt.str, tt.pattern)
			if got != tt.want {
				t.Errorf("MatchesPattern(%q, %q) = %v, want %v", tt.str, tt.pattern, got, tt.want)
			}
		})
	}
}

// TestMatchesEntryPointPattern tests entry point pattern matching
func TestMatchesEntryPointPattern(t *testing.T) {
	patterns := []string{
		"main",
		"Test*",
		"Benchmark*",
		"init",
	}

	tests := []struct {
		functionName string
		want         bool
	}{
		{"main", true},
		{"TestSomething", true},
		{"BenchmarkSomething", true},
		{"init", true},
		{"helper", false},
		{"normalFunction", false},
		{"testhelper", false}, // lowercase doesn't match Test*
	}

	for _, tt := range tests {
		t.Run(tt.functionName, func(t *testing.T) {
			got := MatchesEntryPointPattern(tt.functionName, patterns)
			if got != tt.want {
				t.Errorf("MatchesEntryPointPattern(%q, %v) = %v, want %v", tt.functionName, patterns, got, tt.want)
			}
		})
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Checks: config.ChecksConfig{
			OptimizeSanityChecks: true,
			OptimizeAssertions:   true,
			AssertionFunctions:   []string{"__assert_fail", "panic"},
			SanityHandlers: []config.SanityHandler{
				{Prefix: "__ubsan_", Suffix: "_abort"},
				{Prefix: "__asan_report_"},
				{Prefix: "runtime.panic"},
			},
		},
		Memory: config.MemoryConfig{HeapAllocationFunctions: []string{"malloc", "runtime.newobject"}},
	}
}

func TestIsAbortingCall(t *testing.T) {
	tests := []struct {
		name       string
		callee     string
		sanity     bool
		assertions bool
		want       bool
	}{
		{"ubsan handler", "__ubsan_handle_out_of_bounds_abort", true, true, true},
		{"ubsan handler without abort suffix", "__ubsan_handle_out_of_bounds", true, true, false},
		{"asan report", "__asan_report_load8", true, true, true},
		{"go bounds panic", "runtime.panicIndex", true, true, true},
		{"assertion", "__assert_fail", true, true, true},
		{"go panic builtin", "panic", true, true, true},
		{"ordinary call", "fmt.Println", true, true, false},
		{"empty callee", "", true, true, false},
		{"sanity checks disabled", "__asan_report_load8", false, true, false},
		{"assertions disabled", "__assert_fail", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Checks.OptimizeSanityChecks = tt.sanity
			cfg.Checks.OptimizeAssertions = tt.assertions
			c := NewClassifier(nil, cfg)
			if got := c.IsAbortingCall(tt.callee); got != tt.want {
				t.Errorf("IsAbortingCall(%q) = %v, want %v", tt.callee, got, tt.want)
			}
		})
	}
}

func TestIsHeapAllocation(t *testing.T) {
	c := NewClassifier(nil, testConfig())
	if !c.IsHeapAllocation("malloc") {
		t.Error("IsHeapAllocation(malloc) = false, want true")
	}
	if c.IsHeapAllocation("alloca") {
		t.Error("IsHeapAllocation(alloca) = true, want false")
	}
	if NewClassifier(nil, nil).IsHeapAllocation("malloc") {
		t.Error("classifier without config reported a heap allocation")
	}
}

func TestIsUserDefinedPackage(t *testing.T) {
	cfg := testConfig()
	cfg.Packages = config.PackageConfig{
		StdlibPatterns:     []string{"fmt", "os"},
		DependencyPatterns: []string{"github.com/"},
	}

	tests := []struct {
		name string
		root string
		pkg  string
		want bool
	}{
		{"stdlib", "", "fmt", false},
		{"dependency", "", "github.com/other/lib", false},
		{"root package", "github.com/acme/app", "github.com/acme/app/internal/x", true},
		{"other module with root set", "github.com/acme/app", "github.com/other/lib", false},
		{"no root local package", "", "example.local/app", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(config.NewContextAwareConfig(cfg, tt.root), cfg)
			if got := c.IsUserDefinedPackage(tt.pkg); got != tt.want {
				t.Errorf("IsUserDefinedPackage(%q) = %v, want %v", tt.pkg, got, tt.want)
			}
		})
	}
}

func TestIsStandardLibraryByPattern(t *testing.T) {
	tests := map[string]bool{
		"fmt":                  true,
		"net/http":             true,
		"main":                 false,
		"github.com/acme/app":  false,
		"example.com/internal": false,
	}
	for in, want := range tests {
		if got := IsStandardLibraryByPattern(in); got != want {
			t.Errorf("IsStandardLibraryByPattern(%q) = %v, want %v", in, got, want)
		}
	}
}
