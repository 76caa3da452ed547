package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCommaDelimited(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty input", "", nil},
		{"single item", "a.json", []string{"a.json"}},
		{"spaces and empties", " a.json, ,b.json ,", []string{"a.json", "b.json"}},
		{"only separators", ",,,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCommaDelimited(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, result)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("Item %d: expected %q, got %q", i, tt.expected[i], result[i])
				}
			}
		})
	}
}

func TestHasAnyPrefix(t *testing.T) {
	prefixes := []string{"__asan_report_", "__ubsan_"}
	if !HasAnyPrefix("__asan_report_load4", prefixes) {
		t.Error("Expected __asan_report_load4 to match")
	}
	if HasAnyPrefix("memcpy", prefixes) {
		t.Error("Expected memcpy not to match")
	}
	if HasAnyPrefix("anything", nil) {
		t.Error("Expected no match with no prefixes")
	}
}

func TestContainsString(t *testing.T) {
	if !ContainsString([]string{"malloc", "calloc"}, "calloc") {
		t.Error("Expected calloc to be found")
	}
	if ContainsString([]string{"malloc"}, "mall") {
		t.Error("Expected partial name not to match")
	}
}

func TestSafeCreateFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "report.json")

	file, err := SafeCreateFile(target)
	if err != nil {
		t.Fatalf("SafeCreateFile failed: %v", err)
	}
	file.Close()

	if !FileExists(target) {
		t.Errorf("Expected %s to exist", target)
	}

	if _, err := SafeCreateFile("../outside.json"); err == nil {
		t.Error("Expected traversal path to be rejected")
	}
}

func TestFileExists(t *testing.T) {
	if FileExists("") {
		t.Error("Empty path should not exist")
	}
	dir := t.TempDir()
	if FileExists(dir) {
		t.Error("Directories are not files")
	}
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("Expected file to exist")
	}
}

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer

	verboseLogger := &VerboseLogger{verbose: true, out: &buf}
	verboseLogger.Logf("checks: %d\n", 3)
	verboseLogger.DebugLogf("cost %d\n", 7)
	if !strings.Contains(buf.String(), "checks: 3") || !strings.Contains(buf.String(), "[DEBUG] cost 7") {
		t.Errorf("Unexpected verbose output: %q", buf.String())
	}

	buf.Reset()
	quiet := &VerboseLogger{verbose: false, out: &buf}
	quiet.Logf("should not appear")
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
	if quiet.IsVerbose() {
		t.Error("Expected non-verbose logger")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Debug output should be suppressed, got %q", buf.String())
	}

	NewLoggerTo(&buf, true).Debug("shown", "check", "c1")
	if !strings.Contains(buf.String(), "check=c1") {
		t.Errorf("Expected debug output, got %q", buf.String())
	}
}

func TestTimedOperationPropagatesError(t *testing.T) {
	var buf bytes.Buffer
	instr := NewInstrumentation(NewLoggerTo(&buf, true))

	want := errors.New("oracle down")
	if err := instr.TimedOperation("classify", func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
	if !strings.Contains(buf.String(), "Operation failed") {
		t.Errorf("Expected failure to be logged, got %q", buf.String())
	}

	tracker := instr.NewPhaseTracker("unit")
	tracker.StartPhase("simulate")
	tracker.StartPhase("elide")
	tracker.Complete(2)
	if !strings.Contains(buf.String(), "phase=simulate") {
		t.Errorf("Expected phase logging, got %q", buf.String())
	}
}
