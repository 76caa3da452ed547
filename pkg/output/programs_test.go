package output

import (
	"path/filepath"
	"testing"

	"github.com/smith-xyz/golang-check-elider/pkg/ir"
)

func TestProgramFileName(t *testing.T) {
	tests := map[string]string{
		"github.com/acme/app/cmd/server": "github.com_acme_app_cmd_server",
		"demo":                           "demo",
		"..":                             "program",
		"":                               "program",
	}
	for in, want := range tests {
		if got := ProgramFileName(in); got != want {
			t.Errorf("ProgramFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWritePrograms(t *testing.T) {
	dir := t.TempDir()
	programs := []*ir.Program{ir.NewProgram("example.com/app/cmd/a"), ir.NewProgram("demo"), ir.NewProgram("demo")}

	paths, err := WritePrograms(dir, programs)
	if err != nil {
		t.Fatalf("WritePrograms() error = %v", err)
	}
	want := []string{"example.com_app_cmd_a.json", "demo.json", "demo-1.json"}
	if len(paths) != len(want) {
		t.Fatalf("WritePrograms() = %v, want %d paths", paths, len(want))
	}
	for i, name := range want {
		if paths[i] != filepath.Join(dir, name) {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], name)
		}
		loaded, err := ir.NewLoader(false).LoadFromFile(paths[i])
		if err != nil {
			t.Fatalf("LoadFromFile(%s) error = %v", paths[i], err)
		}
		if loaded.Program.ProgramID() != programs[i].ProgramID() {
			t.Errorf("%s holds %s, want %s", name, loaded.Program.ProgramID(), programs[i].ProgramID())
		}
	}
}
