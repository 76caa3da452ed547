package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smith-xyz/golang-check-elider/pkg/ir"
)

// WritePrograms writes one program document per program into dir and
// returns the paths written, in program order.
func WritePrograms(dir string, programs []*ir.Program) ([]string, error) {
	paths := make([]string, 0, len(programs))
	used := make(map[string]int)
	for _, p := range programs {
		name := ProgramFileName(p.ProgramID())
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		used[ProgramFileName(p.ProgramID())]++

		path := filepath.Join(dir, name+".json")
		if err := ir.WriteFile(path, p); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ProgramFileName turns a program id such as a module path into a file name.
func ProgramFileName(programID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, programID)
	name = strings.Trim(name, ".")
	if name == "" {
		return "program"
	}
	return name
}
