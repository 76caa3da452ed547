package packageanalyzer

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-check-elider/pkg/analysis/rules"
)

// Analyzer answers package-level questions about a loaded program, chiefly
// which module it belongs to.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a new package analyzer
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// ExtractAllPackages returns the sorted paths of all packages in the SSA
// program.
func (a *Analyzer) ExtractAllPackages(ssaProgram *ssa.Program) []string {
	var packages []string
	if ssaProgram != nil {
		for _, pkg := range ssaProgram.AllPackages() {
			if pkg.Pkg != nil {
				packages = append(packages, pkg.Pkg.Path())
			}
		}
	}
	sort.Strings(packages)
	a.logger.Debug("extracted packages", "count", len(packages))
	return packages
}

// ExtractMainModuleName names the program: the module path from the nearest
// go.mod at or above dir, else the first user package of the SSA program,
// else fallback.
func (a *Analyzer) ExtractMainModuleName(ssaProgram *ssa.Program, dir, fallback string) string {
	if moduleName := a.FindModuleNameFromGoMod(dir); moduleName != "" {
		return moduleName
	}

	if ssaProgram == nil {
		return fallback
	}

	for _, path := range a.ExtractAllPackages(ssaProgram) {
		if rules.IsUserDefinedPackageByPattern(path) {
			return path
		}
	}

	return fallback
}

// FindModuleNameFromGoMod walks up from dir (the working directory when
// empty) and returns the module path of the first go.mod found.
func (a *Analyzer) FindModuleNameFromGoMod(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if content, err := os.ReadFile(goModPath); err == nil {
			parsed, err := modfile.Parse(goModPath, content, nil)
			if err == nil && parsed.Module != nil {
				return parsed.Module.Mod.Path
			}
			a.logger.Debug("unparseable go.mod", "path", goModPath, "error", err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
