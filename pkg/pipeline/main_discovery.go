package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
)

// MainFunctionInfo represents information about a discovered main function
type MainFunctionInfo struct {
	PackagePath string // Full package path (e.g., "github.com/example/project/cmd/controller")
	FilePath    string // Absolute path to main.go file
	Directory   string // Directory containing the main.go file
}

// Unit is one program analyzed and rewritten independently of the others.
type Unit struct {
	// ProgramID names the program towards the oracle. Empty means the
	// module path of the nearest go.mod.
	ProgramID string
	Dir       string
	Pattern   string
}

// DiscoverMainFunctions discovers all main.go files in a project and returns their info
func DiscoverMainFunctions(basePath string) ([]MainFunctionInfo, error) {
	var mainFunctions []MainFunctionInfo

	if _, err := os.Stat(basePath); err != nil {
		return nil, err
	}

	moduleName, err := getModuleName(basePath)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() && path != basePath && skipDir(info.Name()) {
			return filepath.SkipDir
		}

		if !info.IsDir() && info.Name() == "main.go" {
			dir := filepath.Dir(path)

			relPath, err := filepath.Rel(basePath, dir)
			if err != nil {
				return err
			}

			packagePath := moduleName
			if relPath != "." {
				packagePath = moduleName + "/" + filepath.ToSlash(relPath)
			}

			mainFunctions = append(mainFunctions, MainFunctionInfo{
				PackagePath: packagePath,
				FilePath:    path,
				Directory:   dir,
			})
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return mainFunctions, nil
}

// skipDir reports directories the go tool ignores, plus vendor trees.
func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// getModuleName reads the go.mod file and extracts the module name
func getModuleName(basePath string) (string, error) {
	goModPath := filepath.Clean(filepath.Join(basePath, "go.mod"))
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return "", err
	}

	moduleName := modfile.ModulePath(content)
	if moduleName == "" {
		return "", fmt.Errorf("module name not found in go.mod")
	}
	return moduleName, nil
}

// Units splits a package spec into program units. With auto-discovery,
// every main package of the module becomes its own unit; otherwise, or when
// at most one main exists, the whole pattern is a single unit.
func Units(cfg *config.Config, packageSpec string, autoDiscover bool) ([]Unit, error) {
	workingDir, targetPackage, err := resolvePackageToDirectory(cfg, packageSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package %s: %w", packageSpec, err)
	}

	single := []Unit{{Dir: workingDir, Pattern: targetPackage}}
	if !autoDiscover {
		return single, nil
	}

	mainFunctions, err := DiscoverMainFunctions(workingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to discover main functions: %w", err)
	}
	if len(mainFunctions) <= 1 {
		return single, nil
	}

	units := make([]Unit, 0, len(mainFunctions))
	for _, mf := range mainFunctions {
		units = append(units, Unit{ProgramID: mf.PackagePath, Dir: workingDir, Pattern: mf.PackagePath})
	}
	return units, nil
}

// resolvePackageToDirectory returns the directory packages are loaded from
// and the pattern to load. Standard library and third-party packages are
// rejected: their checks cannot be rewritten from here.
func resolvePackageToDirectory(cfg *config.Config, packageSpec string) (workingDir string, targetPackage string, err error) {
	if packageSpec == "" {
		packageSpec = "."
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}

	if packageSpec[0] == '.' || filepath.IsAbs(packageSpec) {
		return wd, packageSpec, nil
	}

	pkg := packageSpec
	if idx := strings.Index(packageSpec, "@"); idx != -1 {
		pkg = packageSpec[:idx]
	}

	if cfg.IsStandardLibrary(pkg) {
		return "", "", fmt.Errorf("standard library packages are not supported: %s", packageSpec)
	}

	if rootPackage, err := getModuleName(wd); err == nil {
		contextAware := config.NewContextAwareConfig(cfg, rootPackage)
		if contextAware.IsUserDefined(strings.TrimSuffix(pkg, "/...")) {
			return wd, pkg, nil
		}
	}

	if cfg.IsDependency(pkg) {
		return "", "", fmt.Errorf("external packages are not supported: %s", packageSpec)
	}
	return wd, pkg, nil
}
