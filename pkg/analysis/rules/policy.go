package rules

import (
	"strings"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
	"github.com/smith-xyz/golang-check-elider/pkg/utils"
	"golang.org/x/tools/go/ssa"
)

// ClassificationPolicy encapsulates all configuration-driven classification decisions
type ClassificationPolicy struct {
	contextConfig         *config.ContextAwareConfig
	baseConfig            *config.Config
	additionalEntryPoints []string
}

// NewClassificationPolicy creates a policy with the given configuration
func NewClassificationPolicy(contextConfig *config.ContextAwareConfig, baseConfig *config.Config) *ClassificationPolicy {
	if baseConfig == nil && contextConfig != nil {
		baseConfig = contextConfig.Config
	}
	return &ClassificationPolicy{
		contextConfig:         contextConfig,
		baseConfig:            baseConfig,
		additionalEntryPoints: make([]string, 0),
	}
}

// SetAdditionalEntryPoints configures additional entry point patterns
func (p *ClassificationPolicy) SetAdditionalEntryPoints(entryPoints []string) {
	if entryPoints == nil {
		p.additionalEntryPoints = make([]string, 0)
	} else {
		p.additionalEntryPoints = entryPoints
	}
}

// IsUserDefinedPackage determines if a package is user-defined using policy rules
func (p *ClassificationPolicy) IsUserDefinedPackage(packagePath string) bool {
	// Use context-aware config first (most accurate)
	if p.contextConfig != nil {
		return p.contextConfig.IsUserDefined(packagePath)
	}

	// Without a project root, anything that is neither stdlib nor a
	// dependency counts.
	return !p.IsStandardLibrary(packagePath) && !p.IsDependency(packagePath)
}

// IsStandardLibrary determines if a package is stdlib using policy rules
func (p *ClassificationPolicy) IsStandardLibrary(packagePath string) bool {
	if p.baseConfig != nil {
		return p.baseConfig.IsStandardLibrary(packagePath)
	}
	return IsStandardLibraryByPattern(packagePath)
}

// IsDependency determines if a package is a dependency using policy rules
func (p *ClassificationPolicy) IsDependency(packagePath string) bool {
	if p.baseConfig != nil {
		return p.baseConfig.IsDependency(packagePath)
	}
	return IsDependencyByPattern(packagePath)
}

// IsAbortingCall matches callee against the sanitizer handlers and assertion
// functions. Each family only counts while its optimize flag is set.
func (p *ClassificationPolicy) IsAbortingCall(callee string) bool {
	if p.baseConfig == nil || callee == "" {
		return false
	}
	checks := p.baseConfig.Checks

	if checks.OptimizeSanityChecks {
		for _, h := range checks.SanityHandlers {
			if h.Prefix == "" && h.Suffix == "" {
				continue
			}
			if strings.HasPrefix(callee, h.Prefix) && strings.HasSuffix(callee, h.Suffix) &&
				len(callee) >= len(h.Prefix)+len(h.Suffix) {
				return true
			}
		}
	}

	if checks.OptimizeAssertions {
		return utils.ContainsString(checks.AssertionFunctions, callee)
	}
	return false
}

// IsHeapAllocation reports whether callee is a configured heap allocator.
func (p *ClassificationPolicy) IsHeapAllocation(callee string) bool {
	if p.baseConfig == nil {
		return false
	}
	return utils.ContainsString(p.baseConfig.Memory.HeapAllocationFunctions, callee)
}

// ==============================================================================
// DETERMINISTIC CLASSIFICATION FUNCTIONS (No Config Dependencies)
// ==============================================================================

// IsUserDefinedPackageByPattern uses deterministic pattern matching (no config)
func IsUserDefinedPackageByPattern(packagePath string) bool {
	// If it's not stdlib and not a known dependency pattern, assume it's user code
	return !IsStandardLibraryByPattern(packagePath) && !IsDependencyByPattern(packagePath)
}

// IsStandardLibraryByPattern uses deterministic stdlib detection (no config)
func IsStandardLibraryByPattern(packagePath string) bool {
	if packagePath == "main" || strings.HasPrefix(packagePath, "command-line-arguments") {
		return false
	}
	// Standard library import paths never contain a dot in the first element.
	first, _, _ := strings.Cut(packagePath, "/")
	return !strings.Contains(first, ".")
}

func IsDependencyByPattern(packagePath string) bool {
	dependencyPrefixes := []string{
		"github.com/", "gitlab.com/", "bitbucket.org/", "golang.org/x/",
		"google.golang.org/", "gopkg.in/", "go.uber.org/", "k8s.io/",
		"sigs.k8s.io/", "cloud.google.com/", "gocloud.dev/",
	}
	return utils.HasAnyPrefix(packagePath, dependencyPrefixes)
}

// IsEntryPoint determines if a function is an entry point, considering both standard and additional entry points
func (p *ClassificationPolicy) IsEntryPoint(fn *ssa.Function) bool {
	if fn == nil {
		return false
	}

	// Check standard entry points first
	if fn.Name() == "main" && fn.Pkg != nil && fn.Pkg.Pkg.Name() == "main" {
		return true
	}

	if fn.Name() == "init" {
		return true
	}

	if MatchesEntryPointPattern(fn.Name(), p.additionalEntryPoints) {
		return true
	}

	// Patterns may also name a function by its package path.
	if fn.Pkg != nil && fn.Pkg.Pkg != nil {
		return utils.ContainsString(p.additionalEntryPoints, fn.Pkg.Pkg.Path()+"."+fn.Name())
	}
	return false
}
