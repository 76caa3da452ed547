package rules

import (
	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
)

// Classifier answers the configuration-driven questions the pipeline asks
// about packages, functions and callees.
type Classifier struct {
	policy *ClassificationPolicy
}

// NewClassifier creates a new classifier with the given configuration
func NewClassifier(contextConfig *config.ContextAwareConfig, baseConfig *config.Config) *Classifier {
	return &Classifier{
		policy: NewClassificationPolicy(contextConfig, baseConfig),
	}
}

// IsUserDefinedFunction determines if a function is user-defined (vs stdlib/dependency)
func (c *Classifier) IsUserDefinedFunction(fn *ssa.Function) bool {
	if fn == nil || fn.Pkg == nil || fn.Pkg.Pkg == nil {
		return false
	}
	return c.policy.IsUserDefinedPackage(fn.Pkg.Pkg.Path())
}

// IsUserDefinedPackage checks if a package is user-defined
func (c *Classifier) IsUserDefinedPackage(packagePath string) bool {
	return c.policy.IsUserDefinedPackage(packagePath)
}

// SetAdditionalEntryPoints configures additional entry point patterns
func (c *Classifier) SetAdditionalEntryPoints(entryPoints []string) {
	c.policy.SetAdditionalEntryPoints(entryPoints)
}

// IsEntryPoint determines if a function is an entry point
func (c *Classifier) IsEntryPoint(fn *ssa.Function) bool {
	return c.policy.IsEntryPoint(fn)
}

// IsAbortingCall reports whether a call to callee reports a failed check and
// does not return.
func (c *Classifier) IsAbortingCall(callee string) bool {
	return c.policy.IsAbortingCall(callee)
}

// IsHeapAllocation reports whether callee returns freshly allocated heap
// memory.
func (c *Classifier) IsHeapAllocation(callee string) bool {
	return c.policy.IsHeapAllocation(callee)
}
