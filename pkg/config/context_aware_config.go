package config

import "strings"

// ContextAwareConfig wraps the base Config with the module being analyzed, so
// that packages of that module are never mistaken for dependencies.
type ContextAwareConfig struct {
	*Config
	RootPackage string
}

// NewContextAwareConfig binds cfg to the given root package
func NewContextAwareConfig(cfg *Config, rootPackage string) *ContextAwareConfig {
	return &ContextAwareConfig{Config: cfg, RootPackage: rootPackage}
}

// IsUserDefined reports whether a package belongs to the program under
// analysis. Without a root package, anything that is neither stdlib nor a
// dependency counts.
func (c *ContextAwareConfig) IsUserDefined(packagePath string) bool {
	if c.IsStandardLibrary(packagePath) {
		return false
	}
	if c.RootPackage != "" {
		return c.isLocalProjectPackage(packagePath)
	}
	return !c.IsDependency(packagePath)
}

func (c *ContextAwareConfig) isLocalProjectPackage(packagePath string) bool {
	return packagePath == c.RootPackage || strings.HasPrefix(packagePath, c.RootPackage+"/")
}
