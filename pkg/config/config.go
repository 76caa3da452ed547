package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/smith-xyz/golang-check-elider/pkg/budget"
	"github.com/smith-xyz/golang-check-elider/pkg/utils"
)

//go:embed default_config.toml
var embeddedConfigData []byte

// Supported oracle backends.
const (
	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendNone   = "none"
)

// Config holds the application configuration.
type Config struct {
	Budget     BudgetConfig     `toml:"budget"`
	Report     ReportConfig     `toml:"report"`
	Checks     ChecksConfig     `toml:"checks"`
	Memory     MemoryConfig     `toml:"memory"`
	Cost       CostConfig       `toml:"cost"`
	Classifier ClassifierConfig `toml:"classifier"`
	Oracle     OracleConfig     `toml:"oracle"`
	Frontend   FrontendConfig   `toml:"frontend"`
	Packages   PackageConfig    `toml:"packages"`
}

// BudgetConfig holds the three mutually exclusive budget parameters.
type BudgetConfig struct {
	SanityLevel   *float64 `toml:"sanity_level"`
	CostLevel     *float64 `toml:"cost_level"`
	CostThreshold *uint64  `toml:"cost_threshold"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	PrintRemovedChecks bool   `toml:"print_removed_checks"`
	Format             string `toml:"format"`
}

// SanityHandler matches the name of a sanitizer's error-reporting function.
type SanityHandler struct {
	Prefix string `toml:"prefix"`
	Suffix string `toml:"suffix"`
}

// ChecksConfig decides which error-reporting calls delimit checks.
type ChecksConfig struct {
	OptimizeSanityChecks bool            `toml:"optimize_sanity_checks"`
	OptimizeAssertions   bool            `toml:"optimize_assertions"`
	AssertionFunctions   []string        `toml:"assertion_functions"`
	SanityHandlers       []SanityHandler `toml:"sanity_handlers"`
}

// MemoryConfig lists functions whose results are heap memory.
type MemoryConfig struct {
	HeapAllocationFunctions []string `toml:"heap_allocation_functions"`
}

// CostConfig parameterizes the per-instruction cost model.
type CostConfig struct {
	MaxInstructionCost     uint64            `toml:"max_instruction_cost"`
	DefaultInstructionCost uint64            `toml:"default_instruction_cost"`
	KindCosts              map[string]uint64 `toml:"kind_costs"`
}

// ClassifierConfig toggles the exploitability-aware classification.
type ClassifierConfig struct {
	Enabled bool `toml:"enabled"`
}

// OracleConfig holds connection parameters for the exploitability oracle.
type OracleConfig struct {
	Backend   string `toml:"backend"`
	URI       string `toml:"uri"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	Path      string `toml:"path"`
	CacheSize int    `toml:"cache_size"`
	Timeout   string `toml:"timeout"`
}

// FrontendConfig configures the Go SSA frontend.
type FrontendConfig struct {
	Algorithm   string   `toml:"algorithm"`
	EntryPoints []string `toml:"entry_points"`

	// TargetPackageOnly builds SSA bodies for the target packages only;
	// dependencies stay declarations.
	TargetPackageOnly bool `toml:"target_package_only"`
}

// PackageConfig holds package classification patterns.
type PackageConfig struct {
	StdlibPatterns     []string `toml:"stdlib_patterns"`
	StdlibPrefixes     []string `toml:"stdlib_prefixes"`
	DependencyPatterns []string `toml:"dependency_patterns"`
	VendorPatterns     []string `toml:"vendor_patterns"`
}

// DefaultConfig returns the embedded configuration, overlaid with a local
// config.toml when one exists in the working directory.
func DefaultConfig() (*Config, error) {
	config, err := embeddedConfig()
	if err != nil {
		return nil, err
	}

	if utils.FileExists("config.toml") {
		if err := config.Overlay("config.toml"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load local config config.toml: %v\n", err)
		}
	}
	return config, nil
}

// LoadFromFile loads the embedded defaults and overlays the given TOML file.
func LoadFromFile(filepath string) (*Config, error) {
	config, err := embeddedConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Overlay(filepath); err != nil {
		return nil, err
	}
	return config, nil
}

func embeddedConfig() (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	return &config, nil
}

// Overlay decodes a TOML file on top of c. Keys absent from the file keep
// their current values.
func (c *Config) Overlay(filepath string) error {
	meta, err := toml.DecodeFile(filepath, c)
	if err != nil {
		return fmt.Errorf("failed to load config from %s: %w", filepath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("unknown keys in %s: %s", filepath, strings.Join(keys, ", "))
	}
	return nil
}

// Policy builds the budget policy. It fails unless exactly one budget
// parameter is set.
func (c *Config) Policy() (*budget.Policy, error) {
	return budget.New(c.Budget.SanityLevel, c.Budget.CostLevel, c.Budget.CostThreshold)
}

// SetOracleBackend overrides the oracle backend. Selecting BackendNone also
// turns classification off, so the run decides on cost and budget alone.
func (c *Config) SetOracleBackend(backend string) {
	c.Oracle.Backend = backend
	if backend == BackendNone {
		c.Classifier.Enabled = false
	}
}

// Validate checks the configuration for errors that must stop a run before
// any check is touched.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}

	switch c.Oracle.Backend {
	case BackendNeo4j, BackendSQLite, BackendFile, BackendNone:
	default:
		return fmt.Errorf("unsupported oracle backend %q", c.Oracle.Backend)
	}

	if c.Classifier.Enabled && c.Oracle.Backend == BackendNone {
		return fmt.Errorf("classification is enabled but no oracle backend is configured; set [classifier] enabled = false to run on cost alone")
	}
	if (c.Oracle.Backend == BackendSQLite || c.Oracle.Backend == BackendFile) && c.Oracle.Path == "" {
		return fmt.Errorf("oracle backend %q requires [oracle] path", c.Oracle.Backend)
	}
	if _, err := c.OracleTimeout(); err != nil {
		return err
	}

	switch c.Report.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported report format %q", c.Report.Format)
	}
	return nil
}

// OracleTimeout returns the per-query timeout; zero means none.
func (c *Config) OracleTimeout() (time.Duration, error) {
	if c.Oracle.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid oracle timeout %q: %w", c.Oracle.Timeout, err)
	}
	return d, nil
}

// IsStandardLibrary checks if a package is from the Go standard library.
func (c *Config) IsStandardLibrary(packagePath string) bool {
	for _, pattern := range c.Packages.StdlibPatterns {
		if packagePath == pattern || strings.HasPrefix(packagePath, pattern+"/") {
			return true
		}
	}
	return utils.HasAnyPrefix(packagePath, c.Packages.StdlibPrefixes)
}

// IsDependency checks if a package is a third-party dependency.
func (c *Config) IsDependency(packagePath string) bool {
	return utils.HasAnyPrefix(packagePath, c.Packages.VendorPatterns) ||
		utils.HasAnyPrefix(packagePath, c.Packages.DependencyPatterns)
}
