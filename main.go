package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
	"github.com/smith-xyz/golang-check-elider/pkg/ir"
	"github.com/smith-xyz/golang-check-elider/pkg/models"
	"github.com/smith-xyz/golang-check-elider/pkg/output"
	"github.com/smith-xyz/golang-check-elider/pkg/pipeline"
	"github.com/smith-xyz/golang-check-elider/pkg/utils"
	"github.com/smith-xyz/golang-check-elider/pkg/version"
)

var (
	sanityLevel        = flag.Float64("sanity-level", 0, "Fraction of static checks to preserve (0..1)")
	costLevel          = flag.Float64("cost-level", 0, "Fraction of dynamic check cost to preserve (0..1)")
	costThreshold      = flag.Uint64("asap-cost-threshold", 0, "Remove every check whose cost is at least this value")
	printRemoved       = flag.Bool("print-removed-checks", false, "List every removed check in the report")
	configFile         = flag.String("config", "", "Path to a TOML config file overlaid on the defaults")
	programFile        = flag.String("program", "", "Analyze a JSON program document instead of Go packages")
	packagePath        = flag.String("package", ".", "Go package pattern to analyze")
	autoDiscover       = flag.Bool("auto-discover", false, "Analyze every main package of the module as its own program")
	coverProfile       = flag.String("coverprofile", "", "Go coverage profile weighting instruction costs by execution count")
	oracleBackend      = flag.String("oracle", "", "Oracle backend override (neo4j, sqlite, file, none; none also disables classification)")
	oraclePath         = flag.String("oracle-path", "", "Attack graph file or database for the file and sqlite backends")
	importAttackGraph  = flag.String("import-attack-graph", "", "Import attack-graph records (JSON) into the sqlite database at -oracle-path and exit")
	format             = flag.String("format", "", "Report format (text, json)")
	outputFile         = flag.String("o", "", "Write the report to this file instead of stdout")
	emitDir            = flag.String("emit-dir", "", "Write every rewritten program as a JSON program document into this directory")
	entryPoints        = flag.String("entry-points", "", "Comma-separated list of additional entry point patterns")
	algorithm          = flag.String("algo", "", "Call graph algorithm (rta, cha, static, vta)")
	parallel           = flag.Int("parallel", 0, "Number of programs analyzed concurrently (0 = GOMAXPROCS)")
	verbose            = flag.Bool("v", false, "Verbose output")
	showVersion        = flag.Bool("version", false, "Show version information and exit")
	disableClassifying = flag.Bool("no-classify", false, "Decide on cost and budget alone, without the oracle")
)

func main() {
	flag.Parse()

	if *showVersion {
		if *verbose {
			fmt.Println(version.GetFullVersionString())
		} else {
			fmt.Println(version.GetVersionWithCommit())
		}
		os.Exit(0)
	}

	if err := run(); err != nil {
		log.Fatalf("Check elision failed: %v", err)
	}
}

func run() error {
	logger := utils.NewLogger(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *importAttackGraph != "" {
		if cfg.Oracle.Path == "" {
			return fmt.Errorf("-import-attack-graph needs a database path (-oracle-path or [oracle] path)")
		}
		_, err := pipeline.ImportAttackGraph(ctx, logger, *importAttackGraph, cfg.Oracle.Path)
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	connector, err := pipeline.NewConnector(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to open oracle: %w", err)
	}
	if connector != nil {
		defer func() {
			if err := connector.Close(context.Background()); err != nil {
				logger.Warn("Failed to close oracle", "error", err)
			}
		}()
	}

	p, err := pipeline.New(logger, cfg, connector)
	if err != nil {
		return err
	}

	results, err := p.Run(ctx, pipeline.Options{
		PackageSpec:  *packagePath,
		ProgramFile:  *programFile,
		CoverProfile: *coverProfile,
		AutoDiscover: *autoDiscover,
		Parallel:     *parallel,
		Verbose:      *verbose,
	})
	if err != nil {
		return err
	}

	outcomes := make([]*models.ElisionOutcome, 0, len(results))
	programs := make([]*ir.Program, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, r.Outcome)
		programs = append(programs, r.Program)
	}

	if *emitDir != "" {
		paths, err := output.WritePrograms(*emitDir, programs)
		if err != nil {
			return fmt.Errorf("failed to write rewritten programs: %w", err)
		}
		logger.Info("Wrote rewritten programs", "dir", *emitDir, "count", len(paths))
	}

	report := output.NewReport(p.Policy().String(), outcomes)
	generator := output.NewReportGenerator(logger, cfg.Report.Format, cfg.Report.PrintRemovedChecks)
	return generator.Generate(report, *outputFile)
}

// loadConfig reads the configuration and applies command-line overrides.
// Budget flags given on the command line replace every budget parameter of
// the configuration files.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFromFile(*configFile)
	} else {
		cfg, err = config.DefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var budget config.BudgetConfig
	budgetSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sanity-level":
			v := *sanityLevel
			budget.SanityLevel = &v
			budgetSet = true
		case "cost-level":
			v := *costLevel
			budget.CostLevel = &v
			budgetSet = true
		case "asap-cost-threshold":
			v := *costThreshold
			budget.CostThreshold = &v
			budgetSet = true
		case "print-removed-checks":
			cfg.Report.PrintRemovedChecks = *printRemoved
		case "oracle":
			cfg.SetOracleBackend(*oracleBackend)
		case "oracle-path":
			cfg.Oracle.Path = *oraclePath
		case "format":
			cfg.Report.Format = *format
		case "algo":
			cfg.Frontend.Algorithm = *algorithm
		case "entry-points":
			cfg.Frontend.EntryPoints = append(cfg.Frontend.EntryPoints, utils.ParseCommaDelimited(*entryPoints)...)
		case "no-classify":
			if *disableClassifying {
				cfg.SetOracleBackend(config.BackendNone)
			}
		}
	})
	if budgetSet {
		cfg.Budget = budget
	}
	return cfg, nil
}
