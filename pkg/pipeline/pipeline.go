// Package pipeline runs check elision end to end: it turns each program
// unit into an ir program, finds and prices its checks, classifies them
// against the oracle and lets the engine rewrite the program.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-check-elider/pkg/analysis/checks"
	"github.com/smith-xyz/golang-check-elider/pkg/analysis/classifier"
	packageanalyzer "github.com/smith-xyz/golang-check-elider/pkg/analysis/package"
	"github.com/smith-xyz/golang-check-elider/pkg/analysis/resolver"
	"github.com/smith-xyz/golang-check-elider/pkg/analysis/rules"
	"github.com/smith-xyz/golang-check-elider/pkg/budget"
	"github.com/smith-xyz/golang-check-elider/pkg/callgraph"
	"github.com/smith-xyz/golang-check-elider/pkg/config"
	"github.com/smith-xyz/golang-check-elider/pkg/cost"
	"github.com/smith-xyz/golang-check-elider/pkg/elision"
	"github.com/smith-xyz/golang-check-elider/pkg/ir"
	"github.com/smith-xyz/golang-check-elider/pkg/lowering"
	"github.com/smith-xyz/golang-check-elider/pkg/models"
	"github.com/smith-xyz/golang-check-elider/pkg/oracle"
	"github.com/smith-xyz/golang-check-elider/pkg/utils"
)

// Options selects what a run analyzes.
type Options struct {
	// PackageSpec is a Go package pattern; ignored when ProgramFile is set.
	PackageSpec string
	// ProgramFile is a JSON program document to analyze instead of Go code.
	ProgramFile string
	// CoverProfile weights instruction costs by execution counts.
	CoverProfile string
	// AutoDiscover analyzes every main package as its own unit.
	AutoDiscover bool
	// Parallel bounds how many units run at once; zero means GOMAXPROCS.
	Parallel int
	Verbose  bool
}

// Result is one analyzed program: its outcome and the rewritten graph.
type Result struct {
	Outcome *models.ElisionOutcome
	Program *ir.Program
}

// Pipeline holds what every unit of a run shares.
type Pipeline struct {
	logger    *slog.Logger
	cfg       *config.Config
	policy    *budget.Policy
	connector oracle.Connector
	instr     *utils.Instrumentation
}

// New validates cfg and creates a pipeline. The connector may be nil only
// when classification is disabled.
func New(logger *slog.Logger, cfg *config.Config, connector oracle.Connector) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	if cfg.Classifier.Enabled && connector == nil {
		return nil, fmt.Errorf("classification is enabled but no oracle connector is available")
	}

	return &Pipeline{
		logger:    logger,
		cfg:       cfg,
		policy:    policy,
		connector: connector,
		instr:     utils.NewInstrumentation(logger),
	}, nil
}

// Policy returns the budget policy every unit runs under.
func (p *Pipeline) Policy() *budget.Policy { return p.policy }

// Run analyzes every unit named by opts and returns results in unit order.
// A failing unit fails the run; units already rewritten are not rolled back.
func (p *Pipeline) Run(ctx context.Context, opts Options) ([]Result, error) {
	counter, err := p.counter(opts.CoverProfile)
	if err != nil {
		return nil, err
	}

	if opts.ProgramFile != "" {
		var result Result
		err := p.instr.TimedOperation("program "+opts.ProgramFile, func() error {
			loaded, err := ir.NewLoader(opts.Verbose).LoadFromFile(opts.ProgramFile)
			if err != nil {
				return err
			}
			outcome, err := p.Elide(ctx, loaded.Program, loaded.Costs, counter)
			if err != nil {
				return err
			}
			result = Result{Outcome: outcome, Program: loaded.Program}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return []Result{result}, nil
	}

	units, err := Units(p.cfg, opts.PackageSpec, opts.AutoDiscover)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Resolved program units", "count", len(units))

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, unit := range units {
		g.Go(func() error {
			return p.instr.TimedOperation("unit "+unit.Pattern, func() error {
				program, err := p.Lower(unit)
				if err != nil {
					return fmt.Errorf("unit %s: %w", unit.Pattern, err)
				}
				outcome, err := p.Elide(gctx, program, nil, counter)
				if err != nil {
					return fmt.Errorf("unit %s: %w", unit.Pattern, err)
				}
				results[i] = Result{Outcome: outcome, Program: program}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) counter(coverProfile string) (cost.Counter, error) {
	if coverProfile == "" {
		return nil, nil
	}
	counter, err := cost.LoadCoverProfile(coverProfile)
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// rules builds the configuration-driven classifier for a program rooted at
// rootPackage.
func (p *Pipeline) rules(rootPackage string) *rules.Classifier {
	r := rules.NewClassifier(config.NewContextAwareConfig(p.cfg, rootPackage), p.cfg)
	r.SetAdditionalEntryPoints(p.cfg.Frontend.EntryPoints)
	return r
}

// Lower loads a Go unit, builds its call graph and lowers every reachable
// function of the program under analysis.
func (p *Pipeline) Lower(unit Unit) (*ir.Program, error) {
	analyzer := packageanalyzer.NewAnalyzer(p.logger)
	programID := unit.ProgramID
	if programID == "" {
		programID = analyzer.FindModuleNameFromGoMod(unit.Dir)
	}
	r := p.rules(programID)

	gen := callgraph.NewGenerator(p.logger, p.cfg, unit.Pattern)
	gen.SetDir(unit.Dir)
	gen.SetTargetPackageOnly(p.cfg.Frontend.TargetPackageOnly)
	if err := gen.SetAlgorithm(p.cfg.Frontend.Algorithm); err != nil {
		return nil, fmt.Errorf("failed to set call graph algorithm: %w", err)
	}
	gen.SetRootFilter(func(fn *ssa.Function) bool {
		return r.IsUserDefinedFunction(fn) && r.IsEntryPoint(fn)
	})

	result, err := gen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate call graph: %w", err)
	}
	if programID == "" {
		programID = analyzer.ExtractMainModuleName(result.Program, unit.Dir, unit.Pattern)
		r = p.rules(programID)
	}

	for _, ep := range callgraph.BuildEntryPoints(result) {
		p.logger.Debug("Analysis root", "program", programID, "function", ep.ID, "type", ep.Type, "reachable", ep.Reachable)
	}

	var user []*ssa.Function
	for _, fn := range callgraph.Reachable(result.Graph, result.Roots) {
		if r.IsUserDefinedFunction(fn) {
			user = append(user, fn)
		}
	}
	p.logger.Debug("Selected functions to lower", "program", programID, "functions", len(user))

	l := lowering.New(p.logger, programID, result.Fset())
	program := l.LowerAll(user)
	stats := l.Stats()
	p.logger.Debug("Lowered functions",
		"program", programID,
		"functions", stats.Functions,
		"blocks", stats.Blocks,
		"bounds_checks", stats.BoundsChecks,
		"elided_statically", stats.ElidedStatically)
	return program, nil
}

// Elide finds, prices, classifies and removes the checks of program.
// known holds costs supplied with the program; they take precedence over the
// cost model.
func (p *Pipeline) Elide(ctx context.Context, program *ir.Program, known map[ir.ValueID]uint64, counter cost.Counter) (*models.ElisionOutcome, error) {
	tracker := p.instr.NewPhaseTracker(program.ProgramID())
	r := p.rules(program.ProgramID())

	tracker.StartPhase("discover")
	found := checks.NewFinder(p.logger, r).Discover(program)

	tracker.StartPhase("cost")
	model, err := cost.NewModel(p.logger, p.cfg.Cost, counter)
	if err != nil {
		return nil, err
	}
	entries, err := model.Entries(program, found, known)
	if err != nil {
		return nil, err
	}

	tracker.StartPhase("elide")
	timeout, err := p.cfg.OracleTimeout()
	if err != nil {
		return nil, err
	}
	var connector oracle.Connector
	if p.cfg.Classifier.Enabled {
		connector = p.connector
	}
	cls := classifier.New(p.logger, program.ProgramID(), resolver.New(p.logger, program, r), connector, timeout)
	p.logger.Debug("Eliding checks", "program", program.ProgramID(), "checks", len(entries),
		"budget", p.policy.Mode(), "classify", cls.Enabled())
	outcome, err := elision.New(p.logger, program, p.policy, cls).Run(ctx, entries)
	if err != nil {
		return nil, err
	}

	tracker.Complete(len(found))
	return outcome, nil
}
