package callgraph

import (
	"fmt"
	"go/token"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
)

// Algorithms lists the supported call graph algorithms.
var Algorithms = []string{"rta", "cha", "static", "vta"}

// RootFilter selects extra analysis roots besides main and init.
type RootFilter func(fn *ssa.Function) bool

// Result is a built SSA program with its call graph.
type Result struct {
	Graph    *callgraph.Graph
	Program  *ssa.Program
	Packages []*ssa.Package
	// Roots are the functions reachability starts from.
	Roots []*ssa.Function
}

// Fset returns the file set positions of the program refer to.
func (r *Result) Fset() *token.FileSet {
	return r.Program.Fset
}

// Generator loads a Go package pattern, builds its SSA form and computes a
// call graph over it.
type Generator struct {
	logger        *slog.Logger
	packagePath   string
	dir           string
	targetPkgOnly bool
	config        *config.Config
	algorithm     string
	extraRoots    RootFilter
	// targets are the packages the pattern matched directly.
	targets map[string]bool
}

// NewGenerator creates a new call graph generator. A nil cfg falls back to
// the default configuration.
func NewGenerator(logger *slog.Logger, cfg *config.Config, packagePath string) *Generator {
	if cfg == nil {
		var err error
		cfg, err = config.DefaultConfig()
		if err != nil {
			cfg = &config.Config{}
		}
	}

	return &Generator{
		logger:      logger,
		packagePath: packagePath,
		config:      cfg,
		algorithm:   "rta",
	}
}

// SetDir sets the directory packages are loaded from.
func (g *Generator) SetDir(dir string) {
	g.dir = dir
}

// SetTargetPackageOnly restricts SSA construction to the target package tree.
func (g *Generator) SetTargetPackageOnly(targetPkgOnly bool) {
	g.targetPkgOnly = targetPkgOnly
}

// SetRootFilter adds functions accepted by filter to the analysis roots.
func (g *Generator) SetRootFilter(filter RootFilter) {
	g.extraRoots = filter
}

// SetAlgorithm sets the call graph algorithm to use
func (g *Generator) SetAlgorithm(algorithm string) error {
	if algorithm == "" {
		algorithm = "rta"
	}

	for _, valid := range Algorithms {
		if algorithm == valid {
			g.algorithm = algorithm
			return nil
		}
	}
	return fmt.Errorf("unsupported call graph algorithm: %s. Supported algorithms: %s", algorithm, strings.Join(Algorithms, ", "))
}

// GetAlgorithm returns the currently configured call graph algorithm
func (g *Generator) GetAlgorithm() string {
	return g.algorithm
}

// Generate loads the packages, builds SSA and the call graph.
func (g *Generator) Generate() (*Result, error) {
	g.logger.Debug("loading packages", "pattern", g.packagePath, "dir", g.dir)

	cfg := &packages.Config{
		Mode: packages.LoadAllSyntax | packages.NeedDeps | packages.NeedImports | packages.NeedModule,
		Fset: token.NewFileSet(),
		Dir:  g.dir,
	}

	pkgs, err := packages.Load(cfg, g.packagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages matched %q", g.packagePath)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("errors encountered during package loading")
	}
	g.targets = make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		g.targets[pkg.PkgPath] = true
	}

	var prog *ssa.Program
	var ssaPkgs []*ssa.Package
	if g.targetPkgOnly {
		var targets []*packages.Package
		for _, pkg := range pkgs {
			if g.isTargetPackage(pkg.PkgPath) {
				targets = append(targets, pkg)
			}
		}
		g.logger.Debug("target-only mode", "targets", len(targets), "loaded", len(pkgs))
		prog, ssaPkgs = ssautil.Packages(targets, ssa.InstantiateGenerics)
	} else {
		prog, ssaPkgs = ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	}
	prog.Build()

	result := &Result{Program: prog}
	for _, pkg := range ssaPkgs {
		if pkg != nil {
			result.Packages = append(result.Packages, pkg)
		}
	}
	g.logger.Debug("built SSA program", "packages", len(result.Packages))

	result.Roots = g.roots(result.Packages)
	if len(result.Roots) == 0 {
		g.logger.Debug("no roots found, creating empty call graph")
		result.Graph = &callgraph.Graph{Nodes: make(map[*ssa.Function]*callgraph.Node)}
		return result, nil
	}

	graph, err := g.generateCallGraphWithAlgorithm(prog, result.Roots)
	if err != nil {
		return nil, fmt.Errorf("failed to generate call graph with %s algorithm: %w", g.algorithm, err)
	}
	g.logger.Debug("generated call graph", "algorithm", g.algorithm, "nodes", len(graph.Nodes))

	g.deleteOnlyArtificialSyntheticNodes(graph)
	result.Graph = graph
	return result, nil
}

// roots returns main and init of every loaded package plus the functions
// accepted by the root filter. A package set without any main falls back to
// every function the filter would see, so libraries are analyzed too.
func (g *Generator) roots(pkgs []*ssa.Package) []*ssa.Function {
	var roots []*ssa.Function
	hasMain := false
	for _, pkg := range pkgs {
		if mainFn := pkg.Func("main"); mainFn != nil {
			roots = append(roots, mainFn)
			hasMain = true
		}
		if initFn := pkg.Func("init"); initFn != nil {
			roots = append(roots, initFn)
		}
	}

	seen := make(map[*ssa.Function]bool, len(roots))
	for _, fn := range roots {
		seen[fn] = true
	}
	for _, pkg := range pkgs {
		for _, member := range pkg.Members {
			fn, ok := member.(*ssa.Function)
			if !ok || seen[fn] || len(fn.Blocks) == 0 {
				continue
			}
			extra := g.extraRoots != nil && g.extraRoots(fn)
			library := !hasMain && g.isTargetPackage(pkg.Pkg.Path())
			if extra || library {
				roots = append(roots, fn)
				seen[fn] = true
			}
		}
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].String() < roots[j].String() })
	return roots
}

// Reachable returns the functions reachable from roots in graph, sorted by
// name. Roots absent from the graph are still returned.
func Reachable(graph *callgraph.Graph, roots []*ssa.Function) []*ssa.Function {
	seen := make(map[*ssa.Function]bool)
	var queue []*ssa.Function
	for _, fn := range roots {
		if !seen[fn] {
			seen[fn] = true
			queue = append(queue, fn)
		}
	}

	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		node := graph.Nodes[fn]
		if node == nil {
			continue
		}
		for _, callee := range GetCalleesOf(node) {
			if callee.Func != nil && !seen[callee.Func] {
				seen[callee.Func] = true
				queue = append(queue, callee.Func)
			}
		}
	}

	out := make([]*ssa.Function, 0, len(seen))
	for fn := range seen {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// deleteOnlyArtificialSyntheticNodes removes compiler-generated synthetic nodes
// while preserving synthetic nodes that represent real function calls.
func (g *Generator) deleteOnlyArtificialSyntheticNodes(graph *callgraph.Graph) {
	initialNodeCount := len(graph.Nodes)
	if initialNodeCount == 0 {
		return
	}

	var toDelete []*callgraph.Node

	for fn, node := range graph.Nodes {
		if fn == nil || node == nil {
			continue
		}

		if fn.Synthetic != "" {
			if fn.Pkg != nil && fn.Pkg.Pkg != nil {
				pkgPath := fn.Pkg.Pkg.Path()
				if g.config.IsStandardLibrary(pkgPath) || g.config.IsDependency(pkgPath) {
					continue
				}
			}
			if strings.Contains(fn.Synthetic, "wrapper") ||
				strings.Contains(fn.Synthetic, "bound") {
				toDelete = append(toDelete, node)
			}
		}
	}

	if len(toDelete) > initialNodeCount/2 {
		g.logger.Debug("skipping synthetic node deletion", "candidates", len(toDelete), "nodes", initialNodeCount)
		return
	}

	for _, node := range toDelete {
		graph.DeleteNode(node)
	}

	if len(toDelete) > 0 {
		g.logger.Debug("deleted artificial synthetic nodes", "count", len(toDelete))
	}
}

// GetCalleesOf returns all functions called by the given function
func GetCalleesOf(node *callgraph.Node) []*callgraph.Node {
	var callees []*callgraph.Node

	for _, edge := range node.Out {
		if edge.Callee != nil {
			callees = append(callees, edge.Callee)
		}
	}

	return callees
}

// isTargetPackage reports whether packagePath was matched by the pattern or
// lies in the tree it names.
func (g *Generator) isTargetPackage(packagePath string) bool {
	if g.targets[packagePath] {
		return true
	}

	targetPkg := strings.TrimSuffix(g.packagePath, "/...")
	if targetPkg == "" || strings.HasPrefix(targetPkg, ".") {
		return false
	}
	if targetPkg == packagePath {
		return true
	}

	if strings.HasPrefix(packagePath, targetPkg) {
		remainder := strings.TrimPrefix(packagePath, targetPkg)
		return remainder == "" || strings.HasPrefix(remainder, "/")
	}

	return false
}

// generateCallGraphWithAlgorithm generates a call graph using the specified algorithm
func (g *Generator) generateCallGraphWithAlgorithm(prog *ssa.Program, roots []*ssa.Function) (*callgraph.Graph, error) {
	switch g.algorithm {
	case "rta":
		result := rta.Analyze(roots, true)
		if result == nil || result.CallGraph == nil {
			return nil, fmt.Errorf("RTA analysis returned nil")
		}
		return result.CallGraph, nil

	case "cha":
		graph := cha.CallGraph(prog)
		if graph == nil {
			return nil, fmt.Errorf("CHA analysis returned nil")
		}
		return graph, nil

	case "static":
		graph := static.CallGraph(prog)
		if graph == nil {
			return nil, fmt.Errorf("static analysis returned nil")
		}
		return graph, nil

	case "vta":
		rootSet := make(map[*ssa.Function]bool)
		for _, fn := range roots {
			rootSet[fn] = true
		}
		result := vta.CallGraph(rootSet, cha.CallGraph(prog))
		if result == nil {
			return nil, fmt.Errorf("VTA analysis returned nil")
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", g.algorithm)
	}
}
