package callgraph

import (
	"go/token"
	"sort"

	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-check-elider/pkg/analysis/rules"
)

// EntryPoint summarizes one analysis root.
type EntryPoint struct {
	ID      string
	Package string
	// Type is main, init, exported or internal.
	Type string
	// Reachable counts the functions reachable from this root alone.
	Reachable int
}

// BuildEntryPoints describes every root of result, ordered by id.
func BuildEntryPoints(result *Result) []EntryPoint {
	entryPoints := make([]EntryPoint, 0, len(result.Roots))
	for _, fn := range result.Roots {
		entryPoints = append(entryPoints, EntryPoint{
			ID:        rules.GenerateFunctionID(fn),
			Package:   InferPackageFromFunction(fn),
			Type:      InferEntryPointType(fn),
			Reachable: len(Reachable(result.Graph, []*ssa.Function{fn})),
		})
	}
	sort.Slice(entryPoints, func(i, j int) bool { return entryPoints[i].ID < entryPoints[j].ID })
	return entryPoints
}

func InferEntryPointType(fn *ssa.Function) string {
	switch fn.Name() {
	case "main":
		return "main"
	case "init":
		return "init"
	default:
		if token.IsExported(fn.Name()) {
			return "exported"
		}
		return "internal"
	}
}

func InferPackageFromFunction(fn *ssa.Function) string {
	if fn.Pkg != nil {
		return fn.Pkg.Pkg.Path()
	}
	return "unknown"
}
