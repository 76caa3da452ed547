// Package resolver locates the memory access a check protects and traces
// where the accessed memory was allocated.
package resolver

import (
	"fmt"
	"log/slog"

	"github.com/smith-xyz/golang-check-elider/pkg/ir"
	"github.com/smith-xyz/golang-check-elider/pkg/models"
)

// maxTraceSteps bounds every backward trace through casts.
const maxTraceSteps = 32

// HeapAllocators decides whether a callee returns heap memory.
type HeapAllocators interface {
	IsHeapAllocation(callee string) bool
}

// Resolver finds the memory access site guarded by a check.
type Resolver struct {
	logger *slog.Logger
	graph  ir.Graph
	heap   HeapAllocators
}

// New creates a resolver over g.
func New(logger *slog.Logger, g ir.Graph, heap HeapAllocators) *Resolver {
	return &Resolver{logger: logger, graph: g, heap: heap}
}

// RegularSuccessor returns the index of the only successor of branch that is
// not an error block. It fails when there are zero or several candidates.
func RegularSuccessor(g ir.Graph, branch ir.ValueID) (int, bool) {
	v := g.Value(branch)
	if v == nil || v.Kind != ir.KindBranch {
		return -1, false
	}
	b := g.Block(v.Block)
	if b == nil {
		return -1, false
	}

	regular := -1
	for i, succ := range b.Succs {
		if g.IsErrorBlock(succ) {
			continue
		}
		if regular >= 0 {
			return -1, false
		}
		regular = i
	}
	return regular, regular >= 0
}

// RegularBlock returns the regular successor block of branch.
func RegularBlock(g ir.Graph, branch ir.ValueID) (*ir.Block, bool) {
	idx, ok := RegularSuccessor(g, branch)
	if !ok {
		return nil, false
	}
	return g.Block(g.Block(g.Value(branch).Block).Succs[idx]), true
}

// Resolve returns the first load or store of the check's regular block whose
// address comes, possibly through casts, from an indexing operation.
func (r *Resolver) Resolve(check models.Check) (*models.MemoryAccessSite, bool) {
	block, ok := RegularBlock(r.graph, check.Branch)
	if !ok {
		r.logger.Debug("No unique regular branch", "check", check.ID)
		return nil, false
	}

	for _, id := range block.Instrs {
		v := r.graph.Value(id)
		if v == nil || !v.Kind.IsMemoryAccess() {
			continue
		}
		addr, ok := v.AddressOperand()
		if !ok {
			continue
		}
		index := r.stripCasts(addr)
		if index == nil || index.Kind != ir.KindIndex {
			continue
		}

		site := &models.MemoryAccessSite{
			InstructionID: v.ID,
			Instruction:   instructionText(v),
			Function:      block.Function,
			Origin:        r.Origin(index),
		}
		r.logger.Debug("Resolved memory access site", "check", check.ID,
			"instruction", site.Instruction, "origin", site.Origin.String())
		return site, true
	}

	r.logger.Debug("No indexed memory access on regular branch", "check", check.ID)
	return nil, false
}

// Origin classifies the base of an indexing operation. The base is followed
// through casts only; merges, loads, parameters and unknown calls leave the
// origin unresolved.
func (r *Resolver) Origin(index *ir.Value) models.Origin {
	if index == nil || len(index.Operands) == 0 {
		return models.OriginUnresolved
	}
	def := r.stripCasts(index.Operands[0])
	if def == nil {
		return models.OriginUnresolved
	}

	switch def.Kind {
	case ir.KindStackAlloc:
		return models.OriginStack
	case ir.KindHeapAlloc:
		return models.OriginHeap
	case ir.KindCall:
		if r.heap != nil && r.heap.IsHeapAllocation(def.Callee) {
			return models.OriginHeap
		}
	case ir.KindGlobal:
		return models.OriginGlobal
	}
	return models.OriginUnresolved
}

// stripCasts returns the first non-cast definition behind id, or nil when the
// chain leaves the graph or exceeds maxTraceSteps.
func (r *Resolver) stripCasts(id ir.ValueID) *ir.Value {
	for step := 0; step < maxTraceSteps; step++ {
		v := r.graph.Value(id)
		if v == nil {
			return nil
		}
		if v.Kind != ir.KindCast || len(v.Operands) == 0 {
			return v
		}
		id = v.Operands[0]
	}
	return nil
}

func instructionText(v *ir.Value) string {
	if v.Text != "" {
		return v.Text
	}
	return fmt.Sprintf("%s %v", v.Kind, v.Operands)
}
