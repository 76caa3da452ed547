// Package checks finds the runtime safety checks of a program: conditional
// branches with an error-reporting successor.
package checks

import (
	"log/slog"

	"github.com/smith-xyz/golang-check-elider/pkg/analysis/resolver"
	"github.com/smith-xyz/golang-check-elider/pkg/ir"
	"github.com/smith-xyz/golang-check-elider/pkg/models"
)

// AbortingCalls decides whether a callee reports a failed check.
type AbortingCalls interface {
	IsAbortingCall(callee string) bool
}

// Finder discovers checks in a program.
type Finder struct {
	logger  *slog.Logger
	matcher AbortingCalls
}

// NewFinder creates a finder. A nil matcher relies on error blocks already
// marked in the program.
func NewFinder(logger *slog.Logger, matcher AbortingCalls) *Finder {
	return &Finder{logger: logger, matcher: matcher}
}

// MarkErrorBlocks marks every block that calls an aborting function and
// returns how many blocks were marked.
func (f *Finder) MarkErrorBlocks(p *ir.Program) int {
	if f.matcher == nil {
		return 0
	}
	marked := 0
	for _, fn := range p.Functions() {
		for _, id := range fn.Blocks {
			if f.abortingCallee(p, p.Block(id)) != "" && !p.IsErrorBlock(id) {
				p.MarkErrorBlock(id)
				marked++
			}
		}
	}
	return marked
}

// Discover marks error blocks and returns every conditional branch with at
// least one error successor, in program order.
func (f *Finder) Discover(p *ir.Program) []models.Check {
	f.MarkErrorBlocks(p)

	var found []models.Check
	for _, fn := range p.Functions() {
		for _, id := range fn.Blocks {
			term, ok := p.Block(id).Terminator()
			if !ok {
				continue
			}
			branch := p.Value(term)
			if branch == nil || branch.Kind != ir.KindBranch {
				continue
			}

			var errorSucc *ir.Block
			for _, succ := range p.Block(id).Succs {
				if p.IsErrorBlock(succ) {
					errorSucc = p.Block(succ)
					break
				}
			}
			if errorSucc == nil {
				continue
			}

			check := models.Check{
				ID:           models.CheckID(fn.Name, term),
				Branch:       term,
				Function:     fn.Name,
				Location:     Location(p, term),
				AbortingCall: f.abortingCallee(p, errorSucc),
			}
			if check.AbortingCall == "" {
				check.AbortingCall = firstCallee(p, errorSucc)
			}
			f.logger.Debug("Found check", "check", check.ID, "location", check.Location.String(), "aborting_call", check.AbortingCall)
			found = append(found, check)
		}
	}
	return found
}

// Location returns the source location of a check: the branch's own, or the
// first known location of its regular block.
func Location(g ir.Graph, branch ir.ValueID) ir.Location {
	v := g.Value(branch)
	if v == nil {
		return ir.Location{}
	}
	if v.Loc.IsValid() {
		return v.Loc
	}
	block, ok := resolver.RegularBlock(g, branch)
	if !ok {
		return ir.Location{}
	}
	for _, id := range block.Instrs {
		if iv := g.Value(id); iv != nil && iv.Loc.IsValid() {
			return iv.Loc
		}
	}
	return ir.Location{}
}

func (f *Finder) abortingCallee(g ir.Graph, b *ir.Block) string {
	if f.matcher == nil || b == nil {
		return ""
	}
	for _, id := range b.Instrs {
		v := g.Value(id)
		if v != nil && v.Kind == ir.KindCall && f.matcher.IsAbortingCall(v.Callee) {
			return v.Callee
		}
	}
	return ""
}

func firstCallee(g ir.Graph, b *ir.Block) string {
	for _, id := range b.Instrs {
		if v := g.Value(id); v != nil && v.Kind == ir.KindCall {
			return v.Callee
		}
	}
	return ""
}
