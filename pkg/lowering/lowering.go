// Package lowering translates Go SSA functions into the ir program the
// elision engine works on.
//
// Go SSA leaves index bounds checks implicit in IndexAddr. The lowering makes
// them explicit: every IndexAddr whose index is not provably in range ends
// the current block with a branch on "index < len(base)" whose false edge
// leads to a block calling runtime.panicIndex, and the indexed access moves
// to the continuation block. Checks written by hand in the source
// (if ... { panic(...) }) are lowered as they are.
package lowering

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"log/slog"

	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-check-elider/pkg/analysis/rules"
	"github.com/smith-xyz/golang-check-elider/pkg/ir"
)

// PanicIndex is the callee of synthesized bounds-check error blocks.
const PanicIndex = "runtime.panicIndex"

// Stats counts what a lowering produced.
type Stats struct {
	Functions    int
	Blocks       int
	BoundsChecks int
	// ElidedStatically counts IndexAddr instructions with a constant index
	// into an array of known length, which get no check.
	ElidedStatically int
}

// Lowerer accumulates SSA functions into one ir program.
type Lowerer struct {
	logger  *slog.Logger
	fset    *token.FileSet
	program *ir.Program
	globals map[ssa.Value]ir.ValueID
	stats   Stats
}

// New creates a lowerer for a program identified by programID. Positions are
// resolved through fset, which may be nil.
func New(logger *slog.Logger, programID string, fset *token.FileSet) *Lowerer {
	return &Lowerer{
		logger:  logger,
		fset:    fset,
		program: ir.NewProgram(programID),
		globals: make(map[ssa.Value]ir.ValueID),
	}
}

// Stats returns counters over everything lowered so far.
func (l *Lowerer) Stats() Stats { return l.stats }

// LowerAll lowers every function with a body, including anonymous
// functions nested in them, and returns the program.
func (l *Lowerer) LowerAll(fns []*ssa.Function) *ir.Program {
	seen := make(map[*ssa.Function]bool)
	var visit func(fn *ssa.Function)
	visit = func(fn *ssa.Function) {
		if fn == nil || seen[fn] {
			return
		}
		seen[fn] = true
		l.Lower(fn)
		for _, anon := range fn.AnonFuncs {
			visit(anon)
		}
	}
	for _, fn := range fns {
		visit(fn)
	}
	return l.program
}

// pending records an ir value whose operands still name SSA values, which
// may be defined later in the function.
type pending struct {
	id       ir.ValueID
	operands []ssa.Value
}

// functionLowering is the state of one function's translation.
type functionLowering struct {
	*Lowerer
	fn      *ir.Function
	locals  map[ssa.Value]ir.ValueID
	first   []*ir.Block
	last    []*ir.Block
	pending []pending
}

// Lower appends fn to the program. Functions without a body are skipped.
func (l *Lowerer) Lower(fn *ssa.Function) {
	if fn == nil {
		return
	}
	if len(fn.Blocks) == 0 {
		l.logger.Debug("Skipping function without a body", "function", fn.String())
		return
	}

	f := &functionLowering{
		Lowerer: l,
		fn:      l.program.AddFunction(rules.GenerateFunctionID(fn)),
		locals:  make(map[ssa.Value]ir.ValueID),
		first:   make([]*ir.Block, len(fn.Blocks)),
		last:    make([]*ir.Block, len(fn.Blocks)),
	}

	for _, p := range fn.Params {
		f.locals[p] = l.program.AddValue(nil, ir.Value{Kind: ir.KindParam, Text: p.Name(), Loc: l.location(p.Pos())})
	}
	for _, fv := range fn.FreeVars {
		f.locals[fv] = l.program.AddValue(nil, ir.Value{Kind: ir.KindParam, Text: fv.Name(), Loc: l.location(fv.Pos())})
	}

	for i := range fn.Blocks {
		f.first[i] = l.program.AddBlock(f.fn)
	}
	for i, b := range fn.Blocks {
		f.last[i] = f.lowerBlock(b, f.first[i])
	}
	for i, b := range fn.Blocks {
		for _, succ := range b.Succs {
			l.program.Link(f.last[i], f.first[succ.Index])
		}
	}
	f.resolve()

	l.stats.Functions++
	l.stats.Blocks += len(f.fn.Blocks)
}

// lowerBlock lowers b into cur and returns the block holding b's terminator.
func (f *functionLowering) lowerBlock(b *ssa.BasicBlock, cur *ir.Block) *ir.Block {
	for _, instr := range b.Instrs {
		switch instr := instr.(type) {
		case *ssa.DebugRef:
			continue
		case *ssa.IndexAddr:
			if f.needsBoundsCheck(instr) {
				cur = f.boundsCheck(cur, instr)
			} else {
				f.stats.ElidedStatically++
			}
		}
		f.lowerInstr(cur, instr)
	}
	return cur
}

// boundsCheck ends cur with a check guarding access and returns the
// continuation block.
func (f *functionLowering) boundsCheck(cur *ir.Block, access *ssa.IndexAddr) *ir.Block {
	loc := f.location(access.Pos())
	cmp := f.add(cur, ir.Value{
		Kind: ir.KindOther,
		Text: fmt.Sprintf("%s < len(%s)", access.Index.Name(), access.X.Name()),
		Loc:  loc,
	}, access.Index, access.X)
	f.program.AddValue(cur, ir.Value{Kind: ir.KindBranch, Operands: []ir.ValueID{cmp}, Text: "if in bounds", Loc: loc})

	cont := f.program.AddBlock(f.fn)
	failed := f.program.AddBlock(f.fn)
	f.add(failed, ir.Value{Kind: ir.KindCall, Callee: PanicIndex, Text: PanicIndex, Loc: loc}, access.Index, access.X)

	f.program.Link(cur, cont)
	f.program.Link(cur, failed)
	f.stats.BoundsChecks++
	return cont
}

// needsBoundsCheck reports whether the compiler would keep a bounds check for
// access: only constant indices into arrays of known length are provably in
// range.
func (f *functionLowering) needsBoundsCheck(access *ssa.IndexAddr) bool {
	c, ok := access.Index.(*ssa.Const)
	if !ok || c.Value == nil || c.Value.Kind() != constant.Int {
		return true
	}
	index, exact := constant.Int64Val(c.Value)
	if !exact || index < 0 {
		return true
	}
	ptr, ok := access.X.Type().Underlying().(*types.Pointer)
	if !ok {
		return true
	}
	array, ok := ptr.Elem().Underlying().(*types.Array)
	if !ok {
		return true
	}
	return index >= array.Len()
}

func (f *functionLowering) lowerInstr(b *ir.Block, instr ssa.Instruction) {
	v := ir.Value{Text: instructionText(instr), Loc: f.location(instr.Pos())}

	var operands []ssa.Value
	switch instr := instr.(type) {
	case *ssa.UnOp:
		v.Kind = ir.KindOther
		if instr.Op == token.MUL {
			v.Kind = ir.KindLoad
		}
		operands = []ssa.Value{instr.X}
	case *ssa.Store:
		v.Kind = ir.KindStore
		operands = []ssa.Value{instr.Val, instr.Addr}
	case *ssa.IndexAddr:
		v.Kind = ir.KindIndex
		operands = []ssa.Value{instr.X, instr.Index}
	case *ssa.ChangeType:
		v.Kind = ir.KindCast
		operands = []ssa.Value{instr.X}
	case *ssa.Convert:
		v.Kind = ir.KindCast
		operands = []ssa.Value{instr.X}
	case *ssa.MultiConvert:
		v.Kind = ir.KindCast
		operands = []ssa.Value{instr.X}
	case *ssa.SliceToArrayPointer:
		v.Kind = ir.KindCast
		operands = []ssa.Value{instr.X}
	case *ssa.Slice:
		v.Kind = ir.KindCast
		operands = []ssa.Value{instr.X}
	case *ssa.Alloc:
		v.Kind = ir.KindStackAlloc
		if instr.Heap {
			v.Kind = ir.KindHeapAlloc
		}
	case *ssa.MakeSlice:
		v.Kind = ir.KindHeapAlloc
		operands = []ssa.Value{instr.Len, instr.Cap}
	case *ssa.MakeMap, *ssa.MakeChan:
		v.Kind = ir.KindHeapAlloc
	case *ssa.Phi:
		v.Kind = ir.KindPhi
		operands = instr.Edges
	case ssa.CallInstruction:
		common := instr.Common()
		v.Kind = ir.KindCall
		v.Callee = calleeName(common)
		operands = common.Args
	case *ssa.Panic:
		v.Kind = ir.KindCall
		v.Callee = "panic"
		operands = []ssa.Value{instr.X}
	case *ssa.If:
		v.Kind = ir.KindBranch
		operands = []ssa.Value{instr.Cond}
	case *ssa.Jump:
		v.Kind = ir.KindJump
	case *ssa.Return:
		v.Kind = ir.KindReturn
		operands = instr.Results
	default:
		v.Kind = ir.KindOther
		for _, op := range instr.Operands(nil) {
			if *op != nil {
				operands = append(operands, *op)
			}
		}
	}

	id := f.add(b, v, operands...)
	if value, ok := instr.(ssa.Value); ok {
		f.locals[value] = id
	}
}

// add appends v to b and queues its SSA operands for resolution.
func (f *functionLowering) add(b *ir.Block, v ir.Value, operands ...ssa.Value) ir.ValueID {
	id := f.program.AddValue(b, v)
	if len(operands) > 0 {
		f.pending = append(f.pending, pending{id: id, operands: operands})
	}
	return id
}

// resolve replaces queued SSA operands by their ir ids.
func (f *functionLowering) resolve() {
	for _, p := range f.pending {
		ids := make([]ir.ValueID, 0, len(p.operands))
		for _, op := range p.operands {
			if op == nil {
				continue
			}
			ids = append(ids, f.operand(op))
		}
		f.program.Value(p.id).Operands = ids
	}
}

// operand returns the ir id of op, creating block-less values for constants,
// globals and functions on first use.
func (f *functionLowering) operand(op ssa.Value) ir.ValueID {
	if id, ok := f.locals[op]; ok {
		return id
	}
	if id, ok := f.globals[op]; ok {
		return id
	}

	v := ir.Value{Text: op.String(), Loc: f.location(op.Pos())}
	switch op := op.(type) {
	case *ssa.Const:
		v.Kind = ir.KindConst
		id := f.program.AddValue(nil, v)
		f.locals[op] = id
		return id
	case *ssa.Global, *ssa.Function:
		v.Kind = ir.KindGlobal
	default:
		v.Kind = ir.KindOther
	}
	id := f.program.AddValue(nil, v)
	f.globals[op] = id
	return id
}

func (l *Lowerer) location(pos token.Pos) ir.Location {
	if l.fset == nil || !pos.IsValid() {
		return ir.Location{}
	}
	p := l.fset.Position(pos)
	return ir.Location{File: p.Filename, Line: p.Line, Column: p.Column}
}

// calleeName names the target of a call the way configuration lists
// aborting and allocating functions.
func calleeName(common *ssa.CallCommon) string {
	if common.IsInvoke() {
		return common.Method.FullName()
	}
	switch callee := common.Value.(type) {
	case *ssa.Builtin:
		return callee.Name()
	case *ssa.Function:
		return rules.GenerateFunctionID(callee)
	}
	if fn := common.StaticCallee(); fn != nil {
		return rules.GenerateFunctionID(fn)
	}
	return common.Value.Name()
}

func instructionText(instr ssa.Instruction) string {
	if v, ok := instr.(ssa.Value); ok {
		return v.Name() + " = " + v.String()
	}
	return instr.String()
}
