// Package ir is the program representation the elision engine works on: an
// explicit graph of functions, basic blocks and values addressed by
// identifier. Frontends (the Go SSA lowering, the JSON interchange loader)
// build it; the engine only reads it, except for SetCondition.
package ir

import (
	"errors"
	"fmt"
	"sort"
)

// ValueID identifies a value (instruction, global, parameter or constant).
type ValueID int

// BlockID identifies a basic block. Block ids are unique per program.
type BlockID int

// NoBlock is the Block of values that do not live in a basic block.
const NoBlock BlockID = -1

var (
	ErrUnknownValue = errors.New("unknown value")
	ErrNotBranch    = errors.New("value is not a conditional branch")
)

// Location is a source position. The zero value means "not available".
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the location carries a file and line.
func (l Location) IsValid() bool {
	return l.File != "" && l.Line > 0
}

func (l Location) String() string {
	if !l.IsValid() {
		return "<debug info not available>"
	}
	if l.Column != 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Value is a node of the graph.
//
// Operand conventions: Load{addr}, Store{val, addr}, Index{base, index...},
// Cast{src}, Branch{cond}, Phi{edges...}, Call{args...}.
type Value struct {
	ID       ValueID   `json:"id"`
	Kind     Kind      `json:"kind"`
	Operands []ValueID `json:"operands,omitempty"`
	Callee   string    `json:"callee,omitempty"`
	Text     string    `json:"text,omitempty"`
	Loc      Location  `json:"loc,omitempty"`
	Block    BlockID   `json:"-"`
}

// Block is a basic block. The last instruction is its terminator.
type Block struct {
	ID       BlockID   `json:"id"`
	Function string    `json:"-"`
	Instrs   []ValueID `json:"-"`
	Succs    []BlockID `json:"succs,omitempty"`
}

// Terminator returns the id of the block's last instruction.
func (b *Block) Terminator() (ValueID, bool) {
	if b == nil || len(b.Instrs) == 0 {
		return 0, false
	}
	return b.Instrs[len(b.Instrs)-1], true
}

// Function groups blocks in program order.
type Function struct {
	Name   string
	Blocks []BlockID
}

// Graph is the read-mostly view of a program consumed by the resolver, the
// cost model and the elision engine.
type Graph interface {
	ProgramID() string
	Value(id ValueID) *Value
	Block(id BlockID) *Block
	IsErrorBlock(id BlockID) bool
	// SetCondition replaces the condition of a conditional branch by a
	// boolean constant.
	SetCondition(branch ValueID, cond bool) error
}

// Program is the in-memory Graph implementation.
type Program struct {
	id          string
	functions   []*Function
	blocks      map[BlockID]*Block
	values      map[ValueID]*Value
	errorBlocks map[BlockID]bool
	nextValue   ValueID
	nextBlock   BlockID
}

// NewProgram creates an empty program with the given identifier.
func NewProgram(id string) *Program {
	return &Program{
		id:          id,
		blocks:      make(map[BlockID]*Block),
		values:      make(map[ValueID]*Value),
		errorBlocks: make(map[BlockID]bool),
	}
}

func (p *Program) ProgramID() string { return p.id }

func (p *Program) Value(id ValueID) *Value { return p.values[id] }

func (p *Program) Block(id BlockID) *Block { return p.blocks[id] }

func (p *Program) IsErrorBlock(id BlockID) bool { return p.errorBlocks[id] }

// Functions returns the functions in insertion order.
func (p *Program) Functions() []*Function { return p.functions }

// NumValues returns the number of values in the program.
func (p *Program) NumValues() int { return len(p.values) }

// AddFunction appends a new function.
func (p *Program) AddFunction(name string) *Function {
	fn := &Function{Name: name}
	p.functions = append(p.functions, fn)
	return fn
}

// AddBlock appends a new empty block to fn.
func (p *Program) AddBlock(fn *Function) *Block {
	b := &Block{ID: p.nextBlock, Function: fn.Name}
	p.nextBlock++
	p.blocks[b.ID] = b
	fn.Blocks = append(fn.Blocks, b.ID)
	return b
}

// AddValue assigns an id to v and appends it to b. A nil block adds a value
// that lives outside any block (globals, parameters, constants).
func (p *Program) AddValue(b *Block, v Value) ValueID {
	v.ID = p.nextValue
	p.nextValue++
	v.Block = NoBlock
	if b != nil {
		v.Block = b.ID
		b.Instrs = append(b.Instrs, v.ID)
	}
	stored := v
	p.values[v.ID] = &stored
	return v.ID
}

// Link adds an edge from -> to. Successor order is significant for branches:
// index 0 is taken when the condition is true.
func (p *Program) Link(from, to *Block) {
	from.Succs = append(from.Succs, to.ID)
}

// MarkErrorBlock records b as an error-reporting block.
func (p *Program) MarkErrorBlock(id BlockID) {
	p.errorBlocks[id] = true
}

// ErrorBlocks returns the error block ids in ascending order.
func (p *Program) ErrorBlocks() []BlockID {
	ids := make([]BlockID, 0, len(p.errorBlocks))
	for id := range p.errorBlocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Program) SetCondition(branch ValueID, cond bool) error {
	v := p.values[branch]
	if v == nil {
		return fmt.Errorf("set condition of %d: %w", branch, ErrUnknownValue)
	}
	if v.Kind != KindBranch || len(v.Operands) == 0 {
		return fmt.Errorf("set condition of %d: %w", branch, ErrNotBranch)
	}
	text := "false"
	if cond {
		text = "true"
	}
	c := p.AddValue(nil, Value{Kind: KindConst, Text: text})
	v.Operands[0] = c
	return nil
}

// Condition returns the constant a branch was forced to, if any.
func (p *Program) Condition(branch ValueID) (value bool, constant bool) {
	v := p.values[branch]
	if v == nil || v.Kind != KindBranch || len(v.Operands) == 0 {
		return false, false
	}
	c := p.values[v.Operands[0]]
	if c == nil || c.Kind != KindConst {
		return false, false
	}
	switch c.Text {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
