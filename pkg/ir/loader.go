package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/smith-xyz/golang-check-elider/pkg/utils"
)

// Document is the JSON interchange form of a program, for representations
// produced outside this module (for example by a compiler pass).
type Document struct {
	Program     string             `json:"program"`
	Globals     []Value            `json:"globals,omitempty"`
	Functions   []FunctionDocument `json:"functions"`
	ErrorBlocks []BlockID          `json:"error_blocks,omitempty"`
	// Costs optionally carries precomputed dynamic costs keyed by the
	// decimal id of the branch value.
	Costs map[string]uint64 `json:"costs,omitempty"`
}

type FunctionDocument struct {
	Name   string          `json:"name"`
	Params []Value         `json:"params,omitempty"`
	Blocks []BlockDocument `json:"blocks"`
}

type BlockDocument struct {
	ID     BlockID   `json:"id"`
	Succs  []BlockID `json:"succs,omitempty"`
	Instrs []Value   `json:"instrs"`
}

// Loaded is a program read from a document together with any precomputed
// costs.
type Loaded struct {
	Program *Program
	Costs   map[ValueID]uint64
}

// Loader reads program documents.
type Loader struct {
	logger *utils.VerboseLogger
}

// NewLoader creates a new program loader.
func NewLoader(verbose bool) *Loader {
	return &Loader{logger: utils.NewVerboseLogger(verbose)}
}

// LoadFromFile loads a program document from a JSON file.
func (l *Loader) LoadFromFile(filePath string) (*Loaded, error) {
	l.logger.Logf("Loading program graph from file: %s\n", filePath)

	file, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open program file %s: %w", filePath, err)
	}
	defer file.Close()

	return l.LoadFromReader(file)
}

// LoadFromReader loads a program document from an io.Reader.
func (l *Loader) LoadFromReader(reader io.Reader) (*Loaded, error) {
	var doc Document
	if err := json.NewDecoder(reader).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse program JSON: %w", err)
	}

	loaded, err := doc.Build()
	if err != nil {
		return nil, err
	}

	l.logger.Logf("Loaded program %s with %d values and %d functions\n",
		loaded.Program.ProgramID(), loaded.Program.NumValues(), len(loaded.Program.Functions()))
	return loaded, nil
}

// Build converts the document into a Program, keeping the ids it declares.
func (d *Document) Build() (*Loaded, error) {
	if d.Program == "" {
		return nil, fmt.Errorf("program document has no program name")
	}
	p := NewProgram(d.Program)

	for _, g := range d.Globals {
		if err := p.insertValue(nil, g); err != nil {
			return nil, err
		}
	}

	for _, fd := range d.Functions {
		fn := p.AddFunction(fd.Name)
		for _, param := range fd.Params {
			if err := p.insertValue(nil, param); err != nil {
				return nil, err
			}
		}
		for _, bd := range fd.Blocks {
			if _, dup := p.blocks[bd.ID]; dup {
				return nil, fmt.Errorf("duplicate block id %d in %s", bd.ID, fd.Name)
			}
			b := &Block{ID: bd.ID, Function: fn.Name, Succs: append([]BlockID(nil), bd.Succs...)}
			p.blocks[b.ID] = b
			fn.Blocks = append(fn.Blocks, b.ID)
			if b.ID >= p.nextBlock {
				p.nextBlock = b.ID + 1
			}
			for _, v := range bd.Instrs {
				if err := p.insertValue(b, v); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, fn := range p.functions {
		for _, id := range fn.Blocks {
			for _, succ := range p.blocks[id].Succs {
				if p.blocks[succ] == nil {
					return nil, fmt.Errorf("block %d in %s has unknown successor %d", id, fn.Name, succ)
				}
			}
		}
	}

	for _, id := range d.ErrorBlocks {
		if p.blocks[id] == nil {
			return nil, fmt.Errorf("unknown error block %d", id)
		}
		p.MarkErrorBlock(id)
	}

	costs := make(map[ValueID]uint64, len(d.Costs))
	for key, cost := range d.Costs {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid cost key %q: %w", key, err)
		}
		if p.values[ValueID(id)] == nil {
			return nil, fmt.Errorf("cost for unknown value %d: %w", id, ErrUnknownValue)
		}
		costs[ValueID(id)] = cost
	}

	return &Loaded{Program: p, Costs: costs}, nil
}

func (p *Program) insertValue(b *Block, v Value) error {
	if _, dup := p.values[v.ID]; dup {
		return fmt.Errorf("duplicate value id %d", v.ID)
	}
	v.Block = NoBlock
	if b != nil {
		v.Block = b.ID
		b.Instrs = append(b.Instrs, v.ID)
	}
	stored := v
	p.values[v.ID] = &stored
	if v.ID >= p.nextValue {
		p.nextValue = v.ID + 1
	}
	return nil
}
