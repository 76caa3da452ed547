package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/smith-xyz/golang-check-elider/pkg/utils"
)

// Document returns the interchange form of p. Values outside any block are
// written as globals in id order; Build treats globals and parameters alike,
// so the document rebuilds into the same graph.
func (p *Program) Document() *Document {
	doc := &Document{
		Program:     p.id,
		Functions:   make([]FunctionDocument, 0, len(p.functions)),
		ErrorBlocks: p.ErrorBlocks(),
	}

	ids := make([]ValueID, 0, len(p.values))
	for id, v := range p.values {
		if v.Block == NoBlock {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		doc.Globals = append(doc.Globals, *p.values[id])
	}

	for _, fn := range p.functions {
		fd := FunctionDocument{Name: fn.Name, Blocks: make([]BlockDocument, 0, len(fn.Blocks))}
		for _, id := range fn.Blocks {
			b := p.blocks[id]
			bd := BlockDocument{ID: b.ID, Succs: b.Succs, Instrs: make([]Value, 0, len(b.Instrs))}
			for _, vid := range b.Instrs {
				bd.Instrs = append(bd.Instrs, *p.values[vid])
			}
			fd.Blocks = append(fd.Blocks, bd)
		}
		doc.Functions = append(doc.Functions, fd)
	}
	return doc
}

// Write encodes the document as indented JSON.
func (d *Document) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

// WriteFile writes the document of p to path.
func WriteFile(path string, p *Program) error {
	file, err := utils.SafeCreateFile(path)
	if err != nil {
		return fmt.Errorf("failed to create program file %s: %w", path, err)
	}
	defer file.Close()

	if err := p.Document().Write(file); err != nil {
		return fmt.Errorf("failed to write program %s to %s: %w", p.ProgramID(), path, err)
	}
	return nil
}
