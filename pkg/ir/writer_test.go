package ir

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestDocumentRebuildsRewiredProgram(t *testing.T) {
	loaded, err := NewLoader(false).LoadFromReader(strings.NewReader(sampleDocument))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	p := loaded.Program
	if err := p.SetCondition(3, true); err != nil {
		t.Fatalf("SetCondition() error = %v", err)
	}

	var buf bytes.Buffer
	if err := p.Document().Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	again, err := NewLoader(false).LoadFromReader(&buf)
	if err != nil {
		t.Fatalf("reloading the written document: %v", err)
	}
	q := again.Program

	if q.ProgramID() != "demo" || q.NumValues() != p.NumValues() {
		t.Errorf("Reloaded program %s has %d values, want demo with %d", q.ProgramID(), q.NumValues(), p.NumValues())
	}
	if value, constant := q.Condition(3); !constant || !value {
		t.Errorf("Condition(3) = %v, %v after reload, want true, true", value, constant)
	}
	if got := q.ErrorBlocks(); len(got) != 1 || got[0] != 12 {
		t.Errorf("ErrorBlocks() = %v, want [12]", got)
	}
	if succs := q.Block(10).Succs; len(succs) != 2 || succs[0] != 11 || succs[1] != 12 {
		t.Errorf("Block 10 successors = %v, want [11 12]", succs)
	}
	if v := q.Value(5); v == nil || v.Callee != "abort" || v.Block != 12 {
		t.Errorf("Value 5 = %+v, want the abort call in block 12", v)
	}
	if v := q.Value(1); v == nil || v.Block != NoBlock {
		t.Errorf("Value 1 = %+v, want a block-less parameter", v)
	}
}

func TestDocumentEmptyProgram(t *testing.T) {
	doc := NewProgram("empty").Document()
	if doc.Program != "empty" || doc.Functions == nil || len(doc.Functions) != 0 {
		t.Errorf("Document() = %+v, want an empty function list", doc)
	}
	if len(doc.Globals) != 0 || len(doc.ErrorBlocks) != 0 {
		t.Errorf("Document() = %+v, want no globals or error blocks", doc)
	}
}

func TestWriteFile(t *testing.T) {
	p := NewProgram("demo")
	fn := p.AddFunction("f")
	b := p.AddBlock(fn)
	p.AddValue(b, Value{Kind: KindReturn})

	path := filepath.Join(t.TempDir(), "out", "demo.json")
	if err := WriteFile(path, p); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	loaded, err := NewLoader(false).LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if got := loaded.Program.Functions(); len(got) != 1 || got[0].Name != "f" {
		t.Errorf("Functions() = %+v, want f", got)
	}
}
