package models

import "github.com/smith-xyz/golang-check-elider/pkg/ir"

// Origin describes where the memory touched by an access was allocated.
type Origin int

const (
	OriginUnresolved Origin = iota
	OriginStack
	OriginHeap
	OriginGlobal
)

func (o Origin) String() string {
	switch o {
	case OriginStack:
		return "stack"
	case OriginHeap:
		return "heap"
	case OriginGlobal:
		return "global"
	default:
		return "unresolved"
	}
}

func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// IsStackLocal reports whether the origin is a stack allocation.
func (o Origin) IsStackLocal() bool {
	return o == OriginStack
}

// MemoryAccessSite is the load or store a check protects.
type MemoryAccessSite struct {
	InstructionID ir.ValueID `json:"instruction_id"`
	Instruction   string     `json:"instruction"`
	Function      string     `json:"function"`
	Origin        Origin     `json:"origin"`
}
