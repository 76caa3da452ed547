package ir

import "fmt"

// Kind classifies a value.
type Kind int

const (
	KindOther Kind = iota
	KindLoad
	KindStore
	KindIndex
	KindCast
	KindStackAlloc
	KindHeapAlloc
	KindCall
	KindGlobal
	KindParam
	KindPhi
	KindConst
	KindBranch
	KindJump
	KindReturn
)

var kindNames = map[Kind]string{
	KindOther:      "other",
	KindLoad:       "load",
	KindStore:      "store",
	KindIndex:      "index",
	KindCast:       "cast",
	KindStackAlloc: "stack_alloc",
	KindHeapAlloc:  "heap_alloc",
	KindCall:       "call",
	KindGlobal:     "global",
	KindParam:      "param",
	KindPhi:        "phi",
	KindConst:      "const",
	KindBranch:     "branch",
	KindJump:       "jump",
	KindReturn:     "return",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindOther, fmt.Errorf("unknown value kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsMemoryAccess reports whether the kind reads or writes memory through an
// address operand.
func (k Kind) IsMemoryAccess() bool {
	return k == KindLoad || k == KindStore
}

// AddressOperand returns the address operand of a load or store.
func (v *Value) AddressOperand() (ValueID, bool) {
	switch v.Kind {
	case KindLoad:
		if len(v.Operands) >= 1 {
			return v.Operands[0], true
		}
	case KindStore:
		if len(v.Operands) >= 2 {
			return v.Operands[1], true
		}
	}
	return 0, false
}
