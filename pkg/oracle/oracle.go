// Package oracle is the interface to the exploitability knowledge base: an
// attack graph whose AttackAction nodes point at program instructions an
// attacker can reach.
package oracle

import (
	"context"
	"errors"
)

// AttackAction is the attack-graph node type that marks an exploit step.
const AttackAction = "AttackAction"

var ErrClosed = errors.New("oracle connector is closed")

// Query asks whether an attack action reaches an instruction of a function.
// Instruction is matched as a substring of the recorded instruction text.
type Query struct {
	Program     string
	Function    string
	Instruction string
}

// Result lists the labels of the matching program-instruction nodes.
type Result struct {
	Labels []string
}

// Matched reports whether the attack graph holds any matching record.
func (r Result) Matched() bool {
	return len(r.Labels) > 0
}

// Session runs queries. Sessions are not safe for concurrent use.
type Session interface {
	Query(ctx context.Context, q Query) (Result, error)
	Close(ctx context.Context) error
}

// Connector opens sessions against one oracle backend.
type Connector interface {
	Open(ctx context.Context) (Session, error)
	Close(ctx context.Context) error
}
