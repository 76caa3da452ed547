package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Record is one AttackGraphNode -> ProgramInstruction edge.
type Record struct {
	Program     string `json:"program"`
	AttackType  string `json:"attack_type,omitempty"`
	Function    string `json:"function"`
	Instruction string `json:"instruction"`
	Label       string `json:"label"`
}

// IsAttackAction reports whether the record's attack node is an
// AttackAction. An empty type counts as one.
func (r Record) IsAttackAction() bool {
	return r.AttackType == "" || r.AttackType == AttackAction
}

// Matches applies the oracle query semantics to one record.
func (r Record) Matches(q Query) bool {
	return r.IsAttackAction() &&
		r.Program == q.Program &&
		r.Function == q.Function &&
		strings.Contains(r.Instruction, q.Instruction)
}

// LoadFile reads attack-graph records from a JSON array.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read attack graph %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse attack graph %s: %w", path, err)
	}
	for i, r := range records {
		if r.Program == "" || r.Function == "" || r.Instruction == "" {
			return nil, fmt.Errorf("attack graph %s: record %d needs program, function and instruction", path, i)
		}
	}
	return records, nil
}

// Static is an in-memory oracle over a fixed record set. It backs the file
// backend and tests.
type Static struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

// NewStatic creates an oracle answering from records.
func NewStatic(records []Record) *Static {
	return &Static{records: records}
}

func (s *Static) Open(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return &staticSession{oracle: s}, nil
}

func (s *Static) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type staticSession struct {
	oracle *Static
	closed bool
}

func (s *staticSession) Query(ctx context.Context, q Query) (Result, error) {
	if s.closed {
		return Result{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	for _, r := range s.oracle.records {
		if r.Matches(q) {
			result.Labels = append(result.Labels, r.Label)
		}
	}
	return result, nil
}

func (s *staticSession) Close(ctx context.Context) error {
	s.closed = true
	return nil
}
