package cost

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
	"github.com/smith-xyz/golang-check-elider/pkg/ir"
	"github.com/smith-xyz/golang-check-elider/pkg/models"
)

var (
	ErrOutlierCost  = errors.New("outlier instruction cost")
	ErrCostOverflow = errors.New("check cost overflows uint64")
)

// Model computes the dynamic cost of a check: the sum, over the instructions
// the check consists of, of instruction cost times execution count.
type Model struct {
	logger      *slog.Logger
	kindCosts   map[ir.Kind]uint64
	defaultCost uint64
	counter     Counter
}

// NewModel builds a cost model from configuration. Per-kind costs above the
// configured maximum are rejected; they point at a broken cost table.
func NewModel(logger *slog.Logger, cfg config.CostConfig, counter Counter) (*Model, error) {
	if counter == nil {
		counter = UniformCounter{}
	}
	m := &Model{
		logger:      logger,
		kindCosts:   make(map[ir.Kind]uint64, len(cfg.KindCosts)),
		defaultCost: cfg.DefaultInstructionCost,
		counter:     counter,
	}
	if m.defaultCost == 0 {
		m.defaultCost = 1
	}
	if cfg.MaxInstructionCost > 0 && m.defaultCost > cfg.MaxInstructionCost {
		return nil, fmt.Errorf("default instruction cost %d exceeds %d: %w", m.defaultCost, cfg.MaxInstructionCost, ErrOutlierCost)
	}
	for name, c := range cfg.KindCosts {
		kind, err := ir.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("invalid [cost.kind_costs] entry: %w", err)
		}
		if cfg.MaxInstructionCost > 0 && c > cfg.MaxInstructionCost {
			return nil, fmt.Errorf("cost %d for %s exceeds %d: %w", c, name, cfg.MaxInstructionCost, ErrOutlierCost)
		}
		m.kindCosts[kind] = c
	}
	return m, nil
}

// InstructionCost returns the static cost of one instruction.
func (m *Model) InstructionCost(v *ir.Value) uint64 {
	if c, ok := m.kindCosts[v.Kind]; ok {
		return c
	}
	return m.defaultCost
}

// GuardedInstructions returns the branch of a check and the instructions of
// its block that compute the branch condition.
func GuardedInstructions(g ir.Graph, branch ir.ValueID) []*ir.Value {
	root := g.Value(branch)
	if root == nil {
		return nil
	}

	var result []*ir.Value
	seen := map[ir.ValueID]bool{branch: true}
	work := []*ir.Value{root}
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		result = append(result, v)
		for _, op := range v.Operands {
			if seen[op] {
				continue
			}
			seen[op] = true
			if def := g.Value(op); def != nil && def.Block == root.Block {
				work = append(work, def)
			}
		}
	}
	return result
}

// CheckCost computes the dynamic cost of one check.
func (m *Model) CheckCost(g ir.Graph, check models.Check) (uint64, error) {
	branch := g.Value(check.Branch)
	if branch == nil {
		return 0, fmt.Errorf("check %s: %w", check.ID, ir.ErrUnknownValue)
	}

	var total uint64
	for _, v := range GuardedInstructions(g, check.Branch) {
		loc := v.Loc
		if !loc.IsValid() {
			loc = check.Location
		}
		hi, weighted := bits.Mul64(m.InstructionCost(v), m.counter.Count(loc))
		if hi != 0 {
			return 0, fmt.Errorf("check %s: %w", check.ID, ErrCostOverflow)
		}
		var carry uint64
		total, carry = bits.Add64(total, weighted, 0)
		if carry != 0 {
			return 0, fmt.Errorf("check %s: %w", check.ID, ErrCostOverflow)
		}
	}
	return total, nil
}

// Entries pairs every check with its cost. Costs already known for a branch
// (for example from a program document) take precedence over the model.
func (m *Model) Entries(g ir.Graph, checks []models.Check, known map[ir.ValueID]uint64) ([]models.CostEntry, error) {
	entries := make([]models.CostEntry, 0, len(checks))
	for _, check := range checks {
		if c, ok := known[check.Branch]; ok {
			entries = append(entries, models.CostEntry{Check: check, Cost: c})
			continue
		}
		c, err := m.CheckCost(g, check)
		if err != nil {
			return nil, err
		}
		m.logger.Debug("Sanity check cost", "check", check.ID, "location", check.Location.String(), "cost", c)
		entries = append(entries, models.CostEntry{Check: check, Cost: c})
	}
	return entries, nil
}
