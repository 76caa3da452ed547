// Package budget decides how far down the cost ranking checks may be removed.
package budget

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

var (
	ErrNoBudget        = errors.New("please specify exactly one of -cost-level, -sanity-level or -asap-cost-threshold: none given")
	ErrMultipleBudgets = errors.New("please specify exactly one of -cost-level, -sanity-level or -asap-cost-threshold: more than one given")
	ErrFractionRange   = errors.New("budget fraction must be within [0, 1]")
)

// Mode is the active budget kind.
type Mode int

const (
	ModeSanityLevel Mode = iota + 1
	ModeCostLevel
	ModeCostThreshold
)

func (m Mode) String() string {
	switch m {
	case ModeSanityLevel:
		return "sanity-level"
	case ModeCostLevel:
		return "cost-level"
	case ModeCostThreshold:
		return "cost-threshold"
	default:
		return "unknown"
	}
}

// State is the position of a walk over the cost ranking, just before the
// check at Position is considered.
type State struct {
	Position   int
	Count      int    // checks removed so far
	Cost       uint64 // cost removed so far
	NextCost   uint64 // cost of the check at Position
	TotalCount int
	TotalCost  uint64
}

// Policy is an immutable budget with exactly one active mode.
type Policy struct {
	mode      Mode
	fraction  float64
	removable *big.Rat // 1 - fraction, exact
	threshold uint64
}

// New builds a policy from the three optional parameters. Exactly one must be
// non-nil.
func New(sanityLevel, costLevel *float64, costThreshold *uint64) (*Policy, error) {
	set := 0
	for _, present := range []bool{sanityLevel != nil, costLevel != nil, costThreshold != nil} {
		if present {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, ErrNoBudget
	case set > 1:
		return nil, ErrMultipleBudgets
	}

	switch {
	case sanityLevel != nil:
		return SanityLevel(*sanityLevel)
	case costLevel != nil:
		return CostLevel(*costLevel)
	default:
		return CostThreshold(*costThreshold), nil
	}
}

// SanityLevel keeps fraction f of the static checks.
func SanityLevel(f float64) (*Policy, error) {
	return fractional(ModeSanityLevel, f)
}

// CostLevel keeps fraction f of the dynamic check cost.
func CostLevel(f float64) (*Policy, error) {
	return fractional(ModeCostLevel, f)
}

// CostThreshold removes every check costing t or more.
func CostThreshold(t uint64) *Policy {
	return &Policy{mode: ModeCostThreshold, threshold: t}
}

func fractional(mode Mode, f float64) (*Policy, error) {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return nil, fmt.Errorf("%s %v: %w", mode, f, ErrFractionRange)
	}
	// The shortest decimal form is what the user wrote, so 0.9 means 9/10.
	keep, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	if !ok {
		return nil, fmt.Errorf("%s %v: cannot represent fraction", mode, f)
	}
	removable := new(big.Rat).Sub(big.NewRat(1, 1), keep)
	return &Policy{mode: mode, fraction: f, removable: removable}, nil
}

// Mode returns the active mode.
func (p *Policy) Mode() Mode { return p.mode }

func (p *Policy) String() string {
	if p.mode == ModeCostThreshold {
		return fmt.Sprintf("%s=%d", p.mode, p.threshold)
	}
	return fmt.Sprintf("%s=%s", p.mode, strconv.FormatFloat(p.fraction, 'g', -1, 64))
}

// ShouldStop reports whether the walk must stop before removing the check at
// s.Position. Every check after it is kept as well.
func (p *Policy) ShouldStop(s State) bool {
	switch p.mode {
	case ModeSanityLevel:
		limit := p.allowance(new(big.Int).SetInt64(int64(s.TotalCount)))
		next := new(big.Rat).SetInt64(int64(s.Count) + 1)
		return next.Cmp(limit) > 0

	case ModeCostLevel:
		// Both tests matter: at 1.0 nothing goes even if a check costs 0,
		// and at 0.0 zero-cost checks do not go ahead of costly ones.
		limit := p.allowance(new(big.Int).SetUint64(s.TotalCost))
		removed := new(big.Rat).SetInt(new(big.Int).SetUint64(s.Cost))
		if removed.Cmp(limit) >= 0 {
			return true
		}
		withNext := new(big.Int).Add(new(big.Int).SetUint64(s.Cost), new(big.Int).SetUint64(s.NextCost))
		return new(big.Rat).SetInt(withNext).Cmp(limit) > 0

	case ModeCostThreshold:
		return s.NextCost < p.threshold
	}
	return true
}

func (p *Policy) allowance(total *big.Int) *big.Rat {
	return new(big.Rat).Mul(new(big.Rat).SetInt(total), p.removable)
}
