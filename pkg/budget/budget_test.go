package budget

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func f64(v float64) *float64 { return &v }
func u64(v uint64) *uint64   { return &v }

// walk removes checks greedily in descending cost order until the policy stops.
func walk(p *Policy, costs []uint64) (int, uint64) {
	ranked := append([]uint64(nil), costs...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i] > ranked[j] })

	var total uint64
	for _, c := range ranked {
		total += c
	}

	count, removed := 0, uint64(0)
	for i, c := range ranked {
		if p.ShouldStop(State{Position: i, Count: count, Cost: removed, NextCost: c, TotalCount: len(ranked), TotalCost: total}) {
			break
		}
		count++
		removed += c
	}
	return count, removed
}

func TestNewRequiresExactlyOneParameter(t *testing.T) {
	tests := []struct {
		name      string
		sanity    *float64
		cost      *float64
		threshold *uint64
		wantErr   error
		wantMode  Mode
	}{
		{"none", nil, nil, nil, ErrNoBudget, 0},
		{"sanity and cost", f64(0.5), f64(0.5), nil, ErrMultipleBudgets, 0},
		{"all three", f64(0.5), f64(0.5), u64(10), ErrMultipleBudgets, 0},
		{"cost and threshold", nil, f64(0.5), u64(10), ErrMultipleBudgets, 0},
		{"sanity only", f64(0.5), nil, nil, nil, ModeSanityLevel},
		{"cost only", nil, f64(0.9), nil, nil, ModeCostLevel},
		{"threshold only", nil, nil, u64(0), nil, ModeCostThreshold},
		{"fraction too large", nil, f64(1.5), nil, ErrFractionRange, 0},
		{"negative fraction", f64(-0.1), nil, nil, ErrFractionRange, 0},
		{"nan fraction", nil, f64(math.NaN()), nil, ErrFractionRange, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.sanity, tt.cost, tt.threshold)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if p.Mode() != tt.wantMode {
				t.Errorf("Expected mode %v, got %v", tt.wantMode, p.Mode())
			}
		})
	}
}

func TestCostLevelBoundaries(t *testing.T) {
	t.Run("keep everything removes nothing, even free checks", func(t *testing.T) {
		p, _ := CostLevel(1.0)
		if n, _ := walk(p, []uint64{0, 0, 0}); n != 0 {
			t.Errorf("Expected 0 checks removed, got %d", n)
		}
		if n, _ := walk(p, []uint64{10, 5, 0}); n != 0 {
			t.Errorf("Expected 0 checks removed, got %d", n)
		}
	})

	t.Run("keep nothing does not remove free checks", func(t *testing.T) {
		p, _ := CostLevel(0.0)
		n, cost := walk(p, []uint64{7, 0, 3, 0})
		if n != 2 || cost != 10 {
			t.Errorf("Expected the 2 costly checks (cost 10) removed, got %d (cost %d)", n, cost)
		}
		if n, _ := walk(p, []uint64{0, 0}); n != 0 {
			t.Errorf("Expected no zero-cost check removed, got %d", n)
		}
	})

	t.Run("decimal fractions are exact", func(t *testing.T) {
		p, _ := CostLevel(0.9)
		// 200 * (1 - 0.9) must be exactly 20, so the 20-cost check fits.
		// 160 comes first and exceeds the allowance.
		if _, cost := walk(p, []uint64{20, 20, 160}); cost != 0 {
			t.Errorf("Expected greedy walk to stop at the 160 check, removed cost %d", cost)
		}
		if p.ShouldStop(State{Cost: 0, NextCost: 20, TotalCount: 10, TotalCost: 200}) {
			t.Error("A 20-cost check must fit a 20 allowance")
		}
		if !p.ShouldStop(State{Cost: 20, NextCost: 0, TotalCount: 10, TotalCost: 200}) {
			t.Error("Walk must stop once the allowance is used up")
		}
		if !p.ShouldStop(State{Cost: 15, NextCost: 6, TotalCount: 10, TotalCost: 200}) {
			t.Error("Walk must stop before exceeding the allowance")
		}
	})
}

func TestSanityLevel(t *testing.T) {
	tests := []struct {
		fraction float64
		checks   int
		want     int
	}{
		{1.0, 10, 0},
		{0.0, 10, 10},
		{0.5, 10, 5},
		{0.75, 10, 2},
		{0.8, 10, 2},
		{0.5, 0, 0},
	}
	for _, tt := range tests {
		p, err := SanityLevel(tt.fraction)
		if err != nil {
			t.Fatal(err)
		}
		n, _ := walk(p, make([]uint64, tt.checks))
		if n != tt.want {
			t.Errorf("SanityLevel(%v) over %d checks: expected %d removed, got %d", tt.fraction, tt.checks, tt.want, n)
		}
	}
}

func TestCostThreshold(t *testing.T) {
	p := CostThreshold(10)
	n, cost := walk(p, []uint64{3, 10, 50, 9, 11})
	if n != 3 || cost != 71 {
		t.Errorf("Expected 3 checks (cost 71) removed, got %d (cost %d)", n, cost)
	}

	if n, _ := walk(CostThreshold(0), []uint64{0, 1}); n != 2 {
		t.Errorf("Threshold 0 removes everything, got %d", n)
	}
}

func TestPolicyString(t *testing.T) {
	p, _ := CostLevel(0.9)
	if p.String() != "cost-level=0.9" {
		t.Errorf("Unexpected string %q", p.String())
	}
	if CostThreshold(7).String() != "cost-threshold=7" {
		t.Errorf("Unexpected string %q", CostThreshold(7).String())
	}
}

func TestBudgetProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	costs := gen.SliceOf(gen.UInt64Range(0, 1000))
	fraction := gen.Float64Range(0, 1)

	properties.Property("sanity level never removes more than ceil(n*(1-f))", prop.ForAll(
		func(cs []uint64, f float64) bool {
			p, err := SanityLevel(f)
			if err != nil {
				return false
			}
			n, _ := walk(p, cs)
			return float64(n) <= math.Ceil(float64(len(cs))*(1-f))+1e-9
		},
		costs, fraction,
	))

	properties.Property("cost level never removes more than its allowance", prop.ForAll(
		func(cs []uint64, f float64) bool {
			p, err := CostLevel(f)
			if err != nil {
				return false
			}
			_, removed := walk(p, cs)
			var total uint64
			for _, c := range cs {
				total += c
			}
			return float64(removed) <= float64(total)*(1-f)+1e-6
		},
		costs, fraction,
	))

	properties.Property("cost level 1.0 removes nothing", prop.ForAll(
		func(cs []uint64) bool {
			p, _ := CostLevel(1.0)
			n, _ := walk(p, cs)
			return n == 0
		},
		costs,
	))

	properties.Property("cost level 0.0 never removes a zero-cost check", prop.ForAll(
		func(cs []uint64) bool {
			p, _ := CostLevel(0.0)
			n, _ := walk(p, cs)
			nonZero := 0
			for _, c := range cs {
				if c > 0 {
					nonZero++
				}
			}
			return n == nonZero
		},
		costs,
	))

	properties.Property("threshold removes exactly the checks at or above it", prop.ForAll(
		func(cs []uint64, threshold uint64) bool {
			n, _ := walk(CostThreshold(threshold), cs)
			want := 0
			for _, c := range cs {
				if c >= threshold {
					want++
				}
			}
			return n == want
		},
		costs, gen.UInt64Range(0, 1000),
	))

	properties.TestingRun(t)
}
